// Package clientrouter implements client-side server selection: resolve
// the master for writes, resolve any readable peer for reads, and fail
// over per call rather than caching a broken connection.
//
// The original client has a known bug here: one code path defaults
// straight to server_group.servers[0] instead of resolving via
// GET_MASTER_REQ, which can send a write to a non-master peer after a
// failover. This rewrite always resolves via GET_MASTER_REQ and never
// falls back to a fixed index.
package clientrouter

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"fastdir/internal/netconn"
	"fastdir/internal/wire"

	"go.uber.org/zap"
)

// ServerSpec is one roster entry as known to a client: just enough to
// dial, no cluster-side state.
type ServerSpec struct {
	ServerID    int
	ServiceAddr string
}

// Router holds the full server group and the client's current belief
// about who is master, refreshed on demand. slaveGroup is read for
// round-robin reads when non-empty; nothing in this package fills it.
type Router struct {
	log            *zap.SugaredLogger
	connectTimeout time.Duration
	networkTimeout time.Duration

	mu      sync.Mutex
	servers []ServerSpec
	conns   map[int]*netconn.Conn

	master     *ServerSpec
	slaveGroup []ServerSpec
	rrCursor   int
}

func New(servers []ServerSpec, connectTimeout, networkTimeout time.Duration, log *zap.SugaredLogger) *Router {
	return &Router{
		log:            log,
		connectTimeout: connectTimeout,
		networkTimeout: networkTimeout,
		servers:        servers,
		conns:          make(map[int]*netconn.Conn),
	}
}

func (r *Router) connFor(spec ServerSpec) *netconn.Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[spec.ServerID]
	if !ok {
		c = netconn.New(spec.ServiceAddr, r.connectTimeout, r.networkTimeout, r.log)
		r.conns[spec.ServerID] = c
	}
	return c
}

// dropConn closes and forgets a broken connection so the next call
// reconnects from scratch.
func (r *Router) dropConn(serverID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.conns[serverID]; ok {
		c.Close()
		delete(r.conns, serverID)
	}
}

func decodeServerAddrResp(body []byte, servers []ServerSpec) (ServerSpec, error) {
	if len(body) < 22 {
		return ServerSpec{}, fmt.Errorf("clientrouter: short server-addr response")
	}
	serverID := int(binary.BigEndian.Uint32(body[0:4]))
	for _, s := range servers {
		if s.ServerID == serverID {
			return s, nil
		}
	}
	return ServerSpec{}, fmt.Errorf("clientrouter: server_id %d not in known roster", serverID)
}

// GetMasterConnection returns a connection to the current master,
// refreshing via GET_MASTER_REQ if none is cached. This is the ONLY path
// that resolves a write target — unlike the original C client, there is
// no code path here that defaults to servers[0].
func (r *Router) GetMasterConnection() (*netconn.Conn, int, error) {
	r.mu.Lock()
	cached := r.master
	r.mu.Unlock()

	if cached != nil {
		return r.connFor(*cached), cached.ServerID, nil
	}
	return r.refreshMaster()
}

func (r *Router) refreshMaster() (*netconn.Conn, int, error) {
	var lastErr error
	for _, spec := range r.servers {
		conn := r.connFor(spec)
		frame, err := conn.Call(wire.CmdGetMasterReq, nil, wire.CmdGetMasterResp)
		if err != nil {
			lastErr = err
			r.dropConn(spec.ServerID)
			continue
		}
		master, err := decodeServerAddrResp(frame.Body, r.servers)
		if err != nil {
			lastErr = err
			continue
		}

		r.mu.Lock()
		r.master = &master
		r.mu.Unlock()

		return r.connFor(master), master.ServerID, nil
	}
	return nil, 0, fmt.Errorf("clientrouter: no peer could resolve master: %w", lastErr)
}

// InvalidateMaster drops the cached master belief; called by a caller
// that observed a network error or ENOTMAST talking to it.
func (r *Router) InvalidateMaster() {
	r.mu.Lock()
	if r.master != nil {
		serverID := r.master.ServerID
		r.master = nil
		r.mu.Unlock()
		r.dropConn(serverID)
		return
	}
	r.mu.Unlock()
}

// GetReadableConnection resolves any peer fit to serve reads, round-robin
// across slaveGroup if it is non-empty; otherwise (always, as nothing in
// this package fills slaveGroup) it asks peers via GET_READABLE_SERVER_REQ.
func (r *Router) GetReadableConnection() (*netconn.Conn, int, error) {
	r.mu.Lock()
	if len(r.slaveGroup) > 0 {
		spec := r.slaveGroup[r.rrCursor%len(r.slaveGroup)]
		r.rrCursor++
		r.mu.Unlock()
		return r.connFor(spec), spec.ServerID, nil
	}
	r.mu.Unlock()

	var lastErr error
	for _, spec := range r.servers {
		conn := r.connFor(spec)
		frame, err := conn.Call(wire.CmdGetReadableServerReq, nil, wire.CmdGetReadableServerResp)
		if err != nil {
			lastErr = err
			r.dropConn(spec.ServerID)
			continue
		}
		readable, err := decodeServerAddrResp(frame.Body, r.servers)
		if err != nil {
			lastErr = err
			continue
		}
		return r.connFor(readable), readable.ServerID, nil
	}
	return nil, 0, fmt.Errorf("clientrouter: no peer could resolve a readable server: %w", lastErr)
}
