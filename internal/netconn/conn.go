// Package netconn manages a single TCP connection to a peer: connect with
// timeout, send/receive frames, and close on any network error so the next
// call reconnects from scratch.
package netconn

import (
	"net"
	"sync"
	"time"

	"fastdir/internal/wire"

	"go.uber.org/zap"
)

// Conn wraps a lazily-established net.Conn to one address. It is safe for
// concurrent use; callers that need strict FIFO ordering (replication) must
// serialize their own calls.
type Conn struct {
	addr           string
	connectTimeout time.Duration
	networkTimeout time.Duration
	log            *zap.SugaredLogger

	mu sync.Mutex
	nc net.Conn

	// callMu serializes whole round trips so concurrent callers never
	// interleave frames on the shared socket.
	callMu sync.Mutex
}

func New(addr string, connectTimeout, networkTimeout time.Duration, log *zap.SugaredLogger) *Conn {
	return &Conn{
		addr:           addr,
		connectTimeout: connectTimeout,
		networkTimeout: networkTimeout,
		log:            log,
	}
}

func (c *Conn) Addr() string { return c.addr }

// ensure returns an open net.Conn, dialing if necessary.
func (c *Conn) ensure() (net.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nc != nil {
		return c.nc, nil
	}
	nc, err := net.DialTimeout("tcp", c.addr, c.connectTimeout)
	if err != nil {
		return nil, err
	}
	c.nc = nc
	return nc, nil
}

// closeLocked closes and forgets the underlying connection. Called whenever
// an I/O error is observed so the next call reconnects.
func (c *Conn) closeLocked() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nc != nil {
		c.nc.Close()
		c.nc = nil
	}
}

// Call issues one request and waits for the matching response, reconnecting
// first if needed. On any network-level failure the connection is dropped
// so the caller's next attempt starts clean.
func (c *Conn) Call(cmd wire.Command, body []byte, wantResp wire.Command) (wire.Frame, error) {
	c.callMu.Lock()
	defer c.callMu.Unlock()

	nc, err := c.ensure()
	if err != nil {
		return wire.Frame{}, err
	}

	frame, err := wire.Call(nc, c.networkTimeout, cmd, body, wantResp)
	if err != nil {
		if c.log != nil {
			c.log.Debugw("peer call failed, dropping connection", "addr", c.addr, "cmd", cmd, "err", err)
		}
		c.closeLocked()
		return wire.Frame{}, err
	}
	return frame, nil
}

// Send writes a frame without waiting for any response (fire-and-forget).
// Nothing in this repository calls it; the replication push path uses Call.
func (c *Conn) Send(cmd Command, body []byte) error {
	c.callMu.Lock()
	defer c.callMu.Unlock()

	nc, err := c.ensure()
	if err != nil {
		return err
	}
	if err := wire.WriteFrame(nc, c.networkTimeout, wire.Command(cmd), 0, body); err != nil {
		c.closeLocked()
		return err
	}
	return nil
}

// Command re-exports wire.Command so callers of Send don't need a second
// import for a type alias only used here.
type Command = wire.Command

// Close releases the underlying socket, if any.
func (c *Conn) Close() {
	c.closeLocked()
}
