// Package server implements the FastDIR TCP service: connection accept,
// frame dispatch, and the handlers behind every command family in the
// wire protocol.
package server

import (
	"net"
	"sync"
	"time"

	"fastdir/internal/binlog"
	"fastdir/internal/cluster"
	"fastdir/internal/config"
	"fastdir/internal/dentry"
	"fastdir/internal/fdirerr"
	"fastdir/internal/metrics"
	"fastdir/internal/wire"

	"go.uber.org/zap"
)

// Server owns the listener and every piece of per-node state a connection
// handler needs to reach: roster, election/heartbeat, dentry tree, binlog
// pipeline, and the list-cursor table.
type Server struct {
	cfg    *config.Config
	log    *zap.SugaredLogger
	roster *cluster.Roster

	election  *cluster.Election
	heartbeat *cluster.Heartbeat

	tree    *dentry.Tree
	cursors *dentry.ListCursors

	writer   *binlog.WriteThread
	producer *binlog.Producer
	store    *binlog.FileStore

	mu               sync.Mutex
	replicaConsumers map[int]*binlog.ReplicaConsumer
	pusherStop       map[int]chan struct{}

	listener net.Listener
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New wires every dependency together. It does not start listening or
// replay any existing binlog; callers drive that from cmd/fdirserver.
func New(cfg *config.Config, log *zap.SugaredLogger, roster *cluster.Roster, tree *dentry.Tree,
	store *binlog.FileStore, writer *binlog.WriteThread, producer *binlog.Producer) *Server {

	election := cluster.NewElection(roster, log)
	return &Server{
		cfg:              cfg,
		log:              log,
		roster:           roster,
		election:         election,
		heartbeat:        cluster.NewHeartbeat(roster, election, log),
		tree:             tree,
		cursors:          dentry.NewListCursors(),
		writer:           writer,
		producer:         producer,
		store:            store,
		replicaConsumers: make(map[int]*binlog.ReplicaConsumer),
		pusherStop:       make(map[int]chan struct{}),
		stopCh:           make(chan struct{}),
	}
}

// startReplicationTo spins up a ReplicationPusher goroutine fanning
// produced records out to peer, idempotent per peer so a repeated
// JOIN_MASTER doesn't double-push.
func (s *Server) startReplicationTo(peer *cluster.Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, running := s.pusherStop[peer.ServerID]; running {
		return
	}
	stop := make(chan struct{})
	s.pusherStop[peer.ServerID] = stop

	pusher := NewReplicationPusher(s.roster.Myself().ServerID, s.producer, s.cfg.BinlogBufferSize)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		pusher.Run(peer, stop)
	}()
}

// Heartbeat exposes the node's liveness loop so cmd/fdirserver can start
// and stop it alongside the listener.
func (s *Server) Heartbeat() *cluster.Heartbeat { return s.heartbeat }

// ListenAndServe binds addr and accepts connections until Stop is called.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.log.Infow("server: listening", "addr", addr)

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
				return
			default:
				s.log.Warnw("server: accept error", "err", err)
				continue
			}
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// Stop closes the listener and waits (up to 2s, per the shutdown contract
// in §5) for in-flight connection handlers to exit.
func (s *Server) Stop() {
	close(s.stopCh)
	if s.listener != nil {
		s.listener.Close()
	}

	done := make(chan struct{})
	go func() { s.wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		s.log.Warnw("server: shutdown timed out waiting for connections to drain")
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	networkTimeout := s.cfg.NetworkTimeout()
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		frame, err := wire.ReadFrame(conn, networkTimeout)
		if err != nil {
			return
		}

		resp, respCmd, status := s.dispatch(conn, frame)
		if err := wire.WriteFrame(conn, networkTimeout, respCmd, uint8(status), resp); err != nil {
			return
		}
	}
}

// dispatch routes one request frame to its handler and returns the
// response body, response command, and status byte to write back.
func (s *Server) dispatch(conn net.Conn, frame wire.Frame) ([]byte, wire.Command, uint8) {
	metrics.RequestsTotal.WithLabelValues(frame.Header.Cmd.String()).Inc()

	switch frame.Header.Cmd {
	case wire.CmdCreateDentry:
		return s.handleCreateDentry(frame.Body)
	case wire.CmdRemoveDentry:
		return s.handleRemoveDentry(frame.Body)
	case wire.CmdListDentryFirstReq:
		return s.handleListFirst(frame.Body)
	case wire.CmdListDentryNextReq:
		return s.handleListNext(frame.Body)
	case wire.CmdServiceStatReq:
		return s.handleServiceStat()
	case wire.CmdClusterStatReq:
		return s.handleClusterStat()
	case wire.CmdGetMasterReq:
		return s.handleGetMaster()
	case wire.CmdGetSlavesReq:
		return s.handleGetSlaves()
	case wire.CmdGetReadableServerReq:
		return s.handleGetReadableServer()

	case wire.CmdGetServerStatusReq:
		return s.handleGetServerStatus()
	case wire.CmdJoinMaster:
		return s.handleJoinMaster(frame.Body)
	case wire.CmdPingMasterReq:
		return s.handlePingMaster(frame.Body)
	case wire.CmdPreSetNextMaster:
		return s.handlePreSetNextMaster(frame.Body)
	case wire.CmdCommitNextMaster:
		return s.handleCommitNextMaster(frame.Body)

	case wire.CmdPushBinlogReq:
		return s.handlePushBinlog(frame.Body)

	default:
		return nil, wire.CmdAck, uint8(fdirerr.EPROTO)
	}
}
