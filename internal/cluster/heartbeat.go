package cluster

import (
	"encoding/binary"
	"sync/atomic"
	"time"

	"fastdir/internal/fdirerr"
	"fastdir/internal/wire"

	"go.uber.org/zap"
)

// maxSleepSeconds bounds the ping-failure backoff at roughly 16s; the
// original cluster_thread_entrance used MAX_SLEEP_SECONDS=10, widened here
// to give a flapping link more room before the slave gives up and forces
// a fresh election.
const maxSleepSeconds = 16

// failThreshold is the number of consecutive ping failures (fail_count in
// the original) after which a slave gives up on the current master and
// clears its pointer, forcing a fresh election on the next heartbeat tick.
const failThreshold = 4

// Heartbeat runs the slave-side "am I still attached to a live master" loop,
// ported from cluster_thread_entrance / cluster_ping_master in the
// original.
type Heartbeat struct {
	roster   *Roster
	election *Election
	log      *zap.SugaredLogger

	inodeSN  atomic.Uint64
	joinedTo int // server_id of the master we last completed JOIN_MASTER against, 0 if none
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewHeartbeat(roster *Roster, election *Election, log *zap.SugaredLogger) *Heartbeat {
	return &Heartbeat{
		roster:   roster,
		election: election,
		log:      log,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// CurrentInodeSN returns the highest inode serial number this node has
// observed, carried forward from ping responses.
func (h *Heartbeat) CurrentInodeSN() uint64 { return h.inodeSN.Load() }

func (h *Heartbeat) bumpInodeSN(v uint64) {
	for {
		cur := h.inodeSN.Load()
		if v <= cur {
			return
		}
		if h.inodeSN.CompareAndSwap(cur, v) {
			return
		}
	}
}

// Run drives the heartbeat loop until Stop is called. It is meant to run
// in its own goroutine, one per node, for the node's whole lifetime.
func (h *Heartbeat) Run() {
	defer close(h.doneCh)

	sleep := 1 * time.Second
	failCount := 0

	for {
		select {
		case <-h.stopCh:
			return
		default:
		}

		master := h.roster.Master()
		if master == nil {
			if _, err := h.election.RunElection(); err != nil {
				h.log.Warnw("heartbeat: election failed", "err", err)
				h.sleepOrStop(sleep)
				continue
			}
			failCount = 0
			sleep = 1 * time.Second
			continue
		}

		if master.ServerID == h.roster.Myself().ServerID {
			// We are master: nothing to ping. Just idle for failThreshold seconds.
			h.sleepOrStop(time.Duration(failThreshold) * time.Second)
			continue
		}

		if h.joinedTo != master.ServerID {
			if err := h.JoinMaster(master); err != nil {
				h.log.Warnw("heartbeat: join master failed", "master", master.ServerID, "err", err)
				h.sleepOrStop(sleep)
				continue
			}
			h.joinedTo = master.ServerID
		}

		if err := h.pingMaster(master); err != nil {
			failCount++
			h.log.Warnw("heartbeat: ping master failed", "master", master.ServerID, "fail_count", failCount, "err", err)
			if failCount >= failThreshold {
				h.log.Warnw("heartbeat: master unresponsive past threshold, clearing", "master", master.ServerID)
				h.roster.ClearMaster()
				h.joinedTo = 0
				failCount = 0
				sleep = 1 * time.Second
				continue
			}
			if sleep < maxSleepSeconds*time.Second {
				sleep *= 2
				if sleep > maxSleepSeconds*time.Second {
					sleep = maxSleepSeconds * time.Second
				}
			}
		} else {
			failCount = 0
			sleep = 1 * time.Second
		}

		h.sleepOrStop(sleep)
	}
}

func (h *Heartbeat) sleepOrStop(d time.Duration) {
	select {
	case <-time.After(d):
	case <-h.stopCh:
	}
}

// Stop signals Run to exit and waits for it to finish.
func (h *Heartbeat) Stop() {
	close(h.stopCh)
	<-h.doneCh
}

// pingMaster sends PING_MASTER_REQ and pulls CURRENT_INODE_SN forward from
// the response, matching cluster_ping_master.
func (h *Heartbeat) pingMaster(master *Peer) error {
	body := make([]byte, 8)
	binary.BigEndian.PutUint64(body, h.inodeSN.Load())

	frame, err := master.Conn.Call(wire.CmdPingMasterReq, body, wire.CmdPingMasterResp)
	if err != nil {
		return err
	}
	if frame.Header.Status != uint8(fdirerr.OK) {
		return fdirerr.New(fdirerr.Errno(frame.Header.Status), "ping master rejected")
	}
	if len(frame.Body) >= 8 {
		h.bumpInodeSN(binary.BigEndian.Uint64(frame.Body[0:8]))
	}
	if len(frame.Body) >= 16 {
		master.BumpDataVersion(binary.BigEndian.Uint64(frame.Body[8:16]))
	}
	return nil
}

// JoinMaster sends JOIN_MASTER once at startup (or after a master change)
// so the new master adds us to its active-slave set. The request carries
// cluster_id and config_sign so the master can reject a misconfigured peer
// (§3: config_sign mismatch rejects the peer's join); on success the master
// hands back a fresh replica_key, which we stash on the master Peer so
// subsequent PUSH_BINLOG_REQ frames can be authenticated (§3 "Replica key").
func (h *Heartbeat) JoinMaster(master *Peer) error {
	me := h.roster.Myself()
	sign := h.roster.ConfigSign()

	body := binary.BigEndian.AppendUint32(nil, uint32(h.roster.ClusterID()))
	body = binary.BigEndian.AppendUint32(body, uint32(me.ServerID))
	body = append(body, sign[:]...)

	frame, err := master.Conn.Call(wire.CmdJoinMaster, body, wire.CmdJoinMaster)
	if err != nil {
		return err
	}
	if frame.Header.Status != uint8(fdirerr.OK) {
		return fdirerr.New(fdirerr.Errno(frame.Header.Status), "join master rejected")
	}
	if len(frame.Body) >= 16 {
		var key [16]byte
		copy(key[:], frame.Body[:16])
		master.SetReplicaKey(key)
	}
	return nil
}
