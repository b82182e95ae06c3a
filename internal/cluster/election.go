package cluster

import (
	"encoding/binary"
	"fmt"
	"sort"
	"time"

	"fastdir/internal/fdirerr"
	"fastdir/internal/metrics"
	"fastdir/internal/wire"

	"go.uber.org/zap"
)

// Election runs the master-selection protocol, ported from
// cluster_relationship.c's cluster_select_master /
// cluster_relationship_pre_set_master / cluster_relationship_commit_master.
type Election struct {
	roster *Roster
	log    *zap.SugaredLogger
}

func NewElection(roster *Roster, log *zap.SugaredLogger) *Election {
	return &Election{roster: roster, log: log}
}

// statusResult pairs a peer with the StatusTuple it reported, or an error
// if the peer could not be reached.
type statusResult struct {
	peer   *Peer
	tuple  StatusTuple
	online bool
	err    error
}

// queryStatus calls GET_SERVER_STATUS on one peer, or reads local state for
// myself without a network round-trip.
func (e *Election) queryStatus(p *Peer) statusResult {
	if p.ServerID == e.roster.Myself().ServerID {
		return statusResult{
			peer:   p,
			online: true,
			tuple: StatusTuple{
				ServerID:    p.ServerID,
				IsMaster:    p.IsMaster(),
				DataVersion: p.DataVersion(),
			},
		}
	}

	var reqBody [4]byte
	binary.BigEndian.PutUint32(reqBody[:], uint32(e.roster.ClusterID()))
	frame, err := p.Conn.Call(wire.CmdGetServerStatusReq, reqBody[:], wire.CmdGetServerStatusResp)
	if err != nil {
		return statusResult{peer: p, online: false, err: err}
	}
	tuple, err := decodeServerStatus(frame.Body)
	if err != nil {
		return statusResult{peer: p, online: false, err: err}
	}
	return statusResult{peer: p, online: true, tuple: tuple}
}

func decodeServerStatus(body []byte) (StatusTuple, error) {
	if len(body) < 13 {
		return StatusTuple{}, fmt.Errorf("cluster: short GET_SERVER_STATUS_RESP body")
	}
	serverID := int(binary.BigEndian.Uint32(body[0:4]))
	isMaster := body[4] != 0
	dataVersion := binary.BigEndian.Uint64(body[5:13])
	return StatusTuple{ServerID: serverID, IsMaster: isMaster, DataVersion: dataVersion}, nil
}

func encodeServerStatus(t StatusTuple) []byte {
	buf := make([]byte, 13)
	binary.BigEndian.PutUint32(buf[0:4], uint32(t.ServerID))
	if t.IsMaster {
		buf[4] = 1
	}
	binary.BigEndian.PutUint64(buf[5:13], t.DataVersion)
	return buf
}

// EncodeLocalStatus is used by the server's GET_SERVER_STATUS handler to
// answer with this node's own tuple.
func (e *Election) EncodeLocalStatus() []byte {
	me := e.roster.Myself()
	return encodeServerStatus(StatusTuple{
		ServerID:    me.ServerID,
		IsMaster:    me.IsMaster(),
		DataVersion: me.DataVersion(),
	})
}

// pollAll queries GET_SERVER_STATUS on every peer including myself,
// returning whichever answered plus a count of how many peers exist.
func (e *Election) pollAll() (results []statusResult, activeCount, total int) {
	e.roster.IteratePeers(func(p *Peer) bool {
		total++
		res := e.queryStatus(p)
		if res.online {
			activeCount++
		}
		results = append(results, res)
		return true
	})
	return results, activeCount, total
}

// SelectMaster implements cluster_select_master: poll all peers, and retry
// up to 5 rounds with exponential backoff (2s, 4s, 8s, 16s, 32s) until
// either every peer answered, or at least two peers answered and one of
// them already claims to be master. The winner is the maximum StatusTuple
// among peers that answered.
func (e *Election) SelectMaster() (*Peer, error) {
	sleep := 2 * time.Second
	var results []statusResult
	var activeCount, total int

	for round := 0; round < 5; round++ {
		metrics.ElectionRoundsTotal.Inc()
		results, activeCount, total = e.pollAll()

		oneClaimsMaster := false
		for _, r := range results {
			if r.online && r.tuple.IsMaster {
				oneClaimsMaster = true
				break
			}
		}

		if activeCount == total || (activeCount >= 2 && oneClaimsMaster) {
			break
		}

		if e.log != nil {
			e.log.Infow("election: not enough peers responsive, retrying",
				"round", round, "active", activeCount, "total", total, "sleep", sleep)
		}
		time.Sleep(sleep)
		sleep *= 2
	}

	online := make([]statusResult, 0, len(results))
	for _, r := range results {
		if r.online {
			online = append(online, r)
		}
	}
	if len(online) == 0 {
		return nil, fmt.Errorf("cluster: no peers responded to election poll")
	}

	sort.Slice(online, func(i, j int) bool { return online[i].tuple.Less(online[j].tuple) })
	winner := online[len(online)-1]

	p, ok := e.roster.GetPeerByID(winner.peer.ServerID)
	if !ok {
		return nil, fmt.Errorf("cluster: election winner %d not in roster", winner.peer.ServerID)
	}
	return p, nil
}

// RunElection selects a master and drives the two-phase commit
// (PRE_SET_NEXT_MASTER then COMMIT_NEXT_MASTER) across the whole roster,
// mirroring cluster_notify_next_master / cluster_notify_master_changed.
// Unreachable peers are tolerated; a peer that actively rejects either
// phase aborts the whole election.
func (e *Election) RunElection() (*Peer, error) {
	winner, err := e.SelectMaster()
	if err != nil {
		return nil, err
	}

	if err := e.notifyPreSetMaster(winner); err != nil {
		e.roster.ClearNextMaster()
		return nil, fmt.Errorf("cluster: pre-set phase rejected: %w", err)
	}
	if err := e.notifyCommitMaster(winner); err != nil {
		e.roster.ClearNextMaster()
		return nil, fmt.Errorf("cluster: commit phase rejected: %w", err)
	}

	e.roster.SetMaster(winner)
	e.roster.ClearNextMaster()
	if winner.ServerID == e.roster.Myself().ServerID {
		winner.SetIsMaster(true)
		e.roster.ResetSlaveArrays()
		metrics.ElectionsWonTotal.Inc()
	}
	return winner, nil
}

// notifyPreSetMaster fans PRE_SET_NEXT_MASTER out to every reachable peer.
// A peer answering EEXIST (its own g_next_master already points elsewhere)
// fails the whole round, matching cluster_relationship_pre_set_master.
func (e *Election) notifyPreSetMaster(winner *Peer) error {
	e.roster.SetNextMaster(winner)

	body := make([]byte, 4)
	binary.BigEndian.PutUint32(body, uint32(winner.ServerID))

	var firstErr error
	e.roster.IteratePeers(func(p *Peer) bool {
		if p.ServerID == e.roster.Myself().ServerID {
			return true
		}
		frame, err := p.Conn.Call(wire.CmdPreSetNextMaster, body, wire.CmdPreSetNextMaster)
		if err != nil {
			if e.log != nil {
				e.log.Warnw("pre-set-master: peer unreachable, tolerating", "peer", p.ServerID, "err", err)
			}
			return true
		}
		if frame.Header.Status == uint8(fdirerr.EEXIST) {
			firstErr = fmt.Errorf("peer %d already has a different next master staged (EEXIST)", p.ServerID)
			return false
		}
		return true
	})
	return firstErr
}

// notifyCommitMaster fans COMMIT_NEXT_MASTER out. A peer answering EBUSY
// (its staged next_master disagrees) fails the round, matching
// cluster_relationship_commit_master.
func (e *Election) notifyCommitMaster(winner *Peer) error {
	body := make([]byte, 4)
	binary.BigEndian.PutUint32(body, uint32(winner.ServerID))

	var firstErr error
	e.roster.IteratePeers(func(p *Peer) bool {
		if p.ServerID == e.roster.Myself().ServerID {
			return true
		}
		frame, err := p.Conn.Call(wire.CmdCommitNextMaster, body, wire.CmdCommitNextMaster)
		if err != nil {
			if e.log != nil {
				e.log.Warnw("commit-master: peer unreachable, tolerating", "peer", p.ServerID, "err", err)
			}
			return true
		}
		if frame.Header.Status == uint8(fdirerr.EBUSY) {
			firstErr = fmt.Errorf("peer %d rejected commit (EBUSY, staged master disagrees)", p.ServerID)
			return false
		}
		return true
	})
	return firstErr
}

// HandlePreSetNextMaster is the server-side handler for an incoming
// PRE_SET_NEXT_MASTER from whichever peer is driving the election.
func (e *Election) HandlePreSetNextMaster(candidateID int) fdirerr.Errno {
	existing := e.roster.NextMaster()
	if existing != nil && existing.ServerID != candidateID {
		return fdirerr.EEXIST
	}
	p, ok := e.roster.GetPeerByID(candidateID)
	if !ok {
		return fdirerr.EINVAL
	}
	e.roster.SetNextMaster(p)
	return fdirerr.OK
}

// HandleCommitNextMaster is the server-side handler for COMMIT_NEXT_MASTER.
func (e *Election) HandleCommitNextMaster(candidateID int) fdirerr.Errno {
	staged := e.roster.NextMaster()
	if staged == nil || staged.ServerID != candidateID {
		return fdirerr.EBUSY
	}
	e.roster.SetMaster(staged)
	e.roster.ClearNextMaster()
	if staged.ServerID == e.roster.Myself().ServerID {
		staged.SetIsMaster(true)
		e.roster.ResetSlaveArrays()
	}
	return fdirerr.OK
}

// masterCheckBrainSplit is an explicit open issue carried over unresolved
// from the original: master_check_brain_split always returned 0 there
// too, and detecting a genuine split-brain is left as a known gap rather
// than something this rewrite closes.
func (e *Election) masterCheckBrainSplit() bool {
	return false
}
