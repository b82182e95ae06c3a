// Package cluster implements membership, master election, and slave
// liveness tracking for a FastDIR node.
package cluster

import (
	"sync"
	"sync/atomic"

	"fastdir/internal/config"
	"fastdir/internal/netconn"

	"go.uber.org/zap"
)

// Status is a peer's runtime liveness state.
type Status int32

const (
	StatusOffline Status = iota
	StatusOnline
	StatusActive
)

func (s Status) String() string {
	switch s {
	case StatusOffline:
		return "offline"
	case StatusOnline:
		return "online"
	case StatusActive:
		return "active"
	default:
		return "unknown"
	}
}

// Peer is one cluster member. Status/IsMaster/DataVersion are written only
// by the cluster thread (election + heartbeat) and read by many, so they
// use atomic access rather than a mutex per field.
type Peer struct {
	ServerID    int
	ClusterAddr string
	ServiceAddr string

	status      atomic.Int32
	isMaster    atomic.Bool
	dataVersion atomic.Uint64
	replicaKey  [16]byte
	keyMu       sync.Mutex

	// Conn is the lazily-established connection to this peer's cluster
	// address, reused across heartbeat/election calls.
	Conn *netconn.Conn
}

func newPeer(spec config.PeerSpec, connectTimeout, networkTimeout int64, log *zap.SugaredLogger) *Peer {
	p := &Peer{
		ServerID:    spec.ServerID,
		ClusterAddr: spec.ClusterAddr,
		ServiceAddr: spec.ServiceAddr,
	}
	p.status.Store(int32(StatusOffline))
	return p
}

func (p *Peer) Status() Status        { return Status(p.status.Load()) }
func (p *Peer) SetStatus(s Status)    { p.status.Store(int32(s)) }
func (p *Peer) IsMaster() bool        { return p.isMaster.Load() }
func (p *Peer) SetIsMaster(v bool)    { p.isMaster.Store(v) }
func (p *Peer) DataVersion() uint64   { return p.dataVersion.Load() }
func (p *Peer) SetDataVersion(v uint64) {
	p.dataVersion.Store(v)
}

// BumpDataVersion sets DataVersion to v if it is greater than the current
// value; replication applies are the only legitimate way data_version moves
// forward on a slave, so this keeps it monotone under concurrent callers.
func (p *Peer) BumpDataVersion(v uint64) {
	for {
		cur := p.dataVersion.Load()
		if v <= cur {
			return
		}
		if p.dataVersion.CompareAndSwap(cur, v) {
			return
		}
	}
}

func (p *Peer) ReplicaKey() [16]byte {
	p.keyMu.Lock()
	defer p.keyMu.Unlock()
	return p.replicaKey
}

func (p *Peer) SetReplicaKey(k [16]byte) {
	p.keyMu.Lock()
	defer p.keyMu.Unlock()
	p.replicaKey = k
}

// StatusTuple is the ranking key used by the election engine:
// lexicographic ascending on (is_master, data_version, server_id); the
// elected peer is the maximum.
type StatusTuple struct {
	ServerID    int
	IsMaster    bool
	DataVersion uint64
}

// Less implements the ranking order from cluster_cmp_server_status in the
// original source: is_master first, then data_version, then server_id.
func (a StatusTuple) Less(b StatusTuple) bool {
	if a.IsMaster != b.IsMaster {
		return !a.IsMaster && b.IsMaster
	}
	if a.DataVersion != b.DataVersion {
		return a.DataVersion < b.DataVersion
	}
	return a.ServerID < b.ServerID
}
