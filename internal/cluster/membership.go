package cluster

import (
	"fmt"
	"sync"

	"fastdir/internal/config"
	"fastdir/internal/netconn"

	"go.uber.org/zap"
)

// Roster is the immutable (at runtime) cluster view held on every node.
// The peer roster itself never changes after Load (dynamic membership is
// out of scope); what changes is each Peer's runtime status and the
// active/inactive slave groupings below.
type Roster struct {
	cfg        *config.Config
	log        *zap.SugaredLogger
	configSign [16]byte

	peers  []*Peer // stable order, indexed by position in config
	byID   map[int]*Peer
	myself *Peer

	mu             sync.RWMutex
	master         *Peer // nil if unknown
	nextMaster     *Peer // two-phase commit staging, cluster-thread only
	activeSlaves   map[int]*Peer
	inactiveSlaves map[int]*Peer
}

// NewRoster builds the roster from config. Exactly one entry must match
// cfg.MyServerID.
func NewRoster(cfg *config.Config, log *zap.SugaredLogger) (*Roster, error) {
	r := &Roster{
		cfg:            cfg,
		log:            log,
		configSign:     cfg.ConfigSign(),
		byID:           make(map[int]*Peer),
		activeSlaves:   make(map[int]*Peer),
		inactiveSlaves: make(map[int]*Peer),
	}

	for _, spec := range cfg.Peers {
		p := newPeer(spec, 0, 0, log)
		p.Conn = netconn.New(spec.ClusterAddr, cfg.ConnectTimeout(), cfg.NetworkTimeout(), log)
		r.peers = append(r.peers, p)
		r.byID[p.ServerID] = p
		if p.ServerID != cfg.MyServerID {
			r.inactiveSlaves[p.ServerID] = p
		}
	}

	myself, ok := r.byID[cfg.MyServerID]
	if !ok {
		return nil, fmt.Errorf("cluster: my_server_id %d has no matching roster entry", cfg.MyServerID)
	}
	r.myself = myself
	delete(r.inactiveSlaves, myself.ServerID)

	return r, nil
}

func (r *Roster) ConfigSign() [16]byte { return r.configSign }
func (r *Roster) ClusterID() int       { return r.cfg.ClusterID }
func (r *Roster) Myself() *Peer        { return r.myself }
func (r *Roster) Peers() []*Peer       { return r.peers }

func (r *Roster) GetPeerByID(id int) (*Peer, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// IteratePeers calls fn for every peer in stable roster order, myself
// included, stopping early if fn returns false.
func (r *Roster) IteratePeers(fn func(*Peer) bool) {
	for _, p := range r.peers {
		if !fn(p) {
			return
		}
	}
}

func (r *Roster) Master() *Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.master
}

func (r *Roster) SetMaster(p *Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.master = p
}

// ClearMaster drops the believed master — called on heartbeat failure to
// trigger re-election.
func (r *Roster) ClearMaster() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.master = nil
}

func (r *Roster) NextMaster() *Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nextMaster
}

func (r *Roster) SetNextMaster(p *Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextMaster = p
}

func (r *Roster) ClearNextMaster() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextMaster = nil
}

// MoveToActive transitions a peer from inactive to active slave status —
// called by the master on a successful JOIN_MASTER.
func (r *Roster) MoveToActive(p *Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inactiveSlaves, p.ServerID)
	r.activeSlaves[p.ServerID] = p
	p.SetStatus(StatusActive)
}

// MoveToInactive is the inverse, used when the master detects slave loss.
func (r *Roster) MoveToInactive(p *Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.activeSlaves, p.ServerID)
	r.inactiveSlaves[p.ServerID] = p
	p.SetStatus(StatusOffline)
}

// ResetSlaveArrays clears active/inactive tracking back to "everyone
// inactive" — called when this node becomes master (cluster_relationship.c
// calls this ct_reset_slave_arrays on commit-as-self).
func (r *Roster) ResetSlaveArrays() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activeSlaves = make(map[int]*Peer)
	r.inactiveSlaves = make(map[int]*Peer)
	for _, p := range r.peers {
		if p.ServerID != r.myself.ServerID {
			r.inactiveSlaves[p.ServerID] = p
		}
	}
}

func (r *Roster) ActiveSlaves() []*Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Peer, 0, len(r.activeSlaves))
	for _, p := range r.activeSlaves {
		out = append(out, p)
	}
	return out
}

func (r *Roster) InactiveSlaves() []*Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Peer, 0, len(r.inactiveSlaves))
	for _, p := range r.inactiveSlaves {
		out = append(out, p)
	}
	return out
}
