package cluster

import (
	"testing"

	"fastdir/internal/config"
)

func testRoster(t *testing.T, myID int) *Roster {
	t.Helper()
	cfg := &config.Config{
		ClusterID:  1,
		MyServerID: myID,
		Peers: []config.PeerSpec{
			{ServerID: 1, ClusterAddr: "127.0.0.1:11411", ServiceAddr: "127.0.0.1:11401"},
			{ServerID: 2, ClusterAddr: "127.0.0.1:11412", ServiceAddr: "127.0.0.1:11402"},
			{ServerID: 3, ClusterAddr: "127.0.0.1:11413", ServiceAddr: "127.0.0.1:11403"},
		},
	}
	r, err := NewRoster(cfg, nil)
	if err != nil {
		t.Fatalf("NewRoster: %v", err)
	}
	return r
}

// TestHandlePreSetNextMasterRejectsConcurrentCandidate covers §8 scenario 5:
// the second of two concurrent PRE_SET_NEXT_MASTER calls for different
// candidates is rejected with EEXIST and next_master stays as first-staged.
func TestHandlePreSetNextMasterRejectsConcurrentCandidate(t *testing.T) {
	roster := testRoster(t, 3)
	e := NewElection(roster, nil)

	if errno := e.HandlePreSetNextMaster(1); errno != 0 {
		t.Fatalf("first pre-set should succeed, got errno %v", errno)
	}
	if got := roster.NextMaster(); got == nil || got.ServerID != 1 {
		t.Fatalf("expected next_master staged to 1, got %+v", got)
	}

	errno := e.HandlePreSetNextMaster(2)
	if errno.String() != "EEXIST" {
		t.Fatalf("expected EEXIST for a conflicting concurrent candidate, got %v", errno)
	}
	// The rejecting peer's own next_master is left untouched by the reject
	// itself (§4.4: "clears next_master on the aborting node only"); the
	// candidate that lost the race is responsible for clearing its own
	// staged value, not this peer's.
	if got := roster.NextMaster(); got == nil || got.ServerID != 1 {
		t.Fatalf("expected next_master to remain staged to 1, got %+v", got)
	}
}

// TestHandlePreSetNextMasterIsIdempotentForSameCandidate covers the case
// where phase 1 is retried for the same candidate (e.g. a retried RPC).
func TestHandlePreSetNextMasterIsIdempotentForSameCandidate(t *testing.T) {
	roster := testRoster(t, 3)
	e := NewElection(roster, nil)

	if errno := e.HandlePreSetNextMaster(1); errno != 0 {
		t.Fatalf("first pre-set should succeed, got errno %v", errno)
	}
	if errno := e.HandlePreSetNextMaster(1); errno != 0 {
		t.Fatalf("repeated pre-set for the same candidate should succeed, got errno %v", errno)
	}
}

// TestHandleCommitNextMasterRejectsMismatch covers the commit-phase half of
// §8 scenario 5: COMMIT_NEXT_MASTER for a candidate that was never staged
// (or disagrees with what was staged) fails with EBUSY.
func TestHandleCommitNextMasterRejectsMismatch(t *testing.T) {
	roster := testRoster(t, 3)
	e := NewElection(roster, nil)

	errno := e.HandleCommitNextMaster(1)
	if errno.String() != "EBUSY" {
		t.Fatalf("expected EBUSY when no next_master is staged, got %v", errno)
	}

	e.HandlePreSetNextMaster(1)
	errno = e.HandleCommitNextMaster(2)
	if errno.String() != "EBUSY" {
		t.Fatalf("expected EBUSY for a commit disagreeing with the staged candidate, got %v", errno)
	}
}

// TestHandleCommitNextMasterAppliesOnSelf covers §8 invariant 4: a commit
// for this node's own server_id sets master and is_master together.
func TestHandleCommitNextMasterAppliesOnSelf(t *testing.T) {
	roster := testRoster(t, 3)
	e := NewElection(roster, nil)

	e.HandlePreSetNextMaster(3)
	errno := e.HandleCommitNextMaster(3)
	if errno != 0 {
		t.Fatalf("expected commit to succeed, got errno %v", errno)
	}

	if !roster.Myself().IsMaster() {
		t.Fatal("expected myself.IsMaster() to be true after committing self as master")
	}
	if got := roster.Master(); got == nil || got.ServerID != 3 {
		t.Fatalf("expected master pointer set to server 3, got %+v", got)
	}
	if roster.NextMaster() != nil {
		t.Fatal("expected next_master to be cleared after commit")
	}
}

func TestStatusTupleRankingMaximumWins(t *testing.T) {
	a := StatusTuple{ServerID: 1, IsMaster: false, DataVersion: 7}
	b := StatusTuple{ServerID: 2, IsMaster: false, DataVersion: 9}
	c := StatusTuple{ServerID: 3, IsMaster: true, DataVersion: 1}

	if !(a.Less(b) && b.Less(c)) {
		t.Fatalf("expected a < b < c under (is_master, data_version, server_id) ranking")
	}
}
