package cluster

import "testing"

func TestStatusTupleRankingIsMasterWins(t *testing.T) {
	master := StatusTuple{ServerID: 1, IsMaster: true, DataVersion: 5}
	slave := StatusTuple{ServerID: 2, IsMaster: false, DataVersion: 100}

	if !slave.Less(master) {
		t.Fatal("a non-master with higher data_version must still rank below a peer reporting is_master")
	}
}

func TestStatusTupleRankingDataVersionThenServerID(t *testing.T) {
	a := StatusTuple{ServerID: 1, DataVersion: 5}
	b := StatusTuple{ServerID: 2, DataVersion: 10}
	if !a.Less(b) {
		t.Fatal("lower data_version should rank lower when neither is master")
	}

	c := StatusTuple{ServerID: 1, DataVersion: 10}
	d := StatusTuple{ServerID: 2, DataVersion: 10}
	if !c.Less(d) {
		t.Fatal("equal data_version should break tie by lower server_id ranking lower")
	}
}

func TestPeerBumpDataVersionIsMonotone(t *testing.T) {
	p := &Peer{}
	p.SetDataVersion(5)

	p.BumpDataVersion(3)
	if p.DataVersion() != 5 {
		t.Fatalf("BumpDataVersion must not move backward: got %d, want 5", p.DataVersion())
	}

	p.BumpDataVersion(10)
	if p.DataVersion() != 10 {
		t.Fatalf("BumpDataVersion must advance forward: got %d, want 10", p.DataVersion())
	}
}

func TestPeerStatusString(t *testing.T) {
	p := &Peer{}
	p.SetStatus(StatusActive)
	if p.Status().String() != "active" {
		t.Fatalf("got %q", p.Status().String())
	}
}
