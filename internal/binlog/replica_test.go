package binlog

import (
	"testing"
	"time"
)

func applyToSlice(applied *[]Record) func(Record) error {
	return func(r Record) error {
		*applied = append(*applied, r)
		return nil
	}
}

func TestReplicaConsumerAppliesInOrder(t *testing.T) {
	var applied []Record
	pool := NewBufferPool(4, 256)
	c := NewReplicaConsumer(pool, applyToSlice(&applied), 16)
	c.Start()
	defer c.Stop()

	r1 := Record{DataVersion: 1, Op: OpCreateDentry, Namespace: "ns", Path: "/a"}
	r2 := Record{DataVersion: 2, Op: OpCreateDentry, Namespace: "ns", Path: "/b"}
	payload := append(append([]byte{}, r1.Encode()...), r2.Encode()...)

	if err := c.PushRaw(payload, r2.DataVersion, time.Second); err != nil {
		t.Fatalf("PushRaw: %v", err)
	}

	results := waitForN(t, c, 2)
	if results[0].DataVersion != 1 || results[0].Err != nil {
		t.Fatalf("unexpected first result: %+v", results[0])
	}
	if results[1].DataVersion != 2 || results[1].Err != nil {
		t.Fatalf("unexpected second result: %+v", results[1])
	}
	if c.LastDataVersion() != 2 {
		t.Fatalf("LastDataVersion = %d, want 2", c.LastDataVersion())
	}
}

func TestReplicaConsumerRejectsGap(t *testing.T) {
	var applied []Record
	pool := NewBufferPool(4, 256)
	c := NewReplicaConsumer(pool, applyToSlice(&applied), 16)
	c.Start()
	defer c.Stop()

	r1 := Record{DataVersion: 1, Op: OpCreateDentry, Namespace: "ns", Path: "/a"}
	if err := c.PushRaw(r1.Encode(), 1, time.Second); err != nil {
		t.Fatalf("PushRaw: %v", err)
	}
	waitForN(t, c, 1)

	// Skip straight to data_version 3: a gap, per §4.8/§8 scenario 4.
	r3 := Record{DataVersion: 3, Op: OpCreateDentry, Namespace: "ns", Path: "/c"}
	if err := c.PushRaw(r3.Encode(), 3, time.Second); err != nil {
		t.Fatalf("PushRaw: %v", err)
	}
	results := waitForN(t, c, 1)
	if results[0].Err == nil {
		t.Fatal("expected a gap error for data_version 3 following applied=1")
	}
	if len(applied) != 1 {
		t.Fatalf("expected the gapped record to not be applied, got %d applied records", len(applied))
	}
}

func TestReplicaConsumerSkipsAlreadyAppliedRecord(t *testing.T) {
	var applied []Record
	pool := NewBufferPool(4, 256)
	c := NewReplicaConsumer(pool, applyToSlice(&applied), 16)
	c.Start()
	defer c.Stop()

	r1 := Record{DataVersion: 1, Op: OpCreateDentry, Namespace: "ns", Path: "/a"}
	if err := c.PushRaw(r1.Encode(), 1, time.Second); err != nil {
		t.Fatalf("PushRaw: %v", err)
	}
	waitForN(t, c, 1)

	// Re-push the same record: must be a no-op ack, not an error.
	if err := c.PushRaw(r1.Encode(), 1, time.Second); err != nil {
		t.Fatalf("PushRaw: %v", err)
	}
	results := waitForN(t, c, 1)
	if results[0].Err != nil {
		t.Fatalf("expected idempotent skip, got error: %v", results[0].Err)
	}
	if len(applied) != 1 {
		t.Fatalf("expected apply callback not to re-run, got %d calls", len(applied))
	}
}

func waitForN(t *testing.T, c *ReplicaConsumer, n int) []RecordProcessResult {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	var out []RecordProcessResult
	for len(out) < n && time.Now().Before(deadline) {
		out = append(out, c.DrainResults(n-len(out))...)
		if len(out) < n {
			time.Sleep(time.Millisecond)
		}
	}
	if len(out) != n {
		t.Fatalf("got %d results, want %d", len(out), n)
	}
	return out
}
