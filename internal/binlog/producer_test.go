package binlog

import (
	"testing"
	"time"
)

func newTestProducer(t *testing.T) *Producer {
	t.Helper()
	dir := t.TempDir()
	store, err := OpenFileStore(dir, 1<<20)
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	var applied []Record
	writer := NewWriteThread(store, func(r Record) error {
		applied = append(applied, r)
		return nil
	})
	writer.Start()
	t.Cleanup(writer.Stop)

	return NewProducer(writer, 1)
}

func TestProducerAssignsMonotoneDataVersions(t *testing.T) {
	p := newTestProducer(t)

	r1, err := p.Produce(OpCreateDentry, "ns", "/a", nil)
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	r2, err := p.Produce(OpCreateDentry, "ns", "/b", nil)
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}

	if r1.DataVersion != 1 || r2.DataVersion != 2 {
		t.Fatalf("expected data_versions 1,2, got %d,%d", r1.DataVersion, r2.DataVersion)
	}
	if p.CurrentVersion() != 2 {
		t.Fatalf("CurrentVersion = %d, want 2", p.CurrentVersion())
	}
}

func TestProducerFansOutToSubscribers(t *testing.T) {
	p := newTestProducer(t)

	ch, unsubscribe := p.Subscribe(2, 4)
	defer unsubscribe()

	if _, err := p.Produce(OpCreateDentry, "ns", "/a", []byte("v")); err != nil {
		t.Fatalf("Produce: %v", err)
	}

	select {
	case rec := <-ch:
		if rec.Path != "/a" || rec.DataVersion != 1 {
			t.Fatalf("unexpected fanned-out record: %+v", rec)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscriber fan-out")
	}
}

func TestProducerUnsubscribeClosesChannel(t *testing.T) {
	p := newTestProducer(t)
	ch, unsubscribe := p.Subscribe(5, 4)
	unsubscribe()

	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed after unsubscribe")
	}
}
