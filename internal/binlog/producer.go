package binlog

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Producer is the master-side binlog pipeline: it assigns strictly
// monotone data_version numbers, persists each record through a
// WriteThread, and fans each Record out to every subscribed slave session.
// Grounded on the relationship between server_binlog.c (version
// assignment + durability) and replica_consumer_thread.c's push path on
// the receiving side.
type Producer struct {
	writer *WriteThread

	// produceMu makes version assignment, persistence and fan-out one
	// step, so records reach the writer and subscribers in version order.
	produceMu   sync.Mutex
	nextVersion atomic.Uint64

	mu   sync.RWMutex
	subs map[int]chan Record // serverID -> this slave's fan-out channel
}

func NewProducer(writer *WriteThread, startVersion uint64) *Producer {
	p := &Producer{writer: writer, subs: make(map[int]chan Record)}
	p.nextVersion.Store(startVersion)
	return p
}

// CurrentVersion returns the data_version of the last record produced.
func (p *Producer) CurrentVersion() uint64 {
	return p.nextVersion.Load() - 1
}

// Produce assigns the next data_version, persists+applies the record via
// the write thread, and broadcasts it to every subscriber. Subscribers
// that are not keeping up get the record dropped from their channel
// rather than blocking the whole pipeline; a slave that falls behind this
// way sees a data_version gap on a later push, which its ReplicaConsumer
// rejects. No resync of the dropped records is performed.
func (p *Producer) Produce(op Op, namespace, path string, data []byte) (Record, error) {
	p.produceMu.Lock()
	defer p.produceMu.Unlock()

	rec := Record{
		DataVersion: p.nextVersion.Add(1) - 1,
		Op:          op,
		Namespace:   namespace,
		Path:        path,
		Data:        data,
	}

	if err := p.writer.Submit(rec); err != nil {
		return Record{}, fmt.Errorf("binlog: produce data_version %d: %w", rec.DataVersion, err)
	}

	p.mu.RLock()
	for id, ch := range p.subs {
		select {
		case ch <- rec:
		default:
			_ = id // slow subscriber, drop; the replica will report the gap
		}
	}
	p.mu.RUnlock()

	return rec, nil
}

// Subscribe registers a new slave fan-out channel. The returned function
// must be called to unregister when the session ends.
func (p *Producer) Subscribe(serverID int, buf int) (<-chan Record, func()) {
	ch := make(chan Record, buf)
	p.mu.Lock()
	p.subs[serverID] = ch
	p.mu.Unlock()

	return ch, func() {
		p.mu.Lock()
		delete(p.subs, serverID)
		p.mu.Unlock()
		close(ch)
	}
}
