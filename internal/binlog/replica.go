package binlog

import (
	"fmt"
	"time"
)

// RecordProcessResult is the outcome of replaying one pushed record,
// queued for the response packer — the Go analogue of
// replica_consumer_thread.c's RecordProcessResult.
type RecordProcessResult struct {
	DataVersion uint64
	Err         error
}

// ReplicaConsumer is the slave-side counterpart of Producer: it receives
// raw PUSH_BINLOG_REQ payloads, buffers them through a pool of reusable
// RecordBuffers, and replays them in order against the local dentry tree
// on a dedicated goroutine. Modeled directly on
// replica_consumer_thread.c's three-queue design (free/input/result).
type ReplicaConsumer struct {
	pool  *BufferPool
	apply func(Record) error

	input  chan *RecordBuffer
	result chan RecordProcessResult

	lastDataVersion uint64

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewReplicaConsumer creates a consumer with the given buffer pool and an
// apply callback (normally *dentry.Tree.Apply) to run each decoded record
// against. queueDepth bounds the input/result queues.
func NewReplicaConsumer(pool *BufferPool, apply func(Record) error, queueDepth int) *ReplicaConsumer {
	return &ReplicaConsumer{
		pool:   pool,
		apply:  apply,
		input:  make(chan *RecordBuffer, queueDepth),
		result: make(chan RecordProcessResult, queueDepth),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

func (c *ReplicaConsumer) Start() {
	go c.replayLoop()
}

func (c *ReplicaConsumer) Stop() {
	close(c.stopCh)
	<-c.doneCh
}

// PushRaw is the Go analogue of deal_replica_push_request: it acquires a
// buffer from the pool (busy-waiting, bounded by the caller's deadline),
// stamps it with data_version, copies the payload in, and enqueues it for
// replay. Returns an error (callers translate to fdirerr.EAGAIN) if no
// buffer became free before deadline elapsed.
func (c *ReplicaConsumer) PushRaw(payload []byte, dataVersion uint64, deadline time.Duration) error {
	done := make(chan struct{})
	timer := time.AfterFunc(deadline, func() { close(done) })
	defer timer.Stop()

	rb, ok := c.pool.Get(len(payload), done)
	if !ok {
		return fmt.Errorf("binlog: no free buffer within %s, push rejected (EAGAIN)", deadline)
	}
	rb.Data = append(rb.Data[:0], payload...)
	rb.DataVersion = dataVersion

	select {
	case c.input <- rb:
		return nil
	case <-c.stopCh:
		rb.Release()
		return fmt.Errorf("binlog: consumer stopped")
	}
}

// replayLoop pops buffers in order, decodes and applies their records,
// and pushes one RecordProcessResult per record — deal_binlog_thread_func.
func (c *ReplicaConsumer) replayLoop() {
	defer close(c.doneCh)
	for {
		select {
		case rb := <-c.input:
			c.replayBuffer(rb)
		case <-c.stopCh:
			return
		}
	}
}

func (c *ReplicaConsumer) replayBuffer(rb *RecordBuffer) {
	defer rb.Release()

	records, err := DecodeAll(rb.Data)
	if err != nil {
		c.pushResult(RecordProcessResult{DataVersion: rb.DataVersion, Err: fmt.Errorf("binlog: decode replica push: %w", err)})
		return
	}

	for _, rec := range records {
		if c.lastDataVersion != 0 && rec.DataVersion <= c.lastDataVersion {
			// Idempotent-skip: already applied (§4.8, §8 round-trip laws).
			c.pushResult(RecordProcessResult{DataVersion: rec.DataVersion})
			continue
		}
		if c.lastDataVersion != 0 && rec.DataVersion != c.lastDataVersion+1 {
			err := fmt.Errorf("binlog: data_version gap: expected %d, got %d", c.lastDataVersion+1, rec.DataVersion)
			c.pushResult(RecordProcessResult{DataVersion: rec.DataVersion, Err: err})
			return
		}
		if err := c.apply(rec); err != nil {
			c.pushResult(RecordProcessResult{DataVersion: rec.DataVersion, Err: err})
			return
		}
		c.lastDataVersion = rec.DataVersion
		c.pushResult(RecordProcessResult{DataVersion: rec.DataVersion})
	}
}

func (c *ReplicaConsumer) pushResult(r RecordProcessResult) {
	select {
	case c.result <- r:
	case <-c.stopCh:
	}
}

// DrainResults is the Go analogue of deal_replica_push_result: it collects
// as many pending results as are immediately available (bounded by max),
// for packing into one PUSH_BINLOG_RESP.
func (c *ReplicaConsumer) DrainResults(max int) []RecordProcessResult {
	var out []RecordProcessResult
	for len(out) < max {
		select {
		case r := <-c.result:
			out = append(out, r)
		default:
			return out
		}
	}
	return out
}

// LastDataVersion reports the highest data_version successfully replayed.
func (c *ReplicaConsumer) LastDataVersion() uint64 {
	return c.lastDataVersion
}
