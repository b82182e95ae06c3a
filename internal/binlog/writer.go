package binlog

import "fmt"

// writeRequest is one pending append: encode, persist, then hand off to
// Apply before the caller is told it succeeded.
type writeRequest struct {
	rec  Record
	done chan error
}

// WriteThread serializes every binlog append through a single goroutine,
// the Go analogue of the original's dedicated binlog write thread
// (server_binlog.c): one writer avoids interleaved fsyncs and appends
// records in the order they are submitted.
type WriteThread struct {
	store *FileStore
	apply func(Record) error

	reqCh  chan writeRequest
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewWriteThread wires a FileStore for durability and an apply callback
// (normally *dentry.Tree.Apply) that mutates in-memory state once a record
// is safely on disk.
func NewWriteThread(store *FileStore, apply func(Record) error) *WriteThread {
	return &WriteThread{
		store:  store,
		apply:  apply,
		reqCh:  make(chan writeRequest, 256),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

func (w *WriteThread) Start() {
	go w.run()
}

func (w *WriteThread) run() {
	defer close(w.doneCh)
	for {
		select {
		case req := <-w.reqCh:
			req.done <- w.handle(req.rec)
		case <-w.stopCh:
			return
		}
	}
}

func (w *WriteThread) handle(rec Record) error {
	if err := w.store.Append(rec); err != nil {
		return fmt.Errorf("binlog: persist fail, record dropped (data_version %d): %w", rec.DataVersion, err)
	}
	if err := w.apply(rec); err != nil {
		return fmt.Errorf("binlog: apply fail after persist (data_version %d): %w", rec.DataVersion, err)
	}
	return nil
}

// Submit enqueues rec and blocks until it has been durably written and
// applied, or the thread has been stopped.
func (w *WriteThread) Submit(rec Record) error {
	req := writeRequest{rec: rec, done: make(chan error, 1)}
	select {
	case w.reqCh <- req:
	case <-w.stopCh:
		return fmt.Errorf("binlog: write thread stopped")
	}
	select {
	case err := <-req.done:
		return err
	case <-w.stopCh:
		return fmt.Errorf("binlog: write thread stopped")
	}
}

func (w *WriteThread) Stop() {
	close(w.stopCh)
	<-w.doneCh
}
