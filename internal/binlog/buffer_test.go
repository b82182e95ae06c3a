package binlog

import "testing"

func TestBufferPoolGetAndRelease(t *testing.T) {
	pool := NewBufferPool(1, 64)
	done := make(chan struct{})

	rb, ok := pool.Get(32, done)
	if !ok {
		t.Fatal("expected a free buffer")
	}
	if rb.refCount.Load() != initRefCount {
		t.Fatalf("refCount = %d, want %d", rb.refCount.Load(), initRefCount)
	}

	// Pool is empty now; a second Get should block until release.
	released := make(chan struct{})
	go func() {
		rb.Release()
		close(released)
	}()
	<-released

	rb2, ok := pool.Get(32, done)
	if !ok {
		t.Fatal("expected buffer to be returned to the pool after refcount reached zero")
	}
	if rb2 != rb {
		t.Fatal("expected the same underlying buffer to be reused")
	}
}

func TestBufferPoolGrowsForLargerPayload(t *testing.T) {
	pool := NewBufferPool(1, 16)
	done := make(chan struct{})

	rb, ok := pool.Get(1024, done)
	if !ok {
		t.Fatal("expected a free buffer")
	}
	if cap(rb.Data) < 1024 {
		t.Fatalf("buffer not grown: cap=%d, want >= 1024", cap(rb.Data))
	}
}

func TestBufferPoolShrinksOversizedBuffer(t *testing.T) {
	pool := NewBufferPool(1, 16)
	done := make(chan struct{})

	rb, _ := pool.Get(1024, done)
	rb.Release()

	rb2, ok := pool.Get(1, done)
	if !ok {
		t.Fatal("expected a free buffer")
	}
	if cap(rb2.Data) != 16 {
		t.Fatalf("buffer not shrunk back to init size: cap=%d, want 16", cap(rb2.Data))
	}
}

func TestBufferPoolGetTimesOut(t *testing.T) {
	pool := NewBufferPool(1, 16)
	done := make(chan struct{})

	rb, ok := pool.Get(16, done)
	if !ok || rb == nil {
		t.Fatal("expected first Get to succeed")
	}

	close(done)
	if _, ok := pool.Get(16, done); ok {
		t.Fatal("expected Get to fail once the pool is exhausted and done is closed")
	}
}
