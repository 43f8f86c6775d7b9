package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRunsTasks(t *testing.T) {
	p := New(2)
	var n int32
	done := make(chan struct{}, 3)
	for i := 0; i < 3; i++ {
		if err := p.Submit(context.Background(), "count", func(context.Context) {
			atomic.AddInt32(&n, 1)
			done <- struct{}{}
		}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for tasks")
		}
	}
	p.Close()
	if atomic.LoadInt32(&n) != 3 {
		t.Fatalf("ran %d tasks, want 3", n)
	}
}

func TestTrySubmitBackPressure(t *testing.T) {
	p := New(1)
	defer p.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	if !p.TrySubmit(context.Background(), "block", func(context.Context) {
		close(started)
		<-release
	}) {
		t.Fatal("first submit should succeed")
	}
	<-started

	// Worker busy; one slot free in the queue.
	if !p.TrySubmit(context.Background(), "queued", func(context.Context) {}) {
		t.Fatal("queue slot should accept one task")
	}
	if p.TrySubmit(context.Background(), "dropped", func(context.Context) {}) {
		t.Fatal("expected drop when queue is full")
	}
	close(release)
}

func TestSubmitAfterClose(t *testing.T) {
	p := New(1)
	p.Close()
	if err := p.Submit(context.Background(), "late", func(context.Context) {}); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	p.Close()
}

func TestPanicDoesNotKillWorker(t *testing.T) {
	p := New(1)
	defer p.Close()

	_ = p.Submit(context.Background(), "panic", func(context.Context) { panic("boom") })
	done := make(chan struct{})
	_ = p.Submit(context.Background(), "after", func(context.Context) { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker died after panic")
	}
}
