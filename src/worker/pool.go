package worker

import (
	"context"
	"errors"
	"log"
	"runtime"
	"sync"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("worker pool closed")

// Task is a unit of work. It receives the context it was submitted with.
type Task func(ctx context.Context)

// Pool is a fixed-size worker pool with a 1-slot input queue (strict back-pressure).
type Pool struct {
	tasks  chan task
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

type task struct {
	ctx  context.Context
	name string
	fn   Task
}

// New creates a worker pool. Size defaults to NumCPU when size<=0. Queue is 1 slot.
func New(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	p := &Pool{tasks: make(chan task, 1)}
	p.start(size)
	return p
}

func (p *Pool) start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for t := range p.tasks {
				p.run(t)
			}
		}()
	}
}

func (p *Pool) run(t task) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Worker: task %s panicked: %v", t.name, r)
		}
	}()
	if err := t.ctx.Err(); err != nil {
		log.Printf("Worker: skipping %s, context done: %v", t.name, err)
		return
	}
	log.Printf("Worker: starting %s", t.name)
	t.fn(t.ctx)
	log.Printf("Worker: %s done", t.name)
}

// TrySubmit enqueues a task if the single-slot queue is free. Returns false if dropped.
func (p *Pool) TrySubmit(ctx context.Context, name string, fn Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.tasks <- task{ctx: ctx, name: name, fn: fn}:
		return true
	default:
		return false
	}
}

// Submit waits for queue space until ctx is done.
func (p *Pool) Submit(ctx context.Context, name string, fn Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.tasks <- task{ctx: ctx, name: name, fn: fn}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the pool after draining current work.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()
	p.wg.Wait()
}
