package queue

import (
	"context"
	"sync"
)

// Pool is an in-process Dispatcher backed by a buffered channel and a fixed
// set of worker goroutines.
type Pool struct {
	tasks   chan Task
	workers int

	mu     sync.RWMutex
	closed bool
}

func NewPool(workers, buffer int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if buffer < 0 {
		buffer = 0
	}
	return &Pool{tasks: make(chan Task, buffer), workers: workers}
}

// Submit queues a task. When the buffer is full it waits for room or for ctx.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts the workers and blocks until ctx is done. It then stops
// accepting tasks, lets the workers finish everything already queued and
// returns. Tasks run with a context that is not cancelled by ctx.
func (p *Pool) Run(ctx context.Context, r Runner) error {
	workCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go func() {
			defer wg.Done()
			for task := range p.tasks {
				r.Run(workCtx, task)
			}
		}()
	}

	<-ctx.Done()
	p.close()
	wg.Wait()
	return nil
}

func (p *Pool) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
}

var _ Dispatcher = (*Pool)(nil)
