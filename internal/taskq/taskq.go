// Package taskq runs fire-and-forget background work on a bounded queue.
//
// The contract is "schedule without blocking": Enqueue never waits, a full
// queue rejects the task, and task failures go to a dedicated error sink
// instead of the caller.
package taskq

import (
	"context"
	"sync"
)

// Task is one unit of background work.
type Task func(ctx context.Context) error

// ErrorSink receives failures from executed tasks.
type ErrorSink func(err error)

const (
	defaultCapacity = 4096
	defaultWorkers  = 4
)

// Pool executes queued tasks on a fixed set of workers.
type Pool struct {
	tasks    chan Task
	capacity int
	workers  int
	sink     ErrorSink

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// Option applies a configuration option to the Pool.
type Option func(*Pool)

// WithCapacity sets the queue bound.
func WithCapacity(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.capacity = n
		}
	}
}

// WithWorkers sets the number of worker goroutines.
func WithWorkers(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithErrorSink sets the sink receiving task failures.
func WithErrorSink(sink ErrorSink) Option {
	return func(p *Pool) {
		if sink != nil {
			p.sink = sink
		}
	}
}

func New(opts ...Option) *Pool {
	p := &Pool{
		capacity: defaultCapacity,
		workers:  defaultWorkers,
		sink:     func(error) {},
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.tasks = make(chan Task, p.capacity)
	return p
}

// Run starts the workers and blocks until ctx is canceled and the queue is
// drained, or Close is called.
func (p *Pool) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx)
		}()
	}
	wg.Wait()
	close(p.done)
	return nil
}

func (p *Pool) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			// Drain what is already queued before exiting.
			for {
				select {
				case task, ok := <-p.tasks:
					if !ok {
						return
					}
					p.run(task)
				default:
					return
				}
			}
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			p.run(task)
		}
	}
}

func (p *Pool) run(task Task) {
	if err := task(context.Background()); err != nil {
		p.sink(err)
	}
}

// Enqueue schedules a task without blocking. It reports false when the
// queue is full or the pool is closed.
func (p *Pool) Enqueue(task Task) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.tasks <- task:
		return true
	default:
		return false
	}
}

// Len returns the number of queued tasks.
func (p *Pool) Len() int {
	return len(p.tasks)
}

// Close stops accepting tasks and lets workers drain the queue.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.tasks)
}

// Done is closed once Run has returned.
func (p *Pool) Done() <-chan struct{} {
	return p.done
}
