// Package workerpool runs a bounded number of long-lived goroutines
// draining a shared job queue.
package workerpool

import (
	"context"
	"sync"

	"github.com/coldbrew/edgecache/internal/log"
	"github.com/coldbrew/edgecache/internal/queue"
)

// Job is an opaque unit of work executed exactly once by exactly one
// worker.
type Job func(ctx context.Context)

// Pool owns N workers draining a bounded job queue. There is no
// cancellation: once a job starts it runs to completion. Shutdown is out
// of scope — the process exits.
type Pool struct {
	size  int
	jobs  *queue.Queue[Job]
	inUse func(delta int) // optional metrics hook, may be nil

	wg sync.WaitGroup
}

// Option configures a Pool at construction.
type Option func(*Pool)

// WithInFlightGauge wires a callback invoked with +1 when a worker picks up
// a job and -1 when it finishes, letting callers track in-flight jobs
// (internal/metrics) without the pool importing the metrics package.
func WithInFlightGauge(fn func(delta int)) Option {
	return func(p *Pool) { p.inUse = fn }
}

// New spawns size workers pulling from jobs. size and the queue's capacity
// are independent: a full queue blocks Execute, not the workers.
func New(ctx context.Context, size int, jobs *queue.Queue[Job], opts ...Option) *Pool {
	if size <= 0 {
		size = 1
	}
	p := &Pool{size: size, jobs: jobs}
	for _, opt := range opts {
		opt(p)
	}

	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker(ctx, i)
	}
	return p
}

// Execute enqueues job, blocking if the queue is full.
func (p *Pool) Execute(ctx context.Context, job Job) error {
	return p.jobs.Push(ctx, job)
}

// Wait blocks until every worker goroutine has exited (queue closed and
// drained). Only used by tests; production processes never shut down the
// pool.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		job, err := p.jobs.Pop(ctx)
		if err != nil {
			return
		}
		p.run(ctx, id, job)
	}
}

// run invokes job with panic recovery: a panicking job terminates that
// single iteration, never the worker goroutine, so the pool's invariants
// (goroutine count, queue wiring) survive a bad job.
func (p *Pool) run(ctx context.Context, id int, job Job) {
	if p.inUse != nil {
		p.inUse(1)
		defer p.inUse(-1)
	}
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("worker %d: job panicked: %v", id, r)
		}
	}()
	job(ctx)
}
