// Package workerpool runs independent units of work across a small set of
// goroutine-backed execution contexts, each holding its own per-worker
// state built once at spawn time.
//
// Dispatch uses an idle-worker LIFO stack with a FIFO overflow queue, and
// shutdown fans out to every worker and waits on them with
// golang.org/x/sync/errgroup — the pack-wide idiom for bounded
// goroutine-group fan-in, used here in place of the teacher's bare
// sync.WaitGroup (the teacher has no worker pool of its own; this
// construction is grounded on pkg/api/server.go's use of a
// concurrency-limiting semaphore generalized into a full task dispatcher).
package workerpool

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrPoolClosed is returned by Submit once Close has been called, and is
// the error every queued or in-flight task is rejected with at shutdown.
var ErrPoolClosed = errors.New("workerpool: pool has been closed")

// ErrWorkerTerminated is the result of a task whose execution panicked.
var ErrWorkerTerminated = errors.New("workerpool: worker terminated unexpectedly")

// Task is a unit of work submitted to the pool. state is whatever the
// pool's NewState factory produced for the worker executing it — workers
// each hold their own state (e.g. a preprocessed search facade) for the
// lifetime of the pool, never sharing it.
type Task func(state any) (any, error)

type job struct {
	task     Task
	resultCh chan result
}

type result struct {
	value any
	err   error
}

// Pool runs tasks on goroutine workers, with an idle LIFO stack and a
// FIFO overflow queue for requests with no idle worker available.
//
// Submit and Close are the pool's whole contract. No interface type is
// declared for it: pkg/pathfinder holds a *Pool directly.
type Pool struct {
	mu      sync.Mutex
	states  []any
	workCh  []chan job
	idle    []int // LIFO: push/pop at the tail
	pending []job // FIFO overflow queue
	closed  bool
	quit    chan struct{}
	eg      *errgroup.Group
}

// New spawns size workers (size < 1 defaults to the logical CPU count,
// minimum 1), each holding the state newState returns.
func New(size int, newState func() any) *Pool {
	if size < 1 {
		size = runtime.NumCPU()
		if size < 1 {
			size = 1
		}
	}
	var eg errgroup.Group
	p := &Pool{
		states: make([]any, size),
		workCh: make([]chan job, size),
		idle:   make([]int, 0, size),
		quit:   make(chan struct{}),
		eg:     &eg,
	}
	for i := 0; i < size; i++ {
		p.states[i] = newState()
		// Buffered by one: release() re-dispatches a queued job to this
		// same worker's channel from inside the worker's own goroutine,
		// before it loops back to receive — an unbuffered channel would
		// deadlock that self-handoff.
		p.workCh[i] = make(chan job, 1)
		p.idle = append(p.idle, i)
	}
	for i := 0; i < size; i++ {
		idx := i
		eg.Go(func() error {
			p.runWorker(idx)
			return nil
		})
	}
	return p
}

// Submit dispatches task to an idle worker, or queues it FIFO if every
// worker is busy, and blocks for the result or ctx cancellation.
func (p *Pool) Submit(ctx context.Context, task Task) (any, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	j := job{task: task, resultCh: make(chan result, 1)}
	var dispatchTo chan job
	if n := len(p.idle); n > 0 {
		i := p.idle[n-1]
		p.idle = p.idle[:n-1]
		dispatchTo = p.workCh[i]
	} else {
		p.pending = append(p.pending, j)
	}
	p.mu.Unlock()

	if dispatchTo != nil {
		dispatchTo <- j
	}

	select {
	case r := <-j.resultCh:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.quit:
		return nil, ErrPoolClosed
	}
}

// Close marks the pool disposed, rejects every queued and in-flight task
// with ErrPoolClosed, and terminates every worker, waiting for them to
// exit (a worker still running a task exits once that task returns).
// Idempotent.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()

	for _, j := range pending {
		j.resultCh <- result{nil, ErrPoolClosed}
	}
	close(p.quit)
	return p.eg.Wait()
}

func (p *Pool) runWorker(i int) {
	for {
		select {
		case j := <-p.workCh[i]:
			v, err := p.runTask(i, j.task)
			j.resultCh <- result{v, err}
			p.release(i)
		case <-p.quit:
			return
		}
	}
}

// runTask recovers a panicking task in place of the OS-process crash the
// spec's model assumes — a goroutine panic doesn't take the pool down the
// way a crashed worker process would, so "spawn a replacement" is realized
// here as simply not dying: the worker recovers and keeps serving.
func (p *Pool) runTask(i int, task Task) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrWorkerTerminated
		}
	}()
	return task(p.states[i])
}

func (p *Pool) release(i int) {
	p.mu.Lock()
	if len(p.pending) > 0 {
		j := p.pending[0]
		p.pending = p.pending[1:]
		p.mu.Unlock()
		p.workCh[i] <- j
		return
	}
	p.idle = append(p.idle, i)
	p.mu.Unlock()
}
