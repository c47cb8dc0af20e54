package executor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/aryankumar/fanout/internal/util"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Executor is a fixed-size pool of workers plus the admission gate every
// retrying call passes through. One Executor is meant to be created at process
// start and shared by all callers, so the number of in-flight remote calls has
// a single ceiling.
type Executor struct {
	// capacity is the number of worker goroutines
	capacity int

	// gate bounds simultaneous work-function executions
	gate *Gate

	// limiter optionally paces attempt starts
	limiter *rate.Limiter

	// logger for structured logging
	logger *slog.Logger

	// mu protects queue, closed and aborted; cond wakes idle workers
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []*job
	closed bool

	// abort is closed by Shutdown(false); retrying calls stop at their next wait
	abort     chan struct{}
	abortOnce sync.Once

	// startOnce launches the workers on first submission
	startOnce sync.Once

	// done is closed once every worker has exited
	done     chan struct{}
	doneOnce sync.Once

	submitted atomic.Int64
	completed atomic.Int64
	cancelled atomic.Int64
	running   atomic.Int32
}

// job is one unit of queued work; cancel resolves it without running
type job struct {
	run    func()
	cancel func(error)
}

// Stats is a point-in-time snapshot of executor activity
type Stats struct {
	Capacity     int
	GateCapacity int
	InFlight     int
	Running      int
	Queued       int
	Submitted    int64
	Completed    int64
	Cancelled    int64
}

// NewExecutor creates an executor. Workers are not started until the first submission.
func NewExecutor(opts ...Option) *Executor {
	cfg := newExecutorConfig(opts...)

	e := &Executor{
		capacity: cfg.capacity,
		gate:     NewGate(cfg.gateCapacity),
		limiter:  cfg.limiter,
		logger:   cfg.logger,
		abort:    make(chan struct{}),
		done:     make(chan struct{}),
	}
	e.cond = sync.NewCond(&e.mu)

	return e
}

// Submit enqueues fn for execution by one of the executor's workers and
// returns a handle for its result. It never blocks; it fails with
// util.ErrShutdown once Shutdown has been called.
func Submit[R any](ctx context.Context, e *Executor, fn func(ctx context.Context) (R, error)) (*Future[R], error) {
	if fn == nil {
		return nil, fmt.Errorf("submit: work function must not be nil")
	}

	future := newFuture[R]()
	err := e.enqueue(&job{
		run: func() {
			future.complete(callSafely(ctx, fn))
		},
		cancel: func(err error) {
			var zero R
			future.complete(zero, err)
		},
	})
	if err != nil {
		return nil, err
	}

	return future, nil
}

// enqueue appends j to the queue, starting the workers if this is the first submission
func (e *Executor) enqueue(j *job) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return fmt.Errorf("cannot submit work: %w", util.ErrShutdown)
	}

	e.start()
	e.queue = append(e.queue, j)
	e.submitted.Add(1)
	e.cond.Signal()

	e.logger.Debug("work submitted", "queued", len(e.queue))
	return nil
}

// start launches the workers exactly once. Called with mu held.
func (e *Executor) start() {
	e.startOnce.Do(func() {
		var g errgroup.Group
		for i := 0; i < e.capacity; i++ {
			workerID := i
			g.Go(func() error {
				return e.worker(workerID)
			})
		}

		go func() {
			_ = g.Wait()
			e.finish()
		}()

		e.logger.Info("executor started",
			"workers", e.capacity,
			"gate", e.gate.Capacity())
	})
}

// worker runs queued jobs until the executor is closed and the queue is empty
func (e *Executor) worker(workerID int) error {
	e.logger.Debug("worker started", "worker_id", workerID)

	for {
		j, ok := e.next()
		if !ok {
			e.logger.Debug("worker finished (no more work)", "worker_id", workerID)
			return nil
		}

		e.running.Add(1)
		j.run()
		e.running.Add(-1)
		e.completed.Add(1)
	}
}

// next blocks until a job is available or the executor is closed and drained
func (e *Executor) next() (*job, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for len(e.queue) == 0 && !e.closed {
		e.cond.Wait()
	}
	if len(e.queue) == 0 {
		return nil, false
	}

	j := e.queue[0]
	e.queue[0] = nil
	e.queue = e.queue[1:]
	return j, true
}

// Shutdown stops the executor from accepting work.
//
// With wait=true, queued work is allowed to drain and Shutdown blocks until
// every worker has exited. With wait=false, work that has not started is
// cancelled (its future resolves with util.ErrCancelled), running calls stop
// after their current attempt, and Shutdown returns immediately.
//
// Calling Shutdown more than once is safe.
func (e *Executor) Shutdown(wait bool) {
	e.mu.Lock()
	first := !e.closed
	e.closed = true

	var dropped []*job
	if !wait {
		e.abortOnce.Do(func() { close(e.abort) })
		dropped = e.queue
		e.queue = nil
	}
	e.cond.Broadcast()
	e.mu.Unlock()

	for _, j := range dropped {
		j.cancel(fmt.Errorf("work not started: %w", util.ErrCancelled))
		e.cancelled.Add(1)
	}

	// never started: nothing will close done on its own
	e.startOnce.Do(e.finish)

	if first {
		e.logger.Info("shutting down executor",
			"wait", wait,
			"cancelled", len(dropped),
			"running", e.running.Load())
	}

	if wait {
		<-e.done
		e.logger.Debug("executor shut down")
	}
}

func (e *Executor) finish() {
	e.doneOnce.Do(func() { close(e.done) })
}

// Done is closed once all workers have exited after Shutdown
func (e *Executor) Done() <-chan struct{} {
	return e.done
}

// IsShutdown returns true once Shutdown has been called
func (e *Executor) IsShutdown() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// aborting reports whether Shutdown(false) has been called
func (e *Executor) aborting() <-chan struct{} {
	return e.abort
}

// Capacity returns the number of workers
func (e *Executor) Capacity() int {
	return e.capacity
}

// Gate returns the admission gate shared by every call on this executor
func (e *Executor) Gate() *Gate {
	return e.gate
}

// Pending returns the number of queued jobs that have not started
func (e *Executor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// Stats returns a snapshot of executor activity
func (e *Executor) Stats() Stats {
	return Stats{
		Capacity:     e.capacity,
		GateCapacity: e.gate.Capacity(),
		InFlight:     e.gate.InFlight(),
		Running:      int(e.running.Load()),
		Queued:       e.Pending(),
		Submitted:    e.submitted.Load(),
		Completed:    e.completed.Load(),
		Cancelled:    e.cancelled.Load(),
	}
}

// callSafely runs fn, converting a panic into an error so one bad work
// function cannot take a worker down with it
func callSafely[R any](ctx context.Context, fn func(context.Context) (R, error)) (result R, err error) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			err = fmt.Errorf("work function panic: %v\nstack trace:\n%s", r, buf[:n])
		}
	}()

	return fn(ctx)
}
