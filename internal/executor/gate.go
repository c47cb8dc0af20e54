package executor

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Gate bounds how many work functions execute at the same instant,
// independent of how many calls are queued or sleeping between retries.
type Gate struct {
	sem      *semaphore.Weighted
	capacity int64
	inFlight atomic.Int64
}

// NewGate creates a gate admitting at most capacity concurrent holders (minimum 1)
func NewGate(capacity int) *Gate {
	if capacity <= 0 {
		capacity = 1
	}
	return &Gate{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: int64(capacity),
	}
}

// Acquire blocks until a slot is free or ctx is done
func (g *Gate) Acquire(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	g.inFlight.Add(1)
	return nil
}

// Release frees a slot taken by Acquire. It never blocks.
func (g *Gate) Release() {
	g.inFlight.Add(-1)
	g.sem.Release(1)
}

// Do runs fn while holding a slot. The slot is released on every exit
// path of fn, including a panic, which is re-raised after release.
func (g *Gate) Do(ctx context.Context, fn func()) error {
	if err := g.Acquire(ctx); err != nil {
		return err
	}
	defer g.Release()

	fn()
	return nil
}

// InFlight returns the number of slots currently held
func (g *Gate) InFlight() int {
	return int(g.inFlight.Load())
}

// Capacity returns the maximum number of concurrent holders
func (g *Gate) Capacity() int {
	return int(g.capacity)
}
