package executor

import (
	"context"
	"sync"
)

// Future is a handle to the eventual result of work submitted to an Executor
type Future[R any] struct {
	done  chan struct{}
	once  sync.Once
	value R
	err   error
}

func newFuture[R any]() *Future[R] {
	return &Future[R]{done: make(chan struct{})}
}

// complete resolves the future; only the first call has an effect
func (f *Future[R]) complete(value R, err error) {
	f.once.Do(func() {
		f.value = value
		f.err = err
		close(f.done)
	})
}

// Done is closed once the result is available
func (f *Future[R]) Done() <-chan struct{} {
	return f.done
}

// IsReady reports whether the result is available without blocking
func (f *Future[R]) IsReady() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Result blocks until the work finishes and returns its value or error
func (f *Future[R]) Result() (R, error) {
	<-f.done
	return f.value, f.err
}

// Wait is like Result but gives up when ctx is done.
// Giving up does not cancel the submitted work.
func (f *Future[R]) Wait(ctx context.Context) (R, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}
