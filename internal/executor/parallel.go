package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
)

// CallOption configures a single Map, FlatMap or MapOutcomes call
type CallOption func(*callConfig)

type callConfig struct {
	policy       RetryPolicy
	ignoreErrors bool
	progress     func(done, total int)
}

// WithRetryPolicy sets the retry policy applied to each item
func WithRetryPolicy(policy RetryPolicy) CallOption {
	return func(cfg *callConfig) {
		cfg.policy = policy
	}
}

// WithIgnoreErrors controls what happens when an item fails after its retries.
// When true (the default) the item is dropped from the result. When false the
// call fails with an *ItemError as soon as any item fails, and items that have
// not started are abandoned.
func WithIgnoreErrors(ignore bool) CallOption {
	return func(cfg *callConfig) {
		cfg.ignoreErrors = ignore
	}
}

// WithProgress registers a callback invoked after each item finishes.
// It is called from the collecting goroutine, never concurrently.
func WithProgress(fn func(done, total int)) CallOption {
	return func(cfg *callConfig) {
		cfg.progress = fn
	}
}

func newCallConfig(opts ...CallOption) *callConfig {
	cfg := &callConfig{
		policy:       DefaultRetryPolicy(),
		ignoreErrors: true,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// ItemError reports the failure of one item under strict error handling
type ItemError struct {
	Index int
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %d: %v", e.Index, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// Outcome is the result of processing one item
type Outcome[T, R any] struct {
	// Index is the item's position in the input slice
	Index int

	Item  T
	Value R
	Err   error

	// Attempts is the number of times the work function ran
	Attempts int

	// Duration covers all attempts and backoff waits
	Duration time.Duration
}

// Succeeded reports whether the item produced a value
func (o Outcome[T, R]) Succeeded() bool {
	return o.Err == nil
}

// Map applies fn to every item on the executor, each item through its own
// retrying call, and returns the successful values in completion order.
//
// An empty items slice returns an empty result without touching the executor.
func Map[T, R any](ctx context.Context, e *Executor, fn WorkFunc[T, R], items []T, opts ...CallOption) ([]R, error) {
	cfg := newCallConfig(opts...)

	values := make([]R, 0, len(items))
	err := fanOut(ctx, e, fn, items, cfg, func(o Outcome[T, R]) {
		if o.Err == nil {
			values = append(values, o.Value)
		}
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

// FlatMap is Map for work functions returning several values per item;
// the per-item slices are concatenated in completion order.
func FlatMap[T, R any](ctx context.Context, e *Executor, fn WorkFunc[T, []R], items []T, opts ...CallOption) ([]R, error) {
	chunks, err := Map(ctx, e, fn, items, opts...)
	if err != nil {
		return nil, err
	}
	return lo.Flatten(chunks), nil
}

// MapOutcomes applies fn to every item and returns one Outcome per item in
// completion order, failures included. Error handling options are ignored.
// It fails only when an item cannot be submitted or ctx ends before every
// item has finished.
func MapOutcomes[T, R any](ctx context.Context, e *Executor, fn WorkFunc[T, R], items []T, opts ...CallOption) ([]Outcome[T, R], error) {
	cfg := newCallConfig(opts...)
	cfg.ignoreErrors = true

	outcomes := make([]Outcome[T, R], 0, len(items))
	err := fanOut(ctx, e, fn, items, cfg, func(o Outcome[T, R]) {
		outcomes = append(outcomes, o)
	})
	if err != nil {
		return nil, err
	}
	return outcomes, nil
}

// fanOut submits one retrying call per item and hands each outcome to
// collect as it completes. In strict mode the first failure cancels the
// remaining items and is returned. An item that fails after ctx itself has
// ended stops the call with ctx's error in both modes, so a cancelled call
// never looks like one whose items were all skipped.
func fanOut[T, R any](ctx context.Context, e *Executor, fn WorkFunc[T, R], items []T, cfg *callConfig, collect func(Outcome[T, R])) error {
	total := len(items)
	if total == 0 {
		return nil
	}

	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// failure is set once, before any outcome cancelled because of it is sent
	var (
		failOnce sync.Once
		failure  *ItemError
	)
	fail := func(index int, err error) {
		if err == nil || cfg.ignoreErrors {
			return
		}
		failOnce.Do(func() {
			failure = &ItemError{Index: index, Err: err}
			cancel()
		})
	}

	results := make(chan Outcome[T, R], total)
	submitted := 0
	var submitErr error

	for i, item := range items {
		index, item := i, item
		err := e.enqueue(&job{
			run: func() {
				start := time.Now()
				attempts := 0
				value, err := callSafely(ctx, func(ctx context.Context) (R, error) {
					v, n, err := run(ctx, e, fn, item, cfg.policy)
					attempts = n
					return v, err
				})
				// cancel queued siblings before the collector hears about it
				fail(index, err)
				results <- Outcome[T, R]{
					Index:    index,
					Item:     item,
					Value:    value,
					Err:      err,
					Attempts: max(attempts, 1),
					Duration: time.Since(start),
				}
			},
			cancel: func(err error) {
				fail(index, err)
				results <- Outcome[T, R]{Index: index, Item: item, Err: err}
			},
		})
		if err != nil {
			submitErr = fmt.Errorf("submitting item %d: %w", index, err)
			break
		}
		submitted++
	}

	if submitErr != nil {
		// items already queued see the cancelled context and finish quickly
		cancel()
		drain(results, submitted)
		return submitErr
	}

	e.logger.Debug("fan-out submitted", "items", total)

	for done := 1; done <= submitted; done++ {
		o := <-results
		if cfg.progress != nil {
			cfg.progress(done, total)
		}

		if o.Err != nil {
			if err := parent.Err(); err != nil {
				// the rest finish against the cancelled context; results is buffered for all of them
				return fmt.Errorf("fan-out stopped with %d of %d items finished: %w", done-1, total, err)
			}
		}
		if o.Err != nil && !cfg.ignoreErrors {
			return failure
		}
		if o.Err != nil {
			e.logger.Debug("item failed, skipping",
				"index", o.Index,
				"attempts", o.Attempts,
				"error", o.Err)
		}

		collect(o)
	}

	return nil
}

// drain waits for n pending outcomes and discards them
func drain[T any](results <-chan T, n int) {
	for i := 0; i < n; i++ {
		<-results
	}
}
