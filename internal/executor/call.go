package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/aryankumar/fanout/internal/util"
)

// WorkFunc performs one unit of remote work for one item.
// It must be safe to call concurrently and more than once for the same item.
type WorkFunc[T, R any] func(ctx context.Context, item T) (R, error)

// attemptKind tags the result of a single attempt
type attemptKind int

const (
	attemptSucceeded attemptKind = iota
	attemptRetryable
	attemptTerminal
)

// attemptState is the per-call retry bookkeeping
type attemptState struct {
	attempt int

	// delay is the un-jittered backoff before the next retry, logged alongside the actual wait
	delay time.Duration
}

// Run calls fn(item) through the executor's admission gate, retrying
// retryable failures per policy. Backoff waits happen outside the gate, so a
// sleeping call does not hold a slot. It returns the value of the first
// successful attempt or the error of the last one.
//
// Run executes on the calling goroutine; use Submit or Map to run it on the
// executor's workers.
func Run[T, R any](ctx context.Context, e *Executor, fn WorkFunc[T, R], item T, policy RetryPolicy) (R, error) {
	value, _, err := run(ctx, e, fn, item, policy)
	return value, err
}

// run is Run that also reports the number of attempts made
func run[T, R any](ctx context.Context, e *Executor, fn WorkFunc[T, R], item T, policy RetryPolicy) (R, int, error) {
	var zero R
	state := attemptState{delay: policy.BaseDelay}

	for {
		value, err := attempt(ctx, e, fn, item)

		switch classify(ctx, err, policy) {
		case attemptSucceeded:
			return value, state.attempt + 1, nil
		case attemptTerminal:
			return zero, state.attempt + 1, err
		}

		state.attempt++
		decision := policy.Decide(err, state.attempt)
		if !decision.Retry {
			e.logger.Debug("retries exhausted",
				"attempts", state.attempt,
				"error", err)
			return zero, state.attempt, err
		}

		wait := policy.Clamp(EffectiveWait(err, decision.Wait))
		e.logger.Warn("attempt failed, retrying",
			"attempt", state.attempt,
			"max_retries", policy.MaxRetries,
			"wait", wait,
			"backoff", state.delay,
			"error", err)

		if sleepErr := e.sleep(ctx, wait); sleepErr != nil {
			return zero, state.attempt, fmt.Errorf("%w: %w", sleepErr, err)
		}
		state.delay = policy.next(state.delay)
	}
}

// attempt runs fn once while holding a gate slot. The rate limiter, if any,
// is waited on before the gate is entered.
func attempt[T, R any](ctx context.Context, e *Executor, fn WorkFunc[T, R], item T) (value R, err error) {
	if err := ctx.Err(); err != nil {
		return value, err
	}
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return value, err
		}
	}

	gateErr := e.gate.Do(ctx, func() {
		value, err = fn(ctx, item)
	})
	if gateErr != nil {
		return value, gateErr
	}
	return value, err
}

// classify maps an attempt's error onto the retry loop's three outcomes.
// Once the caller's context is done every failure is terminal, even a
// deadline that would otherwise look like a transient network error.
func classify(ctx context.Context, err error, policy RetryPolicy) attemptKind {
	switch {
	case err == nil:
		return attemptSucceeded
	case ctx.Err() != nil, util.IsCancelled(err):
		return attemptTerminal
	case policy.retryable(err):
		return attemptRetryable
	default:
		return attemptTerminal
	}
}

// sleep waits d, returning early with the ctx error or util.ErrCancelled
// when the executor is shut down without waiting
func (e *Executor) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.aborting():
			return util.ErrCancelled
		default:
			return nil
		}
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.aborting():
		return util.ErrCancelled
	}
}
