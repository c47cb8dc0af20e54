package executor

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aryankumar/fanout/internal/util"
)

// fastPolicy retries quickly so tests exercise the loop without real waits
func fastPolicy(retries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries: retries,
		BaseDelay:  time.Millisecond,
		Multiplier: 2.0,
		MaxDelay:   5 * time.Millisecond,
	}
}

// flaky fails with err for the first n calls, then returns the item doubled
func flaky(n int, err error) (WorkFunc[int, int], *atomic.Int32) {
	var calls atomic.Int32
	return func(ctx context.Context, item int) (int, error) {
		if int(calls.Add(1)) <= n {
			return 0, err
		}
		return item * 2, nil
	}, &calls
}

func unavailable() error {
	return util.NewHTTPError(http.StatusServiceUnavailable, nil, errors.New("unavailable"))
}

func TestRun(t *testing.T) {
	notFound := util.NewHTTPError(http.StatusNotFound, nil, errors.New("missing"))

	tests := []struct {
		name      string
		failures  int
		err       error
		policy    RetryPolicy
		want      int
		wantErr   error
		wantCalls int32
	}{
		{
			name:      "succeeds first time",
			policy:    fastPolicy(2),
			want:      42,
			wantCalls: 1,
		},
		{
			name:      "recovers from transient failures",
			failures:  2,
			err:       unavailable(),
			policy:    fastPolicy(2),
			want:      42,
			wantCalls: 3,
		},
		{
			name:      "exhausts retries",
			failures:  10,
			err:       unavailable(),
			policy:    fastPolicy(2),
			wantErr:   util.NewHTTPError(http.StatusServiceUnavailable, nil, nil),
			wantCalls: 3,
		},
		{
			name:      "terminal error is not retried",
			failures:  10,
			err:       notFound,
			policy:    fastPolicy(2),
			wantErr:   notFound,
			wantCalls: 1,
		},
		{
			name:      "zero retries means single attempt",
			failures:  10,
			err:       unavailable(),
			policy:    fastPolicy(0),
			wantErr:   util.NewHTTPError(http.StatusServiceUnavailable, nil, nil),
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExecutor(WithCapacity(2), WithLogger(testLogger()))
			defer e.Shutdown(true)

			fn, calls := flaky(tt.failures, tt.err)
			got, err := Run(context.Background(), e, fn, 21, tt.policy)

			if tt.wantErr != nil {
				var httpErr *util.HTTPError
				if !errors.As(err, &httpErr) {
					t.Fatalf("expected *util.HTTPError, got %v", err)
				}
				if httpErr.Code != tt.wantErr.(*util.HTTPError).Code {
					t.Errorf("expected status %d, got %d", tt.wantErr.(*util.HTTPError).Code, httpErr.Code)
				}
			} else {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got != tt.want {
					t.Errorf("expected %d, got %d", tt.want, got)
				}
			}

			if calls.Load() != tt.wantCalls {
				t.Errorf("expected %d calls, got %d", tt.wantCalls, calls.Load())
			}
		})
	}
}

func TestRun_HonorsRetryAfterUpToMaxDelay(t *testing.T) {
	e := NewExecutor(WithCapacity(1), WithLogger(testLogger()))
	defer e.Shutdown(true)

	throttled := util.NewHTTPError(http.StatusTooManyRequests, header("Retry-After", "10"), errors.New("slow down"))
	fn, calls := flaky(1, throttled)

	policy := fastPolicy(1)
	policy.MaxDelay = 30 * time.Millisecond

	start := time.Now()
	got, err := Run(context.Background(), e, fn, 5, policy)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 10 {
		t.Errorf("expected 10, got %d", got)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}
	// the 10s hint is capped at MaxDelay but still beats the 1ms computed backoff
	if elapsed < 25*time.Millisecond {
		t.Errorf("expected the server hint to lengthen the wait, took %v", elapsed)
	}
	if elapsed > 2*time.Second {
		t.Errorf("expected the hint to be capped at MaxDelay, took %v", elapsed)
	}
}

func TestRun_BackoffDoesNotHoldGate(t *testing.T) {
	e := NewExecutor(WithCapacity(4), WithGateCapacity(1), WithLogger(testLogger()))
	defer e.Shutdown(true)

	backoff := 400 * time.Millisecond
	policy := RetryPolicy{MaxRetries: 1, BaseDelay: backoff, Multiplier: 1.0, MaxDelay: backoff}

	firstFailed := make(chan struct{})
	var slowCalls atomic.Int32
	slow := func(ctx context.Context, item int) (int, error) {
		if slowCalls.Add(1) == 1 {
			defer close(firstFailed)
			return 0, unavailable()
		}
		return item, nil
	}

	slowDone := make(chan error, 1)
	go func() {
		_, err := Run(context.Background(), e, slow, 1, policy)
		slowDone <- err
	}()

	<-firstFailed
	start := time.Now()
	fast := func(ctx context.Context, item int) (int, error) { return item, nil }
	if _, err := Run(context.Background(), e, fast, 2, policy); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	elapsed := time.Since(start)

	// jitter keeps the backoff at or above 300ms
	if elapsed > 150*time.Millisecond {
		t.Errorf("second call waited %v for the only gate slot; a sleeping retry must not hold it", elapsed)
	}
	if slowCalls.Load() != 1 {
		t.Errorf("expected the first call to still be backing off, it made %d attempts", slowCalls.Load())
	}

	select {
	case err := <-slowDone:
		if err != nil {
			t.Errorf("expected the retried call to succeed, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("retried call never finished")
	}
	if slowCalls.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", slowCalls.Load())
	}
}

func TestRun_LogsBackoffProgression(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn}))
	e := NewExecutor(WithCapacity(1), WithLogger(logger))
	defer e.Shutdown(true)

	fn, _ := flaky(2, unavailable())
	if _, err := Run(context.Background(), e, fn, 1, fastPolicy(3)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(logs.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 retry warnings, got %d:\n%s", len(lines), logs.String())
	}
	for i, want := range []string{"backoff=1ms", "backoff=2ms"} {
		if !strings.Contains(lines[i], want) {
			t.Errorf("retry %d: expected %q in %q", i+1, want, lines[i])
		}
	}
}

func TestRun_ContextCancelledDuringBackoff(t *testing.T) {
	e := NewExecutor(WithCapacity(1), WithLogger(testLogger()))
	defer e.Shutdown(true)

	fn, calls := flaky(10, unavailable())
	policy := RetryPolicy{MaxRetries: 5, BaseDelay: time.Second, Multiplier: 2.0, MaxDelay: time.Second}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := Run(ctx, e, fn, 1, policy)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	var httpErr *util.HTTPError
	if !errors.As(err, &httpErr) {
		t.Errorf("expected the last work error to be preserved, got %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Errorf("backoff sleep should end with the context, took %v", time.Since(start))
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

func TestRun_CancelledContextIsTerminal(t *testing.T) {
	e := NewExecutor(WithCapacity(1), WithLogger(testLogger()))
	defer e.Shutdown(true)

	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	fn := func(ctx context.Context, item int) (int, error) {
		calls.Add(1)
		cancel()
		return 0, unavailable()
	}

	_, err := Run(ctx, e, fn, 1, fastPolicy(3))
	if err == nil {
		t.Fatal("expected an error")
	}
	if calls.Load() != 1 {
		t.Errorf("expected no retries after cancellation, got %d calls", calls.Load())
	}
}

func TestRun_ShutdownAbortsBackoff(t *testing.T) {
	e := NewExecutor(WithCapacity(1), WithLogger(testLogger()))

	attempted := make(chan struct{}, 1)
	fn := func(ctx context.Context, item int) (int, error) {
		select {
		case attempted <- struct{}{}:
		default:
		}
		return 0, unavailable()
	}
	policy := RetryPolicy{MaxRetries: 5, BaseDelay: 5 * time.Second, Multiplier: 1.0, MaxDelay: 5 * time.Second}

	errc := make(chan error, 1)
	go func() {
		_, err := Run(context.Background(), e, fn, 1, policy)
		errc <- err
	}()

	<-attempted
	e.Shutdown(false)

	select {
	case err := <-errc:
		if !errors.Is(err, util.ErrCancelled) {
			t.Errorf("expected ErrCancelled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown(false) should interrupt the backoff wait")
	}
}

func TestRun_RateLimit(t *testing.T) {
	e := NewExecutor(WithCapacity(1), WithRateLimit(100, 1), WithLogger(testLogger()))
	defer e.Shutdown(true)

	fn := func(ctx context.Context, item int) (int, error) {
		return item, nil
	}

	start := time.Now()
	for i := 0; i < 5; i++ {
		if _, err := Run(context.Background(), e, fn, i, fastPolicy(0)); err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		}
	}

	// burst of 1 at 100/s: four waits of ~10ms
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("expected calls to be paced, took %v", elapsed)
	}
}
