package executor

import (
	"context"
	"errors"
	"io"
	"math"
	"math/rand"
	"net"
	"net/url"
	"sync"
	"syscall"
	"time"

	"github.com/aryankumar/fanout/internal/util"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	utilnet "k8s.io/apimachinery/pkg/util/net"
)

const (
	// DefaultMaxRetries is the number of retries after the first attempt
	DefaultMaxRetries = 2

	// DefaultBaseDelay is the wait before the first retry
	DefaultBaseDelay = 500 * time.Millisecond

	// DefaultMultiplier grows the delay between consecutive retries
	DefaultMultiplier = 2.0

	// DefaultMaxDelay caps every wait, including server-declared ones
	DefaultMaxDelay = 8 * time.Second

	// jitterFactor spreads retries by ±25% so callers failing together do not retry together
	jitterFactor = 0.25
)

// retryableStatus lists the HTTP statuses that signal a transient condition
var retryableStatus = map[int]bool{
	408: true, // Request Timeout
	429: true, // Too Many Requests
	502: true, // Bad Gateway
	503: true, // Service Unavailable
	504: true, // Gateway Timeout
}

// RetryPolicy decides whether a failed attempt is retried and how long to wait first.
// The zero value never retries.
type RetryPolicy struct {
	// MaxRetries is how many retries follow the first attempt (0 = single attempt)
	MaxRetries int

	// BaseDelay is the backoff before the first retry
	BaseDelay time.Duration

	// Multiplier scales the delay after each retry, must be >= 1.0
	Multiplier float64

	// MaxDelay caps every computed or server-declared wait
	MaxDelay time.Duration

	// Retryable classifies errors; nil means DefaultRetryable
	Retryable func(error) bool
}

// Decision is the outcome of consulting a RetryPolicy about one failure
type Decision struct {
	// Retry is false when the error must be propagated to the caller
	Retry bool

	// Wait is the jittered backoff before the next attempt (zero when Retry is false)
	Wait time.Duration
}

// DefaultRetryPolicy returns two retries starting at 500ms, doubling, capped at 8s
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		Multiplier: DefaultMultiplier,
		MaxDelay:   DefaultMaxDelay,
		Retryable:  DefaultRetryable,
	}
}

// Validate reports every field that violates the policy's constraints
func (p RetryPolicy) Validate() error {
	var errs util.MultiError

	if p.MaxRetries < 0 {
		errs.Add(util.NewValidationError("maxRetries", p.MaxRetries, "must not be negative"))
	}
	if p.BaseDelay < 0 {
		errs.Add(util.NewValidationError("baseDelay", p.BaseDelay, "must not be negative"))
	}
	if p.Multiplier < 1.0 || math.IsNaN(p.Multiplier) || math.IsInf(p.Multiplier, 0) {
		errs.Add(util.NewValidationError("multiplier", p.Multiplier, "must be a finite value of at least 1.0"))
	}
	if p.MaxDelay < p.BaseDelay {
		errs.Add(util.NewValidationError("maxDelay", p.MaxDelay, "must be greater than or equal to baseDelay"))
	}

	return errs.ErrorOrNil()
}

// Decide applies the policy to the error returned by attempt number attempt (1-indexed).
// Errors rejected by the predicate are terminal regardless of the remaining budget.
func (p RetryPolicy) Decide(err error, attempt int) Decision {
	if err == nil || attempt > p.MaxRetries {
		return Decision{}
	}
	if !p.retryable(err) {
		return Decision{}
	}

	return Decision{
		Retry: true,
		Wait:  p.jitter(p.Backoff(attempt)),
	}
}

// Backoff returns the un-jittered delay after attempt number attempt (1-indexed):
// min(MaxDelay, BaseDelay * Multiplier^(attempt-1)).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 || p.BaseDelay <= 0 {
		return 0
	}

	multiplier := math.Max(1.0, p.Multiplier)
	delay := float64(p.BaseDelay) * math.Pow(multiplier, float64(attempt-1))
	if math.IsInf(delay, 0) || math.IsNaN(delay) || delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}

	return time.Duration(delay)
}

// Clamp bounds d to [0, MaxDelay]
func (p RetryPolicy) Clamp(d time.Duration) time.Duration {
	return clampDuration(d, 0, p.MaxDelay)
}

// next grows the un-jittered delay between retries: min(MaxDelay, delay*Multiplier)
func (p RetryPolicy) next(delay time.Duration) time.Duration {
	grown := float64(delay) * math.Max(1.0, p.Multiplier)
	if math.IsInf(grown, 0) || grown > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(grown)
}

func (p RetryPolicy) retryable(err error) bool {
	if p.Retryable == nil {
		return DefaultRetryable(err)
	}
	return p.Retryable(err)
}

func (p RetryPolicy) jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}

	jitterMu.Lock()
	multiplier := 1.0 + (jitterRand.Float64()*2-1)*jitterFactor
	jitterMu.Unlock()

	return p.Clamp(time.Duration(float64(d) * multiplier))
}

var (
	jitterMu   sync.Mutex
	jitterRand = rand.New(rand.NewSource(time.Now().UnixNano())) // #nosec G404 -- jitter does not need crypto rand
)

// DefaultRetryable reports whether err is a transient transport failure or
// carries one of the HTTP statuses 408, 429, 502, 503, 504.
func DefaultRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	if util.IsRetryable(err) {
		return true
	}

	// ServerTimeout is reported with a 500 code
	if apierrors.IsServerTimeout(err) {
		return true
	}
	if code, ok := statusCode(err); ok {
		return retryableStatus[code]
	}

	return isTransportError(err)
}

// isTransportError matches failures where the request may never have been answered
func isTransportError(err error) bool {
	if errors.Is(err, util.ErrConnectionFailed) || errors.Is(err, util.ErrTimeout) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	if utilnet.IsConnectionReset(err) || utilnet.IsConnectionRefused(err) || utilnet.IsProbableEOF(err) {
		return true
	}

	// *url.Error is itself a net.Error, so judge the failure it wraps instead;
	// certificate and malformed-URL errors arrive this way and are not transient
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err != nil && isTransportError(urlErr.Err)
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// statusCode extracts an HTTP status from anything in the error chain that reports one
func statusCode(err error) (int, bool) {
	var coder interface{ StatusCode() int }
	if errors.As(err, &coder) {
		return coder.StatusCode(), true
	}

	var status apierrors.APIStatus
	if errors.As(err, &status) {
		if code := int(status.Status().Code); code != 0 {
			return code, true
		}
	}

	return 0, false
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}
