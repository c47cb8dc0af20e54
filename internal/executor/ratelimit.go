package executor

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aryankumar/fanout/internal/util"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// Headers a server may use to declare how long a client should back off
const (
	headerRetryAfter   = "Retry-After"
	headerRetryAfterMs = "Retry-After-Ms"
	headerMsRetryAfter = "X-Ms-Retry-After-Ms"
)

// EffectiveWait reconciles the policy's computed backoff with a wait declared by the server.
// The hint only counts when the failure carries a retryable status; the longer of the
// two wins. Hints that are absent or malformed leave computed unchanged.
func EffectiveWait(err error, computed time.Duration) time.Duration {
	code, _ := statusCode(err)
	if !retryableStatus[code] && !util.IsRetryable(err) {
		return computed
	}

	hint, ok := RetryAfter(err)
	if !ok || hint <= computed {
		return computed
	}
	return hint
}

// RetryAfter returns the server-declared wait carried by err, if any.
// It reads Retry-After (seconds or HTTP date), Retry-After-Ms and
// X-Ms-Retry-After-Ms headers, Kubernetes status details, and
// util.RetryableError. It never panics.
func RetryAfter(err error) (wait time.Duration, ok bool) {
	if err == nil {
		return 0, false
	}
	defer func() {
		if recover() != nil {
			wait, ok = 0, false
		}
	}()

	var carrier interface{ ResponseHeader() http.Header }
	if errors.As(err, &carrier) {
		if d, found := retryAfterFromHeader(carrier.ResponseHeader(), time.Now()); found {
			return d, true
		}
	}

	if seconds, found := apierrors.SuggestsClientDelay(err); found && seconds > 0 {
		return time.Duration(seconds) * time.Second, true
	}

	var retryErr *util.RetryableError
	if errors.As(err, &retryErr) && retryErr.RetryAfter > 0 {
		return retryErr.RetryAfter, true
	}

	return 0, false
}

// retryAfterFromHeader parses the first usable hint, Retry-After taking precedence
func retryAfterFromHeader(h http.Header, now time.Time) (time.Duration, bool) {
	if h == nil {
		return 0, false
	}

	if v := strings.TrimSpace(h.Get(headerRetryAfter)); v != "" {
		if d, ok := parseSeconds(v, time.Second); ok {
			return d, true
		}
		if at, err := http.ParseTime(v); err == nil {
			if d := at.Sub(now); d > 0 {
				return d, true
			}
		}
	}

	for _, key := range []string{headerRetryAfterMs, headerMsRetryAfter} {
		if v := strings.TrimSpace(h.Get(key)); v != "" {
			if d, ok := parseSeconds(v, time.Millisecond); ok {
				return d, true
			}
		}
	}

	return 0, false
}

// parseSeconds parses a non-negative decimal count of unit
func parseSeconds(v string, unit time.Duration) (time.Duration, bool) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}

	d := f * float64(unit)
	if d > math.MaxInt64 {
		return 0, false
	}
	return time.Duration(d), true
}
