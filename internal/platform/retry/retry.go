package retry

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// BackoffFunc returns how long to wait before the given attempt (2, 3, ...).
type BackoffFunc func(attempt int) time.Duration

// Policy is passed into gateway calls; MaxAttempts counts the first try.
type Policy struct {
	MaxAttempts int
	Backoff     BackoffFunc
}

// Once is the default gateway policy: one retry after a short backoff.
func Once(base time.Duration) Policy {
	return Policy{MaxAttempts: 2, Backoff: Exponential(base, 4*base, 0)}
}

// Exponential doubles base per attempt, capped at max, with +/- jitter fraction.
func Exponential(base, max time.Duration, jitter float64) BackoffFunc {
	return func(attempt int) time.Duration {
		if base <= 0 {
			base = 250 * time.Millisecond
		}
		sleep := base
		for i := 2; i < attempt; i++ {
			sleep *= 2
			if max > 0 && sleep >= max {
				sleep = max
				break
			}
		}
		if max > 0 && sleep > max {
			sleep = max
		}
		return applyJitter(sleep, jitter)
	}
}

func applyJitter(d time.Duration, j float64) time.Duration {
	if d <= 0 || j <= 0 {
		return d
	}
	delta := d.Seconds() * j
	low := d.Seconds() - delta
	if low < 0 {
		low = 0
	}
	v := low + rand.Float64()*(2*delta)
	return time.Duration(v * float64(time.Second))
}

// Classifier reports whether an error from one attempt is worth retrying.
type Classifier func(err error) bool

// Do runs fn until it succeeds, returns a non-retryable error, the parent
// context ends, or the policy's attempts are spent. The last error is returned.
func Do(ctx context.Context, p Policy, retryable Classifier, fn func(ctx context.Context, attempt int) error) error {
	max := p.MaxAttempts
	if max < 1 {
		max = 1
	}
	if retryable == nil {
		retryable = IsRetryable
	}
	var err error
	for attempt := 1; attempt <= max; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			if err != nil {
				return err
			}
			return cerr
		}
		err = fn(ctx, attempt)
		if err == nil {
			return nil
		}
		if attempt == max || !retryable(err) || ctx.Err() != nil {
			return err
		}
		var wait time.Duration
		if p.Backoff != nil {
			wait = p.Backoff(attempt + 1)
		}
		if wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return err
			case <-t.C:
			}
		}
	}
	return err
}

// HTTPStatusCoder is implemented by transport errors that carry a status.
type HTTPStatusCoder interface {
	HTTPStatusCode() int
}

// IsRetryable treats timeouts, temporary network failures, 408/429 and 5xx as
// transient. Cancellation is never retried.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var sc HTTPStatusCoder
	if errors.As(err, &sc) {
		return IsRetryableHTTPStatus(sc.HTTPStatusCode())
	}
	return false
}

func IsRetryableHTTPStatus(code int) bool {
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500
}

// RetryAfter reads a Retry-After header in seconds, clamped to max.
func RetryAfter(h http.Header, fallback, max time.Duration) time.Duration {
	sleepFor := fallback
	if ra := strings.TrimSpace(h.Get("Retry-After")); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			sleepFor = time.Duration(secs) * time.Second
		}
	}
	if max > 0 && sleepFor > max {
		sleepFor = max
	}
	return sleepFor
}
