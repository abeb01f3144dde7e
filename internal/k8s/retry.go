package k8s

import (
	"context"
	"errors"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// retryPolicy re-issues idempotent reads (lists, version probes, merge patches) that failed
// with a transient API server status. Watches are opened once and never go through it.
type retryPolicy struct {
	attempts int
	first    time.Duration
	ceiling  time.Duration
}

var listRetry = retryPolicy{attempts: 3, first: 100 * time.Millisecond, ceiling: 2 * time.Second}

// delay is the pause after the given failed attempt (0-based): first, tripled each time, capped.
func (p retryPolicy) delay(attempt int) time.Duration {
	d := p.first
	for i := 0; i < attempt; i++ {
		d *= 3
		if d >= p.ceiling {
			return p.ceiling
		}
	}
	return d
}

// isTransientStatus reports API server answers worth repeating: 429 and every 5xx.
func isTransientStatus(err error) bool {
	if err == nil {
		return false
	}
	if apierrors.IsTooManyRequests(err) || apierrors.IsInternalError(err) || apierrors.IsServerTimeout(err) {
		return true
	}
	var se *apierrors.StatusError
	return errors.As(err, &se) && se.ErrStatus.Code >= 500
}

// retry calls fn until it succeeds, fails with a non-transient error or the attempts are spent.
// A context cancelled during the pause wins over the last API error.
func retry[T any](ctx context.Context, p retryPolicy, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		if attempt+1 >= p.attempts || !isTransientStatus(err) {
			return zero, err
		}
		t := time.NewTimer(p.delay(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, ctx.Err()
		case <-t.C:
		}
	}
}
