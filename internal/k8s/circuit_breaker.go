package k8s

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/vanshmadan/gke-connect/internal/pkg/metrics"
)

var (
	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open: cluster API unavailable")
)

// CircuitBreakerState represents the state of a circuit breaker.
type CircuitBreakerState int

const (
	StateClosed   CircuitBreakerState = iota // Normal operation
	StateOpen                                // Circuit is open, failing fast
	StateHalfOpen                            // Testing if service recovered
)

func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker guards Kubernetes API calls.
// After 5 consecutive retryable failures, the circuit opens for 30 seconds,
// then admits a single probe call (half-open).
type CircuitBreaker struct {
	mu sync.RWMutex

	failureThreshold int
	openDuration     time.Duration
	halfOpenMaxCalls int
	cluster          string // metrics label
	now              func() time.Time

	state             CircuitBreakerState
	failureCount      int
	lastFailureTime   time.Time
	halfOpenCallCount int
	lastStateChange   time.Time
}

// NewCircuitBreaker creates a new circuit breaker with default settings.
func NewCircuitBreaker(cluster string) *CircuitBreaker {
	cb := &CircuitBreaker{
		failureThreshold: 5,
		openDuration:     30 * time.Second,
		halfOpenMaxCalls: 1,
		state:            StateClosed,
		cluster:          cluster,
		now:              time.Now,
	}
	cb.lastStateChange = cb.now()
	metrics.CircuitBreakerState.WithLabelValues(cluster).Set(float64(StateClosed))
	return cb
}

// setState updates the state and records metrics. Caller holds mu.
func (cb *CircuitBreaker) setState(newState CircuitBreakerState) {
	if cb.state == newState {
		return
	}
	metrics.CircuitBreakerTransitionsTotal.WithLabelValues(cb.cluster, cb.state.String(), newState.String()).Inc()
	metrics.CircuitBreakerState.WithLabelValues(cb.cluster).Set(float64(newState))
	cb.state = newState
	cb.lastStateChange = cb.now()
}

// Execute executes fn with circuit breaker protection.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	cb.mu.Lock()
	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.lastFailureTime) < cb.openDuration {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.setState(StateHalfOpen)
		cb.halfOpenCallCount = 1
	case StateHalfOpen:
		if cb.halfOpenCallCount >= cb.halfOpenMaxCalls {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.halfOpenCallCount++
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		if isRetryableError(err) {
			cb.failureCount++
			cb.lastFailureTime = cb.now()
			metrics.CircuitBreakerFailuresTotal.WithLabelValues(cb.cluster).Inc()

			if cb.state == StateHalfOpen {
				cb.setState(StateOpen)
				cb.halfOpenCallCount = 0
			} else if cb.failureCount >= cb.failureThreshold {
				cb.setState(StateOpen)
			}
			return err
		}
		if isCallerCancellation(err) {
			// Says nothing about the API server; release a half-open probe slot.
			if cb.state == StateHalfOpen && cb.halfOpenCallCount > 0 {
				cb.halfOpenCallCount--
			}
			return err
		}
		// Non-retryable error (e.g., 404, 403): the server answered.
	}

	cb.failureCount = 0
	if cb.state != StateClosed {
		cb.setState(StateClosed)
		cb.halfOpenCallCount = 0
	}
	return err
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// FailureCount returns the current failure count.
func (cb *CircuitBreaker) FailureCount() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.failureCount
}

// isCallerCancellation reports a context cancelled by the caller (subscriber gone, request aborted).
func isCallerCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}

var networkErrorFragments = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"network",
	"unreachable",
	"no such host",
	"dial tcp",
	"i/o timeout",
}

// isRetryableError reports failures that count against the circuit: deadlines, 5xx/429 and network errors.
func isRetryableError(err error) bool {
	if err == nil || isCallerCancellation(err) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if isTransientStatus(err) {
		return true
	}
	msg := err.Error()
	for _, frag := range networkErrorFragments {
		if strings.Contains(msg, frag) {
			return true
		}
	}
	return false
}
