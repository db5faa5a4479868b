package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the circuit breaker is open. Callers must
// treat it as "dependency unavailable" and fail fast, not retry.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker trips after maxFailures cumulative failures and rejects all
// calls until coolDown has elapsed since the last recorded failure, at which
// point it closes again and the failure count resets. A success while closed
// resets the count immediately.
//
// Unlike a half-open probe design, recovery here is purely time-based: the
// broker enforces rate limits, so probing a struggling endpoint early would
// only extend the outage.
type CircuitBreaker struct {
	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	maxFailures int
	coolDown    time.Duration

	now func() time.Time // injectable for tests

	// OnStateChange is called when the breaker trips open or closes again.
	OnStateChange func(open bool)
}

// NewCircuitBreaker creates a breaker that opens at maxFailures cumulative
// failures and auto-closes coolDown after the last failure.
func NewCircuitBreaker(maxFailures int, coolDown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures: maxFailures,
		coolDown:    coolDown,
		now:         time.Now,
	}
}

// Allow reports whether a call may proceed. Returns ErrCircuitOpen when the
// breaker is open.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.openLocked() {
		return ErrCircuitOpen
	}
	return nil
}

// RecordFailure increments the failure count and may trip the breaker.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	wasOpen := cb.openLocked()
	cb.failures++
	cb.lastFailure = cb.now()
	if !wasOpen && cb.openLocked() && cb.OnStateChange != nil {
		cb.OnStateChange(true)
	}
}

// RecordSuccess resets the failure count.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	wasOpen := cb.openLocked()
	cb.failures = 0
	if wasOpen && cb.OnStateChange != nil {
		cb.OnStateChange(false)
	}
}

// Open reports whether the breaker currently rejects calls.
func (cb *CircuitBreaker) Open() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.openLocked()
}

// Failures returns the current cumulative failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// openLocked evaluates the open condition and applies the time-based reset.
// Caller must hold cb.mu.
func (cb *CircuitBreaker) openLocked() bool {
	if cb.failures < cb.maxFailures {
		return false
	}
	if cb.now().Sub(cb.lastFailure) >= cb.coolDown {
		// Cool-down elapsed with no new failures: close automatically.
		cb.failures = 0
		if cb.OnStateChange != nil {
			cb.OnStateChange(false)
		}
		return false
	}
	return true
}
