// Package resilience wraps outbound broker calls with the failure-handling
// stack: bounded retry with exponential backoff, a cumulative-failure circuit
// breaker with a cool-down, and a time-boxed response cache.
package resilience

import (
	"context"
	"time"

	"github.com/jpillora/backoff"
)

// RetryPolicy is the value object describing a bounded retry sequence:
// up to MaxAttempts tries with delays of BaseDelay × Multiplier^(attempt-1),
// capped at MaxDelay.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
}

// DefaultRetryPolicy matches the broker API defaults: 3 attempts,
// 500ms base, doubling, capped at 8s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		Multiplier:  2.0,
		MaxDelay:    8 * time.Second,
	}
}

// WithRetry runs fn up to policy.MaxAttempts times, sleeping between
// attempts per the policy. The context is only consulted at retry
// boundaries; a caller wanting to abort does so before the next attempt.
// Returns the last error after exhaustion.
func WithRetry(ctx context.Context, policy RetryPolicy, fn func() error) error {
	b := &backoff.Backoff{
		Min:    policy.BaseDelay,
		Max:    policy.MaxDelay,
		Factor: policy.Multiplier,
	}

	var err error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == policy.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.Duration()):
		}
	}
	return err
}
