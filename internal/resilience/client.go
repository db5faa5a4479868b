package resilience

import (
	"context"
	"log/slog"
	"time"
)

// Client runs broker calls through the full resilience stack, in order:
//
//  1. cache lookup (when a key is given)
//  2. circuit breaker gate: fail fast with ErrCircuitOpen
//  3. bounded retry with exponential backoff; every failed attempt counts
//     against the breaker
//  4. on success: reset the breaker and store the response under the key
//
// The zero cacheKey disables caching for the call.
type Client struct {
	breaker *CircuitBreaker
	retry   RetryPolicy
	cache   ResponseCache
	log     *slog.Logger

	// Metrics hooks (optional).
	OnCacheHit  func(key string)
	OnCacheMiss func(key string)
	OnAttempt   func(attempt int)
}

// NewClient assembles a resilient caller. cache may be nil to disable
// response caching entirely.
func NewClient(breaker *CircuitBreaker, retry RetryPolicy, cache ResponseCache, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{breaker: breaker, retry: retry, cache: cache, log: log}
}

// Call executes fn through the resilience stack. fn returns the raw response
// body; the caller decodes it.
func (c *Client) Call(ctx context.Context, cacheKey string, ttl time.Duration, fn func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	if cacheKey != "" && c.cache != nil {
		if body, ok := c.cache.Get(ctx, cacheKey); ok {
			if c.OnCacheHit != nil {
				c.OnCacheHit(cacheKey)
			}
			return body, nil
		}
		if c.OnCacheMiss != nil {
			c.OnCacheMiss(cacheKey)
		}
	}

	if err := c.breaker.Allow(); err != nil {
		c.log.Warn("call rejected, circuit open", slog.String("cache_key", cacheKey))
		return nil, err
	}

	var body []byte
	attempt := 0
	err := WithRetry(ctx, c.retry, func() error {
		attempt++
		if c.OnAttempt != nil {
			c.OnAttempt(attempt)
		}
		var ferr error
		body, ferr = fn(ctx)
		if ferr != nil {
			c.breaker.RecordFailure()
			c.log.Warn("call attempt failed",
				slog.Int("attempt", attempt),
				slog.String("cache_key", cacheKey),
				slog.String("error", ferr.Error()))
			return ferr
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.breaker.RecordSuccess()
	if cacheKey != "" && c.cache != nil {
		c.cache.Set(ctx, cacheKey, body, ttl)
	}
	return body, nil
}
