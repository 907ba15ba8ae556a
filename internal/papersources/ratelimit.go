package papersources

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter enforces a minimum spacing between requests to one provider.
// It is safe for concurrent use because the underlying rate.Limiter is
// goroutine-safe for all operations; workers share a single instance.
type RateLimiter struct {
	limiter  *rate.Limiter
	interval time.Duration
}

// NewRateLimiter creates a limiter that admits one request per interval.
// The burst is fixed at one token, so two consecutive Wait calls return at
// least interval apart. An interval of zero or less disables spacing.
//
// Example configurations:
//   - Semantic Scholar: NewRateLimiter(time.Second)
//   - OpenAlex fallback: NewRateLimiter(2 * time.Second)
func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{
		limiter:  rate.NewLimiter(limitFor(interval), 1),
		interval: interval,
	}
}

func limitFor(interval time.Duration) rate.Limit {
	if interval <= 0 {
		return rate.Inf
	}
	return rate.Every(interval)
}

// Wait blocks until a request is allowed or the context is canceled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Allow returns true if a request is allowed without waiting.
// It consumes the token if allowed.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Interval returns the configured minimum spacing.
func (r *RateLimiter) Interval() time.Duration {
	return r.interval
}

// Tokens returns the current number of available tokens.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}
