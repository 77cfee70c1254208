// Package retry runs an operation a bounded number of times with backoff
// between attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// ErrExhausted is returned when every attempt failed with a retryable error
var ErrExhausted = errors.New("retries exhausted")

// BackoffFunc returns the delay to wait after the given failed attempt (1-based)
type BackoffFunc func(attempt int) time.Duration

// ExponentialBackoff waits initialDelay * factor^(attempt-1), capped at
// maxDelay (0 = no cap), then varied by ±jitter (0.2 = ±20%).
func ExponentialBackoff(initialDelay time.Duration, factor float64, maxDelay time.Duration, jitter float64) BackoffFunc {
	if jitter < 0 {
		jitter = 0
	}
	if jitter > 1 {
		jitter = 1
	}
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		backoff := time.Duration(float64(initialDelay) * math.Pow(factor, float64(attempt-1)))
		if maxDelay > 0 && backoff > maxDelay {
			backoff = maxDelay
		}
		if jitter == 0 {
			return backoff
		}
		return time.Duration(float64(backoff) * (1.0 + (rand.Float64()*2*jitter - jitter)))
	}
}

// NoBackoff retries immediately
func NoBackoff(int) time.Duration { return 0 }

// Policy handles retry logic
type Policy struct {
	maxAttempts int
	backoff     BackoffFunc
	retryable   func(error) bool
}

// NewPolicy creates a retry policy. A nil retryable retries every error.
func NewPolicy(maxAttempts int, backoff BackoffFunc, retryable func(error) bool) *Policy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if backoff == nil {
		backoff = NoBackoff
	}
	if retryable == nil {
		retryable = func(error) bool { return true }
	}
	return &Policy{
		maxAttempts: maxAttempts,
		backoff:     backoff,
		retryable:   retryable,
	}
}

// MaxAttempts returns the attempt bound
func (p *Policy) MaxAttempts() int {
	return p.maxAttempts
}

// Execute runs fn until it succeeds, fails with a non-retryable error, the
// attempts run out, or ctx is done while waiting. It returns the number of
// attempts made. Exhaustion wraps both ErrExhausted and the last error.
func (p *Policy) Execute(ctx context.Context, fn func(attempt int) error) (int, error) {
	var lastErr error

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}

		err := fn(attempt)
		if err == nil {
			return attempt, nil
		}
		if !p.retryable(err) {
			return attempt, err
		}
		lastErr = err

		// Don't sleep after last attempt
		if attempt == p.maxAttempts {
			break
		}
		if err := sleep(ctx, p.backoff(attempt)); err != nil {
			return attempt, err
		}
	}

	return p.maxAttempts, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, p.maxAttempts, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
