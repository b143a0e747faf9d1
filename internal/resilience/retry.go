// Package resilience provides the retry policy and circuit breaker wrapped
// around source fetches.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// BackoffFunc returns the delay before retry number attempt (1-based).
type BackoffFunc func(attempt int) time.Duration

// Policy controls how a failing call is retried.
type Policy struct {
	// MaxAttempts is the total number of attempts including the first.
	// Values below 1 mean a single attempt.
	MaxAttempts int

	// Backoff computes the sleep between attempts. Nil means no sleep.
	Backoff BackoffFunc

	// ShouldRetry decides whether err is worth another attempt. Nil retries
	// every error.
	ShouldRetry func(err error) bool

	// OnRetry is called before each retry sleep.
	OnRetry func(attempt int, err error)
}

// ExponentialBackoff grows initial by multiplier per attempt, caps it at max
// and applies ±jitter as a fraction of the delay.
func ExponentialBackoff(initial, max time.Duration, multiplier, jitter float64) BackoffFunc {
	if multiplier <= 0 {
		multiplier = 2.0
	}
	return func(attempt int) time.Duration {
		delay := float64(initial) * math.Pow(multiplier, float64(attempt-1))
		if max > 0 && delay > float64(max) {
			delay = float64(max)
		}
		if jitter > 0 {
			delay += (rand.Float64()*2 - 1) * delay * jitter
		}
		if delay < 0 {
			delay = 0
		}
		return time.Duration(delay)
	}
}

// UniformBackoff sleeps a random duration in [min, max) between attempts.
func UniformBackoff(min, max time.Duration) BackoffFunc {
	return func(int) time.Duration {
		if max <= min {
			return min
		}
		return min + time.Duration(rand.Int64N(int64(max-min)))
	}
}

// Do runs fn under p and returns its value from the first successful
// attempt. Context cancellation stops retries immediately.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := max(p.MaxAttempts, 1)

	var zero T
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, lastErr
		}
		if p.ShouldRetry != nil && !p.ShouldRetry(err) {
			return zero, lastErr
		}
		if attempt == attempts {
			break
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}

		if p.Backoff == nil {
			continue
		}
		timer := time.NewTimer(p.Backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}

// RetryLogger returns an OnRetry callback that logs each retry.
func RetryLogger(component, name string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying",
			zap.String("component", component),
			zap.String("name", name),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
