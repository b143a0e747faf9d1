package resilience

import "time"

// FromConfig builds an exponential-backoff Policy from config values that
// retries only transient errors. Non-positive values fall back to 3 attempts,
// 2s initial, 30s max, x2.
func FromConfig(maxAttempts, initialBackoffMs, maxBackoffMs int, multiplier, jitterFraction float64) Policy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	initial := 2 * time.Second
	if initialBackoffMs > 0 {
		initial = time.Duration(initialBackoffMs) * time.Millisecond
	}
	maxBackoff := 30 * time.Second
	if maxBackoffMs > 0 {
		maxBackoff = time.Duration(maxBackoffMs) * time.Millisecond
	}
	if jitterFraction < 0 {
		jitterFraction = 0
	}
	return Policy{
		MaxAttempts: maxAttempts,
		Backoff:     ExponentialBackoff(initial, maxBackoff, multiplier, jitterFraction),
		ShouldRetry: IsTransient,
	}
}

// BreakerFromConfig converts config values to a BreakerConfig.
func BreakerFromConfig(failureThreshold, resetSecs int) BreakerConfig {
	cfg := BreakerConfig{FailureThreshold: 3, ResetTimeout: 5 * time.Minute}
	if failureThreshold > 0 {
		cfg.FailureThreshold = failureThreshold
	}
	if resetSecs > 0 {
		cfg.ResetTimeout = time.Duration(resetSecs) * time.Second
	}
	return cfg
}
