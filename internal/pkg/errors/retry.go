package errors

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryConfig controls how provider calls are retried.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool // +/-25% random jitter
}

// DefaultRetryConfig returns the retry policy used for generation requests.
// Verification never retries: a single canary request decides the outcome.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// NoRetry runs the function exactly once.
func NoRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 1}
}

// RetryFunc is a function that can be retried.
type RetryFunc func(ctx context.Context) error

// RetryCallback is invoked before each retry with the attempt that failed.
type RetryCallback func(attempt int, err error, delay time.Duration)

// Retry executes fn until it succeeds, returns a non-retryable error, or
// runs out of attempts. Every retry is logged at debug level.
func Retry(ctx context.Context, config RetryConfig, fn RetryFunc) error {
	return RetryWithNotify(ctx, config, fn, func(attempt int, err error, delay time.Duration) {
		LogRetry(attempt, config.MaxAttempts, err, delay)
	})
}

// RetryWithNotify is Retry with a caller supplied callback.
func RetryWithNotify(ctx context.Context, config RetryConfig, fn RetryFunc, notify RetryCallback) error {
	attempts := config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil || !IsRetryable(lastErr) || attempt == attempts-1 {
			return lastErr
		}

		delay := calculateRetryDelay(config, attempt, lastErr)
		if notify != nil {
			notify(attempt+1, lastErr, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}

// calculateRetryDelay prefers a server supplied Retry-After over backoff.
func calculateRetryDelay(config RetryConfig, attempt int, err error) time.Duration {
	if retryAfter := GetRetryAfter(err); retryAfter > 0 {
		return retryAfter
	}

	delay := float64(config.InitialDelay) * math.Pow(config.Multiplier, float64(attempt))
	if config.MaxDelay > 0 && delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}

	if config.Jitter {
		delay += delay * 0.25 * (rand.Float64()*2 - 1)
	}
	return time.Duration(delay)
}
