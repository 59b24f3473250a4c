package errors

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// RetryConfig configures exponential backoff for model backend calls.
type RetryConfig struct {
	// MaxRetries excludes the first attempt.
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Jitter scales each wait by a random factor in [0.5, 1).
	Jitter bool

	// Retryable decides whether an error is worth another attempt.
	// Nil retries every error.
	Retryable func(error) bool
	// OnRetry runs before each wait with the failed attempt number (1-based).
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultRetryConfig returns 3 retries from 1s doubling up to 16s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: time.Second,
		MaxDelay:     16 * time.Second,
		Multiplier:   2,
	}
}

func (c RetryConfig) backoff(delay time.Duration) time.Duration {
	if !c.Jitter {
		return delay
	}
	return time.Duration(float64(delay) * (0.5 + rand.Float64()*0.5))
}

func (c RetryConfig) next(delay time.Duration) time.Duration {
	mult := c.Multiplier
	if mult < 1 {
		mult = 1
	}
	delay = time.Duration(float64(delay) * mult)
	if c.MaxDelay > 0 && delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	return delay
}

// RetryWithResult calls fn until it succeeds, the error is not retryable,
// retries run out, or ctx ends. A non-retryable error is returned as is;
// exhaustion wraps the last error.
func RetryWithResult[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxRetries+1; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if cfg.Retryable != nil && !cfg.Retryable(err) {
			return zero, err
		}
		if attempt > cfg.MaxRetries {
			break
		}

		wait := cfg.backoff(delay)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, wait)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
		delay = cfg.next(delay)
	}
	return zero, fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, lastErr)
}

// Retry is RetryWithResult for calls without a result.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	_, err := RetryWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
