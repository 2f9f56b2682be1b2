// Package retry provides exponential backoff retry logic with jitter.
//
// The storage adapter itself never retries; this package is the
// caller-side policy used by the resilient wrapper:
//
//	cfg := retry.BackoffConfig{
//		InitialInterval: 500 * time.Millisecond,
//		MaxInterval:     10 * time.Second,
//		Multiplier:      2.0,
//		Jitter:          true,
//		MaxRetries:      4,
//	}
//	err := retry.WithRetry(ctx, func() error {
//		return callRemoteStore()
//	}, cfg)
//
// Wrap an error in retry.Stop to abort immediately on permanent
// failures (e.g. a missing object that no retry will create).
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

type BackoffConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	Jitter          bool
	MaxRetries      int
}

func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		Jitter:          true,
		MaxRetries:      5,
	}
}

// ExponentialBackoff returns the delay function for a config. With
// jitter enabled the delay is baseDelay * (0.5 + random(0, 0.5)).
func ExponentialBackoff(config BackoffConfig) func(int) time.Duration {
	return func(attempt int) time.Duration {
		if attempt <= 0 {
			return config.InitialInterval
		}

		interval := float64(config.InitialInterval) * math.Pow(config.Multiplier, float64(attempt-1))
		if interval > float64(config.MaxInterval) {
			interval = float64(config.MaxInterval)
		}

		duration := time.Duration(interval)
		if config.Jitter && duration > 0 {
			jitter := time.Duration(rand.Int63n(int64(duration/2) + 1))
			duration = duration/2 + jitter
		}

		return duration
	}
}

type RetryableFunc func() error

// WithRetry runs fn until it succeeds, returns a StopError, the retry
// budget is exhausted, or ctx is cancelled while waiting between
// attempts.
func WithRetry(ctx context.Context, fn RetryableFunc, config BackoffConfig) error {
	backoff := ExponentialBackoff(config)

	var lastErr error
	var attempts int
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		attempts = attempt + 1
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("retry cancelled by context: %w", ctx.Err())
			case <-time.After(backoff(attempt)):
			}
		}

		err := fn()
		if err == nil {
			return nil
		}

		var stopErr StopError
		if errors.As(err, &stopErr) {
			return stopErr.Err
		}
		lastErr = err
	}

	return fmt.Errorf("operation failed after %d attempts: %w", attempts, lastErr)
}

// StopError wraps an error to indicate that retries should stop immediately.
type StopError struct {
	Err error
}

func (s StopError) Error() string {
	return s.Err.Error()
}

func (s StopError) Unwrap() error {
	return s.Err
}

// Stop wraps an error to indicate that retries should stop immediately.
func Stop(err error) error {
	return StopError{Err: err}
}
