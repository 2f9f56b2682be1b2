package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(maxRetries int) BackoffConfig {
	return BackoffConfig{
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2.0,
		MaxRetries:      maxRetries,
	}
}

func TestWithRetrySucceedsAfterFailures(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	}, fastConfig(5))

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryExhaustsBudget(t *testing.T) {
	cause := errors.New("always failing")
	attempts := 0
	err := WithRetry(context.Background(), func() error {
		attempts++
		return cause
	}, fastConfig(2))

	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 3, attempts) // initial try + 2 retries
}

func TestWithRetryStopHaltsImmediately(t *testing.T) {
	cause := errors.New("permanent")
	attempts := 0
	err := WithRetry(context.Background(), func() error {
		attempts++
		return Stop(cause)
	}, fastConfig(5))

	require.Error(t, err)
	assert.Equal(t, cause, err)
	assert.Equal(t, 1, attempts)
}

func TestWithRetryContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := WithRetry(ctx, func() error {
		attempts++
		cancel()
		return errors.New("transient")
	}, BackoffConfig{
		InitialInterval: time.Hour, // would block without cancellation
		MaxInterval:     time.Hour,
		Multiplier:      2.0,
		MaxRetries:      3,
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestExponentialBackoffGrowsAndCaps(t *testing.T) {
	backoff := ExponentialBackoff(BackoffConfig{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     400 * time.Millisecond,
		Multiplier:      2.0,
	})

	assert.Equal(t, 100*time.Millisecond, backoff(0))
	assert.Equal(t, 100*time.Millisecond, backoff(1))
	assert.Equal(t, 200*time.Millisecond, backoff(2))
	assert.Equal(t, 400*time.Millisecond, backoff(3))
	assert.Equal(t, 400*time.Millisecond, backoff(10)) // capped
}

func TestExponentialBackoffJitterBounds(t *testing.T) {
	backoff := ExponentialBackoff(BackoffConfig{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      2.0,
		Jitter:          true,
	})

	for i := 0; i < 50; i++ {
		d := backoff(2) // base 200ms
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.LessOrEqual(t, d, 200*time.Millisecond)
	}
}

func TestStopErrorUnwrap(t *testing.T) {
	cause := errors.New("cause")
	wrapped := Stop(cause)
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, "cause", wrapped.Error())
}
