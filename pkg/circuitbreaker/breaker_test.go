package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRemote = errors.New("remote failure")

func trippySettings(timeout time.Duration) Settings {
	return Settings{
		Name:        "test",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}
}

func TestBreakerStaysClosedOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker(trippySettings(time.Minute))

	for i := 0; i < 10; i++ {
		require.NoError(t, cb.Do(func() error { return nil }))
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker(trippySettings(time.Minute))

	for i := 0; i < 3; i++ {
		err := cb.Do(func() error { return errRemote })
		assert.ErrorIs(t, err, errRemote)
	}
	assert.Equal(t, StateOpen, cb.State())

	// While open, calls are rejected without running fn.
	ran := false
	err := cb.Do(func() error { ran = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitBreakerOpen)
	assert.False(t, ran)
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker(trippySettings(10 * time.Millisecond))

	for i := 0; i < 3; i++ {
		cb.Do(func() error { return errRemote })
	}
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())

	// A successful probe closes the breaker again.
	require.NoError(t, cb.Do(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerReopensOnHalfOpenFailure(t *testing.T) {
	cb := NewCircuitBreaker(trippySettings(10 * time.Millisecond))

	for i := 0; i < 3; i++ {
		cb.Do(func() error { return errRemote })
	}
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())

	cb.Do(func() error { return errRemote })
	assert.Equal(t, StateOpen, cb.State())
}

func TestBreakerHalfOpenProbeBudget(t *testing.T) {
	settings := trippySettings(10 * time.Millisecond)
	settings.MaxRequests = 1
	cb := NewCircuitBreaker(settings)

	for i := 0; i < 3; i++ {
		cb.Do(func() error { return errRemote })
	}
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())

	// First probe is admitted and held in flight; a second concurrent
	// probe exceeds the budget.
	started := make(chan struct{})
	release := make(chan struct{})
	go cb.Do(func() error {
		close(started)
		<-release
		return nil
	})
	<-started

	err := cb.Do(func() error { return nil })
	assert.ErrorIs(t, err, ErrTooManyRequests)
	close(release)
}

func TestBreakerStateChangeCallback(t *testing.T) {
	var transitions []string
	settings := trippySettings(time.Minute)
	settings.OnStateChange = func(name string, from, to State) {
		transitions = append(transitions, from.String()+"->"+to.String())
	}
	cb := NewCircuitBreaker(settings)

	for i := 0; i < 3; i++ {
		cb.Do(func() error { return errRemote })
	}
	assert.Equal(t, []string{"CLOSED->OPEN"}, transitions)
}

func TestCountsTracking(t *testing.T) {
	cb := NewCircuitBreaker(Settings{Name: "counts", Timeout: time.Minute})

	cb.Do(func() error { return nil })
	cb.Do(func() error { return errRemote })
	cb.Do(func() error { return nil })

	counts := cb.Counts()
	assert.Equal(t, uint32(3), counts.Requests)
	assert.Equal(t, uint32(2), counts.TotalSuccesses)
	assert.Equal(t, uint32(1), counts.TotalFailures)
	assert.Equal(t, uint32(1), counts.ConsecutiveSuccesses)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "CLOSED", StateClosed.String())
	assert.Equal(t, "HALF_OPEN", StateHalfOpen.String())
	assert.Equal(t, "OPEN", StateOpen.String())
}
