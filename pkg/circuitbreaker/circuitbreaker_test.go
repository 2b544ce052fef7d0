package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDown = errors.New("endpoint down")

func failingCalls(cb *CircuitBreaker, n int) {
	for i := 0; i < n; i++ {
		_ = cb.Execute(func() error { return errDown })
	}
}

func TestOpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker(Settings{Name: "test", MaxFailures: 3, Timeout: time.Minute})

	failingCalls(cb, 2)
	assert.Equal(t, StateClosed, cb.State())

	failingCalls(cb, 1)
	assert.Equal(t, StateOpen, cb.State())
}

func TestOpenRejectsWithoutCalling(t *testing.T) {
	cb := NewCircuitBreaker(Settings{Name: "test", MaxFailures: 1, Timeout: time.Minute})
	failingCalls(cb, 1)

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker test is open")
	assert.False(t, called)
}

func TestSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(Settings{Name: "test", MaxFailures: 3, Timeout: time.Minute})

	failingCalls(cb, 2)
	require.NoError(t, cb.Execute(func() error { return nil }))

	failingCalls(cb, 2)
	assert.Equal(t, StateClosed, cb.State())
}

func TestProbeAfterTimeoutClosesOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker(Settings{Name: "test", MaxFailures: 1, Timeout: 10 * time.Millisecond})
	failingCalls(cb, 1)
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)

	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestProbeAfterTimeoutReopensOnFailure(t *testing.T) {
	cb := NewCircuitBreaker(Settings{Name: "test", MaxFailures: 1, Timeout: 10 * time.Millisecond})
	failingCalls(cb, 1)

	time.Sleep(20 * time.Millisecond)

	failingCalls(cb, 1)
	assert.Equal(t, StateOpen, cb.State())
}

func TestZeroSettingsGetDefaults(t *testing.T) {
	cb := NewCircuitBreaker(Settings{Name: "test"})
	assert.Equal(t, 5, cb.maxFailures)
	assert.Equal(t, 30*time.Second, cb.timeout)
}
