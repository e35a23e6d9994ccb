package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("connection refused")

func fastBackoff(n int) *Backoff {
	return NewBackoff(n, WithInitialDelay(time.Millisecond), WithMaxDelay(time.Millisecond), WithJitter(0))
}

func TestExecute_FirstAttempt(t *testing.T) {
	calls := 0
	err := NewExecutor(NewConnectClassifier(), fastBackoff(3)).Execute(context.Background(), func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestExecute_RecoversAfterTransient(t *testing.T) {
	calls := 0
	var retries []int
	exec := NewExecutor(NewConnectClassifier(), fastBackoff(3)).
		WithOnRetry(func(attempt int, err error, _ time.Duration) {
			retries = append(retries, attempt)
		})

	err := exec.Execute(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{0, 1}, retries)
}

func TestExecute_FatalStopsImmediately(t *testing.T) {
	fatal := errors.New("password authentication failed")
	calls := 0
	err := NewExecutor(NewConnectClassifier(), fastBackoff(3)).Execute(context.Background(), func(context.Context) error {
		calls++
		return fatal
	})
	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}

func TestExecute_Exhausted(t *testing.T) {
	calls := 0
	err := NewExecutor(NewConnectClassifier(), fastBackoff(2)).Execute(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	})
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
}

func TestExecute_NoRetries(t *testing.T) {
	calls := 0
	err := NewExecutor(NewConnectClassifier(), fastBackoff(0)).Execute(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestExecute_ContextCanceledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	slow := NewBackoff(5, WithInitialDelay(time.Hour), WithJitter(0), WithMaxDelay(time.Hour))
	exec := NewExecutor(NewConnectClassifier(), slow).WithOnRetry(func(int, error, time.Duration) { cancel() })

	err := exec.Execute(ctx, func(context.Context) error { return errTransient })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewExecutor_PanicsOnNil(t *testing.T) {
	assert.Panics(t, func() { NewExecutor(nil, fastBackoff(1)) })
	assert.Panics(t, func() { NewExecutor(NewConnectClassifier(), nil) })
}
