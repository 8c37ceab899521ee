package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cassiomorais/payorders/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(attempts uint) retry.Config {
	return retry.Config{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestDo_SucceedsAfterTransientErrors(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), fastConfig(3), func() error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ReturnsLastError(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), fastConfig(2), func() error {
		calls++
		return errors.New("still down")
	})
	require.Error(t, err)
	assert.Equal(t, "still down", err.Error())
	assert.Equal(t, 2, calls)
}

func TestDo_RetryIfStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("declined")
	cfg := fastConfig(5)
	cfg.RetryIf = func(err error) bool { return !errors.Is(err, permanent) }

	calls := 0
	err := retry.Do(context.Background(), cfg, func() error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDo_OnRetryCalled(t *testing.T) {
	var seen []uint
	cfg := fastConfig(3)
	cfg.OnRetry = func(n uint, err error) { seen = append(seen, n) }

	_ = retry.Do(context.Background(), cfg, func() error { return errors.New("x") })
	require.NotEmpty(t, seen)
	assert.Equal(t, uint(0), seen[0])
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	v, err := retry.DoWithResult(context.Background(), fastConfig(3), func() (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("timeout")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}
