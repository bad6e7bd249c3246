package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Multiplier: 2.0,
	}
}

func TestWithBackoffSucceedsFirstTry(t *testing.T) {
	result := WithBackoff(context.Background(), fastConfig(), func() error {
		return nil
	})
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Attempts)
}

func TestWithBackoffRetriesTransientErrors(t *testing.T) {
	calls := 0
	result := WithBackoff(context.Background(), fastConfig(), func() error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
}

func TestWithBackoffStopsOnNonRetryable(t *testing.T) {
	calls := 0
	permanent := errors.New("invalid credentials")
	result := WithBackoff(context.Background(), fastConfig(), func() error {
		calls++
		return permanent
	})
	assert.False(t, result.Success)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, result.LastError, permanent)
}

func TestWithBackoffExhaustsBudget(t *testing.T) {
	calls := 0
	result := WithBackoff(context.Background(), fastConfig(), func() error {
		calls++
		return errors.New("503 service unavailable")
	})
	assert.False(t, result.Success)
	assert.Equal(t, 4, calls) // initial attempt + 3 retries
}

func TestWithBackoffHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	result := WithBackoff(ctx, Config{MaxRetries: 5, BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}, func() error {
		calls++
		cancel()
		return errors.New("timeout")
	})
	assert.False(t, result.Success)
	require.Error(t, result.LastError)
	assert.LessOrEqual(t, calls, 2)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(errors.New("connection reset by peer")))
	assert.True(t, IsRetryable(errors.New("HTTP 429 Too Many Requests")))
	assert.True(t, IsRetryable(fmt.Errorf("wrapped: %w", errors.New("context deadline exceeded"))))
	assert.False(t, IsRetryable(errors.New("file not found")))
	assert.False(t, IsRetryable(nil))
}

func TestCalculateDelayIsCapped(t *testing.T) {
	config := Config{BaseDelay: time.Second, MaxDelay: 3 * time.Second, Multiplier: 10}
	delay := calculateDelay(config, 5)
	assert.LessOrEqual(t, delay, 3*time.Second)
}
