package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBackoffRetryer_Success(t *testing.T) {
	t.Parallel()
	retryer := NewBackoffRetryer(&RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond}, zap.NewNop())

	callCount := 0
	err := retryer.Do(context.Background(), func() error {
		callCount++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, callCount, "应该只调用一次")
}

func TestBackoffRetryer_RetryAndSuccess(t *testing.T) {
	t.Parallel()
	retryer := NewBackoffRetryer(&RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond}, zap.NewNop())

	callCount := 0
	err := retryer.Do(context.Background(), func() error {
		callCount++
		if callCount < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, callCount)
}

func TestBackoffRetryer_Exhausted(t *testing.T) {
	t.Parallel()
	retryer := NewBackoffRetryer(&RetryPolicy{MaxAttempts: 2, Delay: time.Millisecond}, nil)

	testErr := errors.New("persistent error")
	callCount := 0
	err := retryer.Do(context.Background(), func() error {
		callCount++
		return testErr
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, testErr)
	assert.Equal(t, 2, callCount)
}

func TestBackoffRetryer_NonRetryable(t *testing.T) {
	t.Parallel()
	permanent := errors.New("bad request")
	retryer := NewBackoffRetryer(&RetryPolicy{
		MaxAttempts: 5,
		Delay:       time.Millisecond,
		Retryable:   func(err error) bool { return !errors.Is(err, permanent) },
	}, zap.NewNop())

	callCount := 0
	err := retryer.Do(context.Background(), func() error {
		callCount++
		return permanent
	})

	assert.Equal(t, permanent, err)
	assert.Equal(t, 1, callCount, "不可重试的错误不应重试")
}

func TestBackoffRetryer_LinearDelays(t *testing.T) {
	t.Parallel()
	var delays []time.Duration
	retryer := NewBackoffRetryer(&RetryPolicy{
		MaxAttempts: 4,
		Delay:       2 * time.Millisecond,
		OnRetry: func(_ int, _ error, d time.Duration) {
			delays = append(delays, d)
		},
	}, zap.NewNop())

	_ = retryer.Do(context.Background(), func() error { return errors.New("fail") })

	assert.Equal(t, []time.Duration{
		2 * time.Millisecond,
		4 * time.Millisecond,
		6 * time.Millisecond,
	}, delays)
}

func TestRetryPolicy_Delay(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		policy RetryPolicy
		failed int
		want   time.Duration
	}{
		{"linear first", RetryPolicy{Delay: time.Second, Backoff: BackoffLinear}, 1, time.Second},
		{"linear third", RetryPolicy{Delay: time.Second, Backoff: BackoffLinear}, 3, 3 * time.Second},
		{"exponential third", RetryPolicy{Delay: time.Second, Backoff: BackoffExponential, Multiplier: 2}, 3, 4 * time.Second},
		{"capped", RetryPolicy{Delay: time.Second, Backoff: BackoffLinear, MaxDelay: 2 * time.Second}, 5, 2 * time.Second},
		{"zero delay", RetryPolicy{Backoff: BackoffLinear}, 3, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.policy.delayFor(tt.failed))
		})
	}
}

func TestBackoffRetryer_ContextCancelled(t *testing.T) {
	t.Parallel()
	retryer := NewBackoffRetryer(&RetryPolicy{MaxAttempts: 5, Delay: time.Hour}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	callCount := 0
	err := retryer.Do(ctx, func() error {
		callCount++
		cancel()
		return errors.New("fail")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, callCount)
}

func TestDoWithResultTyped(t *testing.T) {
	t.Parallel()
	retryer := NewBackoffRetryer(&RetryPolicy{MaxAttempts: 2, Delay: time.Millisecond}, zap.NewNop())

	calls := 0
	val, err := DoWithResultTyped[string](retryer, context.Background(), func() (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("once")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", val)
}
