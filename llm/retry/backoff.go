package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// ErrExhausted 表示所有尝试都失败了。
var ErrExhausted = errors.New("retry attempts exhausted")

// BackoffKind 退避方式
type BackoffKind string

const (
	// BackoffLinear 第 n 次失败后等待 Delay × n
	BackoffLinear BackoffKind = "linear"
	// BackoffExponential 第 n 次失败后等待 Delay × Multiplier^(n-1)
	BackoffExponential BackoffKind = "exponential"
)

// RetryPolicy 定义重试策略配置
type RetryPolicy struct {
	MaxAttempts int                                               // 总尝试次数（含第一次），至少为 1
	Delay       time.Duration                                     // 基础延迟
	Backoff     BackoffKind                                       // 退避方式，默认线性
	Multiplier  float64                                           // 指数退避倍数
	MaxDelay    time.Duration                                     // 单次延迟上限，0 表示不限
	Jitter      bool                                              // 指数退避时添加 ±25% 抖动
	Retryable   func(err error) bool                              // 为空则所有错误都可重试
	OnRetry     func(attempt int, err error, delay time.Duration) // 重试回调
}

// DefaultRetryPolicy 返回决策调用使用的默认策略：3 次尝试，线性 1s 退避。
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: 3,
		Delay:       time.Second,
		Backoff:     BackoffLinear,
		Multiplier:  2.0,
	}
}

// Retryer 重试器接口
type Retryer interface {
	// Do 执行函数，失败时根据策略重试
	Do(ctx context.Context, fn func() error) error

	// DoWithResult 执行函数并返回结果，失败时根据策略重试
	DoWithResult(ctx context.Context, fn func() (any, error)) (any, error)
}

type backoffRetryer struct {
	policy RetryPolicy
	logger *zap.Logger
}

// NewBackoffRetryer 创建重试器。policy 会被复制，调用方后续修改不影响重试器。
func NewBackoffRetryer(policy *RetryPolicy, logger *zap.Logger) Retryer {
	if policy == nil {
		policy = DefaultRetryPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := *policy
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Delay < 0 {
		p.Delay = 0
	}
	if p.Backoff == "" {
		p.Backoff = BackoffLinear
	}
	if p.Multiplier < 1.0 {
		p.Multiplier = 2.0
	}

	return &backoffRetryer{
		policy: p,
		logger: logger.With(zap.String("component", "retryer")),
	}
}

func (r *backoffRetryer) Do(ctx context.Context, fn func() error) error {
	_, err := r.DoWithResult(ctx, func() (any, error) {
		return nil, fn()
	})
	return err
}

func (r *backoffRetryer) DoWithResult(ctx context.Context, fn func() (any, error)) (any, error) {
	var lastErr error

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := r.Delay(attempt - 1)

			r.logger.Debug("retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", r.policy.MaxAttempts),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)

			if r.policy.OnRetry != nil {
				r.policy.OnRetry(attempt, lastErr, delay)
			}

			if err := sleep(ctx, delay); err != nil {
				return nil, fmt.Errorf("retry cancelled: %w", err)
			}
		}

		result, err := fn()
		if err == nil {
			if attempt > 1 {
				r.logger.Info("retry succeeded", zap.Int("attempt", attempt))
			}
			return result, nil
		}
		lastErr = err

		if !r.isRetryable(err) {
			r.logger.Debug("error is not retryable", zap.Error(err))
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("retry cancelled: %w", ctx.Err())
		}
	}

	r.logger.Warn("retry attempts exhausted",
		zap.Int("attempts", r.policy.MaxAttempts),
		zap.Error(lastErr),
	)
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, r.policy.MaxAttempts, lastErr)
}

// Delay 返回第 failed 次失败之后的等待时间。
func (r *backoffRetryer) Delay(failed int) time.Duration {
	return r.policy.delayFor(failed)
}

func (p RetryPolicy) delayFor(failed int) time.Duration {
	if failed < 1 || p.Delay == 0 {
		return 0
	}

	var delay float64
	switch p.Backoff {
	case BackoffExponential:
		delay = float64(p.Delay) * math.Pow(p.Multiplier, float64(failed-1))
		if p.Jitter {
			jitter := delay * 0.25
			delay += (rand.Float64()*2 - 1) * jitter
		}
	default:
		delay = float64(p.Delay) * float64(failed)
	}

	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	return time.Duration(delay)
}

func (r *backoffRetryer) isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if r.policy.Retryable == nil {
		return true
	}
	return r.policy.Retryable(err)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
