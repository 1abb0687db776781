package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitedProvider 用令牌桶限制对底层 Provider 的调用频率。
// 多个并发 Trace 共享同一个 Provider 时，限流在这里统一生效。
type RateLimitedProvider struct {
	inner   Provider
	limiter *rate.Limiter
}

// NewRateLimitedProvider 创建限流 Provider。rps <= 0 表示不限流。
func NewRateLimitedProvider(inner Provider, rps float64, burst int) *RateLimitedProvider {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedProvider{inner: inner, limiter: rate.NewLimiter(limit, burst)}
}

func (p *RateLimitedProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, &Error{
			Code:      ErrRateLimited,
			Message:   fmt.Sprintf("rate limiter wait for %s", p.inner.Name()),
			Provider:  p.inner.Name(),
			Retryable: true,
			Cause:     err,
		}
	}
	return p.inner.Completion(ctx, req)
}

func (p *RateLimitedProvider) Name() string { return p.inner.Name() }
