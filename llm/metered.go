package llm

import (
	"context"

	"github.com/BaSui01/agentteam/internal/metrics"
)

// MeteredProvider 记录每次调用的状态与 token 用量。
type MeteredProvider struct {
	inner   Provider
	metrics *metrics.Collector
}

// NewMeteredProvider 包装 Provider；collector 为 nil 时只透传。
func NewMeteredProvider(inner Provider, collector *metrics.Collector) *MeteredProvider {
	return &MeteredProvider{inner: inner, metrics: collector}
}

func (p *MeteredProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	resp, err := p.inner.Completion(ctx, req)

	model := ""
	if req != nil {
		model = req.Model
	}
	var prompt, completion int
	if resp != nil {
		prompt, completion = resp.Usage.PromptTokens, resp.Usage.CompletionTokens
		if resp.Model != "" {
			model = resp.Model
		}
	}
	p.metrics.RecordLLMRequest(p.inner.Name(), model, metrics.Status(err), prompt, completion)
	return resp, err
}

func (p *MeteredProvider) Name() string { return p.inner.Name() }
