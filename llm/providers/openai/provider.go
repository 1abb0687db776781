package openai

import (
	"context"
	"errors"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/BaSui01/agentteam/llm"
	"github.com/BaSui01/agentteam/llm/providers"
)

const (
	providerName     = "openai"
	defaultModel     = "gpt-4o-mini"
	defaultMaxTokens = 4096
)

// OpenAIProvider 通过官方 SDK 调用 Chat Completions API。
// BaseURL 可指向任何 OpenAI 兼容服务。
type OpenAIProvider struct {
	client *openai.Client
	cfg    providers.OpenAIConfig
	logger *zap.Logger
}

// NewOpenAIProvider 创建新的 OpenAI 提供者实例.
func NewOpenAIProvider(cfg providers.OpenAIConfig, logger *zap.Logger) *OpenAIProvider {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Organization != "" {
		opts = append(opts, option.WithOrganization(cfg.Organization))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	client := openai.NewClient(opts...)
	return NewOpenAIProviderFromClient(&client, cfg, logger)
}

// NewOpenAIProviderFromClient 使用已有 client 创建 Provider。
func NewOpenAIProviderFromClient(client *openai.Client, cfg providers.OpenAIConfig, logger *zap.Logger) *OpenAIProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIProvider{
		client: client,
		cfg:    cfg,
		logger: logger.With(zap.String("provider", providerName)),
	}
}

func (p *OpenAIProvider) Name() string { return providerName }

func (p *OpenAIProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, &llm.Error{Code: llm.ErrInvalidRequest, Message: "no messages", Provider: providerName}
	}

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, p.buildParams(req))
	if err != nil {
		return nil, mapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &llm.Error{
			Code:      llm.ErrUpstreamError,
			Message:   "no choices returned",
			Retryable: true,
			Provider:  providerName,
		}
	}

	choice := resp.Choices[0]
	p.logger.Debug("completion finished",
		zap.String("trace_id", req.TraceID),
		zap.String("model", resp.Model),
		zap.Duration("latency", time.Since(start)),
		zap.Int64("total_tokens", resp.Usage.TotalTokens),
	)

	return &llm.ChatResponse{
		ID:           resp.ID,
		Provider:     providerName,
		Model:        resp.Model,
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
		Usage: llm.ChatUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
		CreatedAt: time.Unix(resp.Created, 0),
	}, nil
}

func (p *OpenAIProvider) buildParams(req *llm.ChatRequest) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case llm.RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		case llm.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(providers.ResolveModel(req.Model, p.cfg.Model, defaultModel)),
		Messages:            messages,
		MaxCompletionTokens: openai.Int(int64(providers.ResolveMaxTokens(req.MaxTokens, p.cfg.MaxTokens, defaultMaxTokens))),
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(float64(req.Temperature))
	} else if p.cfg.Temperature > 0 {
		params.Temperature = openai.Float(p.cfg.Temperature)
	}
	if req.TraceID != "" {
		params.User = openai.String(req.TraceID)
	}
	return params
}

func mapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		e := providers.MapHTTPError(apiErr.StatusCode, apiErr.Error(), providerName)
		e.Message = "openai api error"
		e.Cause = err
		return e
	}
	return providers.MapTransportError(err, providerName)
}
