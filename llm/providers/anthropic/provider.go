package anthropic

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/BaSui01/agentteam/llm"
	"github.com/BaSui01/agentteam/llm/providers"
)

const (
	providerName     = "anthropic"
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 4096
)

// ClaudeProvider 通过官方 SDK 调用 Anthropic Messages API。
type ClaudeProvider struct {
	client *anthropic.Client
	cfg    providers.ClaudeConfig
	logger *zap.Logger
}

// NewClaudeProvider 创建 Claude Provider。SDK 自带的重试被关闭，
// 重试统一由调用方的重试策略负责。
func NewClaudeProvider(cfg providers.ClaudeConfig, logger *zap.Logger) *ClaudeProvider {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	client := anthropic.NewClient(opts...)
	return NewClaudeProviderFromClient(&client, cfg, logger)
}

// NewClaudeProviderFromClient 使用已有 client 创建 Provider。
func NewClaudeProviderFromClient(client *anthropic.Client, cfg providers.ClaudeConfig, logger *zap.Logger) *ClaudeProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClaudeProvider{
		client: client,
		cfg:    cfg,
		logger: logger.With(zap.String("provider", providerName)),
	}
}

func (p *ClaudeProvider) Name() string { return providerName }

func (p *ClaudeProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, &llm.Error{Code: llm.ErrInvalidRequest, Message: "no messages", Provider: providerName}
	}

	params := p.buildParams(req)
	start := time.Now()
	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, mapError(err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}

	p.logger.Debug("completion finished",
		zap.String("trace_id", req.TraceID),
		zap.String("model", string(msg.Model)),
		zap.Duration("latency", time.Since(start)),
		zap.Int64("input_tokens", msg.Usage.InputTokens),
		zap.Int64("output_tokens", msg.Usage.OutputTokens),
	)

	return &llm.ChatResponse{
		ID:           msg.ID,
		Provider:     providerName,
		Model:        string(msg.Model),
		Content:      text.String(),
		FinishReason: string(msg.StopReason),
		Usage: llm.ChatUsage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
		CreatedAt: time.Now(),
	}, nil
}

func (p *ClaudeProvider) buildParams(req *llm.ChatRequest) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(providers.ResolveModel(req.Model, p.cfg.Model, defaultModel)),
		MaxTokens: int64(providers.ResolveMaxTokens(req.MaxTokens, p.cfg.MaxTokens, defaultMaxTokens)),
	}

	// system 消息单独传递，其余按角色转换
	var system []anthropic.TextBlockParam
	for _, m := range req.Messages {
		switch m.Role {
		case llm.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
		case llm.RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	if len(system) > 0 {
		params.System = system
	}

	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(req.Temperature))
	} else if p.cfg.Temperature > 0 {
		params.Temperature = anthropic.Float(p.cfg.Temperature)
	}
	if len(req.Stop) > 0 {
		params.StopSequences = req.Stop
	}
	return params
}

func mapError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		e := providers.MapHTTPError(apiErr.StatusCode, apiErr.Error(), providerName)
		e.Message = "anthropic api error"
		e.Cause = err
		return e
	}
	return providers.MapTransportError(err, providerName)
}
