package llm

import (
	"context"
	"errors"
	"time"
)

// 统一的 LLM 错误码，用于区分参数错误与可重试的上游故障。
type ErrorCode string

const (
	ErrInvalidRequest      ErrorCode = "LLM_INVALID_REQUEST"      // 参数/格式错误，不重试
	ErrUnauthorized        ErrorCode = "LLM_UNAUTHORIZED"         // 未授权或密钥失效
	ErrRateLimited         ErrorCode = "LLM_RATE_LIMITED"         // 上游或本地限流
	ErrContentFiltered     ErrorCode = "LLM_CONTENT_FILTERED"     // 命中内容安全
	ErrModelOverloaded     ErrorCode = "LLM_MODEL_OVERLOADED"     // 模型过载
	ErrUpstreamTimeout     ErrorCode = "LLM_UPSTREAM_TIMEOUT"     // 上游超时
	ErrUpstreamError       ErrorCode = "LLM_UPSTREAM_ERROR"       // 上游 5xx/网络错误
	ErrProviderUnavailable ErrorCode = "LLM_PROVIDER_UNAVAILABLE" // Provider 不可用
)

// Error 是 Provider 返回的结构化错误。
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
	Cause      error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// IsInvalidRequest 判断错误是否为参数形状错误（例如 prompt 过长、字段缺失）。
func IsInvalidRequest(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == ErrInvalidRequest
}

// IsRetryable 判断错误是否可以重试。参数错误永远不可重试；
// 非结构化错误（网络抖动等）按可重试处理。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code != ErrInvalidRequest && (e.Retryable || e.HTTPStatus == 0 || e.HTTPStatus >= 500 || e.HTTPStatus == 429)
	}
	return !errors.Is(err, context.Canceled)
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

type ChatRequest struct {
	TraceID     string            `json:"trace_id"`
	Model       string            `json:"model,omitempty"`
	Messages    []Message         `json:"messages"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Temperature float32           `json:"temperature,omitempty"`
	Stop        []string          `json:"stop,omitempty"`
	Timeout     time.Duration     `json:"timeout,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

type ChatResponse struct {
	ID           string    `json:"id,omitempty"`
	Provider     string    `json:"provider,omitempty"`
	Model        string    `json:"model"`
	Content      string    `json:"content"`
	FinishReason string    `json:"finish_reason,omitempty"`
	Usage        ChatUsage `json:"usage,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

// Provider 定义了统一的 LLM 适配接口。
// 调用是同步的；超时由调用方通过 ctx 或 ChatRequest.Timeout 控制。
type Provider interface {
	// Completion 发起同步聊天请求，返回完整响应
	Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Name 返回 Provider 的唯一标识
	Name() string
}

// CompleteOption 调整 Complete 生成的请求。
type CompleteOption func(*ChatRequest)

// WithModel 指定模型名。
func WithModel(model string) CompleteOption {
	return func(r *ChatRequest) { r.Model = model }
}

// WithTimeout 为单次调用设置超时。
func WithTimeout(d time.Duration) CompleteOption {
	return func(r *ChatRequest) { r.Timeout = d }
}

// WithTraceID 透传 trace id，便于 Provider 侧日志关联。
func WithTraceID(id string) CompleteOption {
	return func(r *ChatRequest) { r.TraceID = id }
}

// Complete 以 system/user/历史消息的形式调用 Provider，返回纯文本。
func Complete(ctx context.Context, p Provider, systemPrompt, userPrompt string, prior []Message, opts ...CompleteOption) (string, error) {
	msgs := make([]Message, 0, len(prior)+2)
	if systemPrompt != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: systemPrompt})
	}
	msgs = append(msgs, prior...)
	msgs = append(msgs, Message{Role: RoleUser, Content: userPrompt})

	req := &ChatRequest{Messages: msgs}
	for _, opt := range opts {
		opt(req)
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	resp, err := p.Completion(ctx, req)
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", &Error{Code: ErrUpstreamError, Message: "empty response", Provider: p.Name(), Retryable: true}
	}
	return resp.Content, nil
}
