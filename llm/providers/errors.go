package providers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/BaSui01/agentteam/llm"
)

// MapHTTPError 将 HTTP 状态码映射为带有合适重试标记的 llm.Error
// 这是所有提供者使用的通用错误映射函数
func MapHTTPError(status int, msg string, provider string) *llm.Error {
	e := &llm.Error{
		Message:    msg,
		HTTPStatus: status,
		Provider:   provider,
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Code = llm.ErrUnauthorized
	case status == http.StatusTooManyRequests:
		e.Code = llm.ErrRateLimited
		e.Retryable = true
	case status == http.StatusBadRequest || status == http.StatusNotFound ||
		status == http.StatusRequestEntityTooLarge || status == http.StatusUnprocessableEntity:
		e.Code = llm.ErrInvalidRequest
		if isContentFilter(msg) {
			e.Code = llm.ErrContentFiltered
		}
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		e.Code = llm.ErrUpstreamTimeout
		e.Retryable = true
	case status == 529: // 部分服务商用 529 表示模型过载
		e.Code = llm.ErrModelOverloaded
		e.Retryable = true
	default:
		e.Code = llm.ErrUpstreamError
		e.Retryable = status >= 500
	}
	return e
}

// MapTransportError 将没有 HTTP 状态码的错误（网络、超时）归类。
func MapTransportError(err error, provider string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &llm.Error{
			Code:      llm.ErrUpstreamTimeout,
			Message:   "request timed out",
			Retryable: true,
			Provider:  provider,
			Cause:     err,
		}
	}
	return &llm.Error{
		Code:      llm.ErrUpstreamError,
		Message:   "request failed",
		Retryable: true,
		Provider:  provider,
		Cause:     err,
	}
}

func isContentFilter(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "content_filter") ||
		strings.Contains(lower, "content policy") ||
		strings.Contains(lower, "safety")
}
