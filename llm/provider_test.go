package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	resp        *ChatResponse
	err         error
	last        *ChatRequest
	hasDeadline bool
}

func (f *fakeProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	f.last = req
	_, f.hasDeadline = ctx.Deadline()
	return f.resp, f.err
}

func (f *fakeProvider) Name() string { return "fake" }

func TestComplete_BuildsMessages(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{resp: &ChatResponse{Content: "Reviewer"}}

	out, err := Complete(context.Background(), p, "sys", "pick one",
		[]Message{{Role: RoleAssistant, Content: "earlier", Name: "Coder"}},
		WithModel("m1"), WithTraceID("t1"), WithTimeout(time.Second))
	require.NoError(t, err)
	assert.Equal(t, "Reviewer", out)

	require.Len(t, p.last.Messages, 3)
	assert.Equal(t, RoleSystem, p.last.Messages[0].Role)
	assert.Equal(t, RoleAssistant, p.last.Messages[1].Role)
	assert.Equal(t, "pick one", p.last.Messages[2].Content)
	assert.Equal(t, "m1", p.last.Model)
	assert.Equal(t, "t1", p.last.TraceID)
	assert.True(t, p.hasDeadline)
}

func TestComplete_NilResponse(t *testing.T) {
	t.Parallel()
	_, err := Complete(context.Background(), &fakeProvider{}, "", "x", nil)
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"invalid request", &Error{Code: ErrInvalidRequest, HTTPStatus: 400}, false},
		{"wrapped invalid request", fmt.Errorf("call: %w", &Error{Code: ErrInvalidRequest, Retryable: true}), false},
		{"rate limited", &Error{Code: ErrRateLimited, HTTPStatus: 429}, true},
		{"unauthorized", &Error{Code: ErrUnauthorized, HTTPStatus: 401}, false},
		{"upstream 503", &Error{Code: ErrUpstreamError, HTTPStatus: 503}, true},
		{"plain error", errors.New("connection reset"), true},
		{"canceled", context.Canceled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestRateLimitedProvider(t *testing.T) {
	t.Parallel()
	inner := &fakeProvider{resp: &ChatResponse{Content: "ok"}}
	p := NewRateLimitedProvider(inner, 0, 0)
	assert.Equal(t, "fake", p.Name())

	resp, err := p.Completion(context.Background(), &ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
}

func TestRateLimitedProvider_WaitCancelled(t *testing.T) {
	t.Parallel()
	p := NewRateLimitedProvider(&fakeProvider{resp: &ChatResponse{}}, 0.001, 1)

	// 第一次消耗掉唯一的令牌
	_, err := p.Completion(context.Background(), &ChatRequest{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = p.Completion(ctx, &ChatRequest{})
	require.Error(t, err)

	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, ErrRateLimited, e.Code)
}
