package providers

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/agentteam/llm"
)

func TestMapHTTPError(t *testing.T) {
	t.Parallel()
	tests := []struct {
		status    int
		msg       string
		code      llm.ErrorCode
		retryable bool
	}{
		{401, "bad key", llm.ErrUnauthorized, false},
		{403, "forbidden", llm.ErrUnauthorized, false},
		{429, "slow down", llm.ErrRateLimited, true},
		{400, "prompt is too long", llm.ErrInvalidRequest, false},
		{400, "blocked by content policy", llm.ErrContentFiltered, false},
		{504, "gateway timeout", llm.ErrUpstreamTimeout, true},
		{529, "overloaded", llm.ErrModelOverloaded, true},
		{500, "boom", llm.ErrUpstreamError, true},
		{418, "teapot", llm.ErrUpstreamError, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_%s", tt.status, tt.code), func(t *testing.T) {
			t.Parallel()
			e := MapHTTPError(tt.status, tt.msg, "test")
			assert.Equal(t, tt.code, e.Code)
			assert.Equal(t, tt.retryable, e.Retryable)
			assert.Equal(t, tt.status, e.HTTPStatus)
			assert.Equal(t, "test", e.Provider)
		})
	}
}

func TestMapHTTPError_InvalidRequestNotRetryable(t *testing.T) {
	t.Parallel()
	err := MapHTTPError(400, "missing field", "test")
	assert.True(t, llm.IsInvalidRequest(err))
	assert.False(t, llm.IsRetryable(err))
}

func TestMapTransportError(t *testing.T) {
	t.Parallel()
	assert.NoError(t, MapTransportError(nil, "p"))
	assert.ErrorIs(t, MapTransportError(context.Canceled, "p"), context.Canceled)

	var e *llm.Error
	require.True(t, errors.As(MapTransportError(context.DeadlineExceeded, "p"), &e))
	assert.Equal(t, llm.ErrUpstreamTimeout, e.Code)
	assert.True(t, llm.IsRetryable(e))

	require.True(t, errors.As(MapTransportError(errors.New("conn reset"), "p"), &e))
	assert.Equal(t, llm.ErrUpstreamError, e.Code)
}
