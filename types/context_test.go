package types

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextValues(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, ok := TraceID(ctx)
	assert.False(t, ok)
	assert.Equal(t, 0, TeamDepth(ctx))

	ctx = WithTraceID(ctx, "tr-1")
	ctx = WithSessionID(ctx, "sess-1")
	ctx = WithTeamDepth(ctx, 2)

	id, ok := TraceID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "tr-1", id)

	sid, ok := SessionID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "sess-1", sid)
	assert.Equal(t, 2, TeamDepth(ctx))
}

func TestContextValues_EmptyStringIsAbsent(t *testing.T) {
	t.Parallel()

	_, ok := SessionID(WithSessionID(context.Background(), ""))
	assert.False(t, ok)
}
