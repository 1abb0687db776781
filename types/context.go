package types

import "context"

// contextKey is used for storing values in context.Context.
type contextKey string

const (
	keyTraceID   contextKey = "trace_id"
	keySessionID contextKey = "session_id"
	keyTeamDepth contextKey = "team_depth"
)

// WithTraceID adds trace ID to context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, keyTraceID, traceID)
}

// TraceID extracts trace ID from context.
func TraceID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyTraceID).(string)
	return v, ok && v != ""
}

// WithSessionID adds session ID to context.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, keySessionID, sessionID)
}

// SessionID extracts session ID from context.
func SessionID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keySessionID).(string)
	return v, ok && v != ""
}

// WithTeamDepth records how many Team invocations enclose the current one.
func WithTeamDepth(ctx context.Context, depth int) context.Context {
	return context.WithValue(ctx, keyTeamDepth, depth)
}

// TeamDepth returns the nesting depth, 0 at the top level.
func TeamDepth(ctx context.Context) int {
	v, _ := ctx.Value(keyTeamDepth).(int)
	return v
}
