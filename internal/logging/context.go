package logging

import "context"

// Context keys for logging values. Using private types avoids key
// collisions with other packages' context values.
type contextKey int

const (
	sessionIDKey contextKey = iota
	componentKey
	hookEventKey
	cycleKey
)

// WithSession adds the current session ID to the context.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// WithComponent adds a component name to the context. Component names
// identify which MACF subsystem is generating logs, e.g. "hook_runtime",
// "eventlog", "search".
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey, component)
}

// WithHookEvent adds the semantic hook event name to the context.
func WithHookEvent(ctx context.Context, hookEvent string) context.Context {
	return context.WithValue(ctx, hookEventKey, hookEvent)
}

// WithCycle adds the current consciousness cycle number to the context.
func WithCycle(ctx context.Context, cycle int) context.Context {
	return context.WithValue(ctx, cycleKey, cycle)
}

// SessionIDFromContext extracts the session ID, or "" if unset.
func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionIDKey).(string); ok {
		return v
	}
	return ""
}

// ComponentFromContext extracts the component name, or "" if unset.
func ComponentFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(componentKey).(string); ok {
		return v
	}
	return ""
}

// HookEventFromContext extracts the hook event name, or "" if unset.
func HookEventFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(hookEventKey).(string); ok {
		return v
	}
	return ""
}

// CycleFromContext extracts the cycle number, or 0 if unset.
func CycleFromContext(ctx context.Context) int {
	if v, ok := ctx.Value(cycleKey).(int); ok {
		return v
	}
	return 0
}
