package ctxutil

import "context"

type sessionKey struct{}

// WithSessionID records the caller's curation session so that log lines
// deeper in the stack can be correlated with it.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	if sessionID == "" {
		return Default(ctx)
	}
	return context.WithValue(Default(ctx), sessionKey{}, sessionID)
}

func SessionID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(sessionKey{}).(string)
	return s
}
