package session

import "context"

type contextKey string

const sessionKey contextKey = "session"

// WithSession добавляет сессию в контекст.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// FromContext извлекает сессию из контекста.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey).(*Session)
	return s, ok
}
