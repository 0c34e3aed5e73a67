package auth

import (
	"context"
	"strings"
)

type sessionContextKey struct{}
type credentialsContextKey struct{}

// Credentials yields the current bearer token. Implementations are read at call time,
// so a logout between two requests affects the second one.
type Credentials interface {
	Token() (string, bool)
}

// StaticToken is a fixed credential, used for one-off calls such as profile verification.
type StaticToken string

func (t StaticToken) Token() (string, bool) {
	v := strings.TrimSpace(string(t))
	return v, v != ""
}

// ContextWithSession attaches the authenticated session to the context.
func ContextWithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, &s)
}

// SessionFromContext extracts the session attached by ContextWithSession.
func SessionFromContext(ctx context.Context) (Session, bool) {
	if ctx == nil {
		return Session{}, false
	}
	v, ok := ctx.Value(sessionContextKey{}).(*Session)
	if !ok || v == nil {
		return Session{}, false
	}
	return *v, true
}

// ContextWithCredentials makes creds the token source for upstream calls made with ctx.
func ContextWithCredentials(ctx context.Context, creds Credentials) context.Context {
	if creds == nil {
		return ctx
	}
	return context.WithValue(ctx, credentialsContextKey{}, creds)
}

// ContextWithToken stores a raw bearer token inside the context.
func ContextWithToken(ctx context.Context, token string) context.Context {
	if strings.TrimSpace(token) == "" {
		return ctx
	}
	return ContextWithCredentials(ctx, StaticToken(token))
}

// TokenFromContext resolves the bearer token through the attached credentials.
func TokenFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	creds, ok := ctx.Value(credentialsContextKey{}).(Credentials)
	if !ok || creds == nil {
		return "", false
	}
	return creds.Token()
}

// UserIDFromContext returns the subject of the attached session.
func UserIDFromContext(ctx context.Context) (string, bool) {
	s, ok := SessionFromContext(ctx)
	if !ok || s.SubjectID == "" {
		return "", false
	}
	return s.SubjectID, true
}
