package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenInfo is what can be read from a credential without verifying it. None of it is
// trusted for authorization; the role hint only picks which profile endpoint to ask first.
type TokenInfo struct {
	Subject   string
	RoleHint  Role
	ExpiresAt time.Time
}

// Expired reports whether the token carried an expiry that has passed at now.
func (i TokenInfo) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// ErrOpaqueToken is returned by InspectToken for credentials that are not JWTs.
var ErrOpaqueToken = errors.New("auth: opaque token")

// InspectToken decodes JWT claims without checking the signature; the issuing service
// is the only party able to verify it.
func InspectToken(token string) (TokenInfo, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return TokenInfo{}, ErrInvalidToken
	}
	if strings.Count(token, ".") != 2 {
		return TokenInfo{}, ErrOpaqueToken
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return TokenInfo{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var info TokenInfo
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		info.Subject = sub
	} else if id, ok := claims["id"].(string); ok {
		info.Subject = id
	}
	if raw, ok := claims["role"].(string); ok {
		if role, err := ParseRole(raw); err == nil {
			info.RoleHint = role
		}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return TokenInfo{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if exp != nil {
		info.ExpiresAt = exp.Time
	}
	return info, nil
}
