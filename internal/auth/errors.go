package auth

import "errors"

var (
	// ErrUnauthenticated covers missing, expired and rejected credentials.
	ErrUnauthenticated = errors.New("auth: unauthenticated")
	// ErrForbidden means the session exists but its role may not perform the action.
	ErrForbidden      = errors.New("auth: forbidden")
	ErrInvalidRole    = errors.New("auth: invalid role")
	ErrInvalidToken   = errors.New("auth: invalid token")
	ErrInvalidSession = errors.New("auth: invalid session")
	ErrBadTransition  = errors.New("auth: invalid state transition")
)
