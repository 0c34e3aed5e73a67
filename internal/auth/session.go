package auth

import (
	"fmt"
	"strings"
)

// Session is the authenticated identity of one browser tab or CLI profile.
type Session struct {
	SubjectID   string `json:"subject_id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	Role        Role   `json:"role"`
	Token       string `json:"-"`
}

func (s Session) IsStudent() bool { return s.Role == RoleStudent }
func (s Session) IsAdmin() bool   { return s.Role == RoleAdmin }

// Validate enforces the session invariants: a subject, a credential and exactly one role.
func (s Session) Validate() error {
	if strings.TrimSpace(s.SubjectID) == "" {
		return fmt.Errorf("%w: subject id missing", ErrInvalidSession)
	}
	if strings.TrimSpace(s.Token) == "" {
		return fmt.Errorf("%w: credential missing", ErrInvalidSession)
	}
	if !s.Role.Valid() {
		return fmt.Errorf("%w: %w", ErrInvalidSession, ErrInvalidRole)
	}
	return nil
}
