package auth

import (
	"fmt"
	"strings"
)

// Role is the access class of an authenticated identity. A session holds exactly one.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

const (
	LoginPath       = "/login"
	StudentHomePath = "/student/dashboard"
	AdminHomePath   = "/admin/dashboard"
)

// ParseRole normalizes s and rejects anything other than student or admin.
func ParseRole(s string) (Role, error) {
	r := Role(strings.TrimSpace(strings.ToLower(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return r, nil
}

func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleAdmin
}

// Home is the landing route for the role; unknown roles land on the login page.
func (r Role) Home() string {
	switch r {
	case RoleStudent:
		return StudentHomePath
	case RoleAdmin:
		return AdminHomePath
	default:
		return LoginPath
	}
}

func (r Role) String() string { return string(r) }
