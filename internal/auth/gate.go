package auth

import "fmt"

// State is the access state of a session store.
type State int

const (
	Unauthenticated State = iota
	AuthenticatedStudent
	AuthenticatedAdmin
)

func (s State) String() string {
	switch s {
	case AuthenticatedStudent:
		return "authenticated_student"
	case AuthenticatedAdmin:
		return "authenticated_admin"
	default:
		return "unauthenticated"
	}
}

// StateOf maps an optional session to its gate state.
func StateOf(s Session, ok bool) State {
	if !ok {
		return Unauthenticated
	}
	switch s.Role {
	case RoleStudent:
		return AuthenticatedStudent
	case RoleAdmin:
		return AuthenticatedAdmin
	default:
		return Unauthenticated
	}
}

// Login is the transition taken on a successful login. Only an unauthenticated
// state may log in; an authenticated one has to log out first.
func (s State) Login(role Role) (State, error) {
	if s != Unauthenticated {
		return s, fmt.Errorf("%w: login from %s", ErrBadTransition, s)
	}
	switch role {
	case RoleStudent:
		return AuthenticatedStudent, nil
	case RoleAdmin:
		return AuthenticatedAdmin, nil
	default:
		return s, fmt.Errorf("%w: %w", ErrBadTransition, ErrInvalidRole)
	}
}

// Logout is valid from every state.
func (s State) Logout() State { return Unauthenticated }

// SessionSource is a synchronous read of the current session.
type SessionSource interface {
	Current() (Session, bool)
}

// Decision is the outcome of a route check. Denied decisions always carry a redirect.
type Decision struct {
	Allowed  bool
	Redirect string
	Err      error
}

// Authorize decides route access. An empty required role admits any authenticated session.
func Authorize(s Session, ok bool, required Role) Decision {
	if !ok {
		return Decision{Redirect: LoginPath, Err: ErrUnauthenticated}
	}
	if required == "" {
		return Decision{Allowed: true}
	}
	if !required.Valid() || s.Role != required {
		return Decision{Redirect: s.Role.Home(), Err: ErrForbidden}
	}
	return Decision{Allowed: true}
}

// Gate guards protected views against a session source.
type Gate struct {
	sessions SessionSource
}

func NewGate(sessions SessionSource) Gate { return Gate{sessions: sessions} }

// Check returns the full decision for required.
func (g Gate) Check(required Role) Decision {
	if g.sessions == nil {
		return Authorize(Session{}, false, required)
	}
	s, ok := g.sessions.Current()
	return Authorize(s, ok, required)
}

// CanAccess is false without a session, and false when required is set and differs.
func (g Gate) CanAccess(required Role) bool {
	return g.Check(required).Allowed
}
