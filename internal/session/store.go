package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"studentportal.org/internal/audit"
	"studentportal.org/internal/auth"
	"studentportal.org/internal/obs"
	"studentportal.org/internal/portal"
)

// Store owns one session: the identity, role and credential of a browser session or
// CLI profile. It is safe for concurrent use.
type Store struct {
	identity portal.IdentityService
	tokens   TokenStore
	key      string
	now      func() time.Time

	mu      sync.RWMutex
	state   auth.State
	session auth.Session

	// ended is called after Logout and Invalidate.
	ended func(*Store)
}

var (
	_ auth.SessionSource = (*Store)(nil)
	_ auth.Credentials   = (*Store)(nil)
)

// NewStore returns an unauthenticated store persisting its token under key.
func NewStore(identity portal.IdentityService, tokens TokenStore, key string) *Store {
	if tokens == nil {
		tokens = NewMemoryTokens()
	}
	return &Store{
		identity: identity,
		tokens:   tokens,
		key:      key,
		now:      time.Now,
		state:    auth.Unauthenticated,
	}
}

// Key is the persistence key of the store.
func (s *Store) Key() string { return s.key }

// State returns the gate state.
func (s *Store) State() auth.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Current returns the session, if any.
func (s *Store) Current() (auth.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == auth.Unauthenticated {
		return auth.Session{}, false
	}
	return s.session, true
}

// Token is read by the service clients on every call, so logout takes effect
// on the next request.
func (s *Store) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == auth.Unauthenticated || s.session.Token == "" {
		return "", false
	}
	return s.session.Token, true
}

// Context attaches the store as the credential source, and the session when present.
func (s *Store) Context(ctx context.Context) context.Context {
	ctx = auth.ContextWithCredentials(ctx, s)
	if sess, ok := s.Current(); ok {
		ctx = auth.ContextWithSession(ctx, sess)
	}
	return ctx
}

// Login authenticates against the identity service. A failed login leaves the current
// state untouched; a successful one replaces any existing session.
func (s *Store) Login(ctx context.Context, role auth.Role, creds portal.Credentials) (auth.Session, error) {
	if !role.Valid() {
		return auth.Session{}, auth.ErrInvalidRole
	}
	if err := portal.Validate(creds); err != nil {
		return auth.Session{}, err
	}
	// Credentials of another session must not leak into the login call.
	ctx = auth.ContextWithCredentials(ctx, auth.StaticToken(""))

	var (
		grant portal.TokenGrant
		err   error
	)
	if role == auth.RoleAdmin {
		grant, err = s.identity.LoginAdmin(ctx, creds)
	} else {
		grant, err = s.identity.LoginStudent(ctx, creds)
	}
	if err != nil {
		_ = audit.LogEvent(ctx, audit.SessionLoginFailed, map[string]any{"role": role.String(), "email": creds.Email})
		return auth.Session{}, err
	}
	sess, err := sessionFromGrant(grant, role)
	if err != nil {
		return auth.Session{}, err
	}
	if err := s.establish(ctx, sess); err != nil {
		return auth.Session{}, err
	}
	_ = audit.LogEvent(auth.ContextWithSession(ctx, sess), audit.SessionLogin, map[string]any{"role": role.String()})
	return sess, nil
}

// Register creates a student account and logs in with the same credentials.
func (s *Store) Register(ctx context.Context, reg portal.Registration) (auth.Session, error) {
	if err := portal.Validate(reg); err != nil {
		return auth.Session{}, err
	}
	id, err := s.identity.Register(auth.ContextWithCredentials(ctx, auth.StaticToken("")), reg)
	if err != nil {
		return auth.Session{}, err
	}
	_ = audit.LogEvent(ctx, audit.SessionRegister, map[string]any{"student_id": id})
	return s.Login(ctx, auth.RoleStudent, portal.Credentials{Email: reg.Email, Password: reg.Password})
}

func sessionFromGrant(grant portal.TokenGrant, requested auth.Role) (auth.Session, error) {
	role := requested
	if grant.Role != "" {
		granted, err := auth.ParseRole(grant.Role)
		if err != nil {
			return auth.Session{}, err
		}
		if granted != requested {
			return auth.Session{}, fmt.Errorf("%w: asked for %s, granted %s", auth.ErrInvalidRole, requested, granted)
		}
		role = granted
	}
	sess := auth.Session{
		SubjectID:   grant.User.ID,
		DisplayName: grant.User.Name,
		Email:       grant.User.Email,
		Role:        role,
		Token:       grant.AccessToken,
	}
	if err := sess.Validate(); err != nil {
		return auth.Session{}, err
	}
	return sess, nil
}

// establish installs sess, logging out first when a session already exists.
func (s *Store) establish(ctx context.Context, sess auth.Session) error {
	s.mu.Lock()
	state := s.state.Logout()
	next, err := state.Login(sess.Role)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.state, s.session = next, sess
	s.mu.Unlock()

	if err := s.tokens.Save(ctx, s.key, sess.Token); err != nil {
		obs.Warn("session_token_persist_failed", map[string]any{"error": err.Error()})
	}
	return nil
}

// Logout clears the session unconditionally. The returned error only reports a failure
// to forget the persisted token.
func (s *Store) Logout(ctx context.Context) error {
	prev, had := s.clear()
	err := s.tokens.Delete(ctx, s.key)
	if had {
		_ = audit.LogEvent(auth.ContextWithSession(ctx, prev), audit.SessionLogout, nil)
	}
	s.end()
	return err
}

func (s *Store) end() {
	if s.ended != nil {
		s.ended(s)
	}
}

func (s *Store) clear() (auth.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.session, s.state != auth.Unauthenticated
	s.state = s.state.Logout()
	s.session = auth.Session{}
	return prev, had
}

// Observe destroys the session when err says the credential was rejected, then returns err.
func (s *Store) Observe(ctx context.Context, err error) error {
	if err != nil && errors.Is(err, auth.ErrUnauthenticated) {
		s.Invalidate(ctx, err)
	}
	return err
}

// Invalidate drops an expired or rejected session.
func (s *Store) Invalidate(ctx context.Context, cause error) {
	prev, had := s.clear()
	if err := s.tokens.Delete(ctx, s.key); err != nil {
		obs.Warn("session_token_delete_failed", map[string]any{"error": err.Error()})
	}
	if had {
		reason := ""
		if cause != nil {
			reason = cause.Error()
		}
		_ = audit.LogEvent(auth.ContextWithSession(ctx, prev), audit.SessionInvalidated, map[string]any{"reason": reason})
	}
	s.end()
}

// Rehydrate restores the session from the persisted token. Only the token is read from
// storage; identity and role come from the profile endpoints. A missing, expired or
// rejected token yields no session and no error. Service failures are returned and
// leave the token in place for a later attempt.
func (s *Store) Rehydrate(ctx context.Context) (auth.Session, bool, error) {
	if sess, ok := s.Current(); ok {
		return sess, true, nil
	}
	token, err := s.tokens.Load(ctx, s.key)
	if errors.Is(err, ErrNoToken) {
		return auth.Session{}, false, nil
	}
	if err != nil {
		return auth.Session{}, false, fmt.Errorf("session: load token: %w", err)
	}

	info, err := auth.InspectToken(token)
	switch {
	case err == nil:
		if info.Expired(s.now()) {
			s.Invalidate(ctx, auth.ErrInvalidToken)
			return auth.Session{}, false, nil
		}
	case errors.Is(err, auth.ErrOpaqueToken):
	default:
		s.Invalidate(ctx, err)
		return auth.Session{}, false, nil
	}

	profile, role, err := s.verify(auth.ContextWithToken(ctx, token), info.RoleHint)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) || errors.Is(err, auth.ErrForbidden) {
			s.Invalidate(ctx, err)
			return auth.Session{}, false, nil
		}
		return auth.Session{}, false, err
	}
	sess := auth.Session{
		SubjectID:   profile.ID,
		DisplayName: profile.Name,
		Email:       profile.Email,
		Role:        role,
		Token:       token,
	}
	if err := sess.Validate(); err != nil {
		s.Invalidate(ctx, err)
		return auth.Session{}, false, nil
	}

	s.mu.Lock()
	if s.state != auth.Unauthenticated {
		// A concurrent login won.
		cur := s.session
		s.mu.Unlock()
		return cur, true, nil
	}
	next, err := s.state.Login(role)
	if err != nil {
		s.mu.Unlock()
		return auth.Session{}, false, err
	}
	s.state, s.session = next, sess
	s.mu.Unlock()

	_ = audit.LogEvent(auth.ContextWithSession(ctx, sess), audit.SessionRestored, nil)
	return sess, true, nil
}

// verify asks the profile endpoint of the hinted role first and falls back to the other.
func (s *Store) verify(ctx context.Context, hint auth.Role) (portal.Profile, auth.Role, error) {
	order := []auth.Role{auth.RoleStudent, auth.RoleAdmin}
	if hint == auth.RoleAdmin {
		order = []auth.Role{auth.RoleAdmin, auth.RoleStudent}
	}
	var lastErr error
	for _, role := range order {
		var (
			p   portal.Profile
			err error
		)
		if role == auth.RoleAdmin {
			p, err = s.identity.AdminProfile(ctx)
		} else {
			p, err = s.identity.StudentProfile(ctx)
		}
		if err == nil {
			return p, role, nil
		}
		if errors.Is(err, auth.ErrUnauthenticated) {
			return portal.Profile{}, "", err
		}
		lastErr = err
		if !errors.Is(err, auth.ErrForbidden) && !errors.Is(err, portal.ErrNotFound) {
			return portal.Profile{}, "", err
		}
	}
	return portal.Profile{}, "", lastErr
}
