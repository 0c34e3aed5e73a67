package httpapi

import (
	"context"
	"net/http"
	"time"

	"studentportal.org/internal/auth"
	"studentportal.org/internal/obs"
	"studentportal.org/internal/session"
)

type storeContextKey struct{}

func withStore(ctx context.Context, st *session.Store) context.Context {
	return context.WithValue(ctx, storeContextKey{}, st)
}

func storeFromContext(ctx context.Context) (*session.Store, bool) {
	st, ok := ctx.Value(storeContextKey{}).(*session.Store)
	return st, ok && st != nil
}

// withSession resolves the cookie to a session store and attaches it, its credentials
// and its current session to the request context. Requests without a valid cookie
// proceed without a store.
func (a *API) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, ok := a.sessionKey(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		st, err := a.sessions.Get(r.Context(), key)
		if err != nil {
			obs.Warn("session_rehydrate_failed", map[string]any{
				"request_id": RequestIDFromContext(r.Context()),
				"error":      err.Error(),
			})
		}
		ctx := withStore(st.Context(r.Context()), st)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *API) sessionKey(r *http.Request) (string, bool) {
	c, err := r.Cookie(a.cookieName)
	if err != nil || !session.ValidKey(c.Value) {
		return "", false
	}
	return c.Value, true
}

func (a *API) setSessionCookie(w http.ResponseWriter, key string) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cookieName,
		Value:    key,
		Path:     "/",
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int((7 * 24 * time.Hour).Seconds()),
	})
}

func (a *API) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// RequireRole guards a route with the access gate. An empty role admits any session.
// Denials never reach next and always carry a redirect target.
func RequireRole(role auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, ok := auth.SessionFromContext(r.Context())
			d := auth.Authorize(s, ok, role)
			if d.Allowed {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("WWW-Authenticate", "Bearer")
			code, msg := http.StatusForbidden, "insufficient role"
			if !ok {
				code, msg = http.StatusUnauthorized, "authentication required"
			}
			payload := map[string]any{"error": msg, "redirect": d.Redirect}
			if rid := RequestIDFromContext(r.Context()); rid != "" {
				payload["request_id"] = rid
			}
			writeJSON(w, code, payload)
		})
	}
}
