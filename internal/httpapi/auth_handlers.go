package httpapi

import (
	"net/http"

	"studentportal.org/internal/auth"
	"studentportal.org/internal/portal"
	"studentportal.org/internal/session"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Admin    bool   `json:"admin"`
}

type sessionResponse struct {
	Session  auth.Session `json:"session"`
	State    string       `json:"state"`
	Redirect string       `json:"redirect"`
}

func newSessionResponse(sess auth.Session) sessionResponse {
	return sessionResponse{Session: sess, State: auth.StateOf(sess, true).String(), Redirect: sess.Role.Home()}
}

// storeForLogin reuses the caller's store or opens a new cookie-keyed one.
func (a *API) storeForLogin(w http.ResponseWriter, r *http.Request) (*session.Store, error) {
	if st, ok := storeFromContext(r.Context()); ok {
		return st, nil
	}
	key := a.sessions.NewKey()
	st, err := a.sessions.Get(r.Context(), key)
	if err != nil {
		return nil, err
	}
	a.setSessionCookie(w, key)
	return st, nil
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role := auth.RoleStudent
	if req.Admin {
		role = auth.RoleAdmin
	}
	st, err := a.storeForLogin(w, r)
	if err != nil {
		a.handleError(w, r, err, "Login failed")
		return
	}
	sess, err := st.Login(r.Context(), role, portal.Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		a.handleLoginError(w, r, err, "Login failed")
		return
	}
	a.sessions.Retain(st)
	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req portal.Registration
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	st, err := a.storeForLogin(w, r)
	if err != nil {
		a.handleError(w, r, err, "Registration failed")
		return
	}
	sess, err := st.Register(r.Context(), req)
	if err != nil {
		a.handleLoginError(w, r, err, "Registration failed")
		return
	}
	a.sessions.Retain(st)
	writeJSON(w, http.StatusCreated, newSessionResponse(sess))
}

// handleLoginError reports a failed login without touching the session: a rejected
// password is not a rejected credential.
func (a *API) handleLoginError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	code := statusFor(err)
	if code == http.StatusUnauthorized {
		writeError(w, r, code, portal.UserMessage(err, "Invalid email or password"))
		return
	}
	a.handleError(w, r, err, fallback)
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if st, ok := storeFromContext(r.Context()); ok {
		if err := st.Logout(r.Context()); err != nil {
			a.logError(r, err)
		}
		a.sessions.Forget(st.Key())
	}
	a.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{"redirect": auth.LoginPath})
}

func (a *API) handleCurrentSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newSessionResponse(currentSession(r)))
}
