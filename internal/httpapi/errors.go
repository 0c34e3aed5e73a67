package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"studentportal.org/internal/auth"
	"studentportal.org/internal/mutate"
	"studentportal.org/internal/portal"
)

// statusFor maps the error taxonomy to an HTTP status. Authentication is checked
// first so that a rejected credential inside an aggregate still sends the user to login.
func statusFor(err error) int {
	var uerr *portal.UpstreamError
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, mutate.ErrInFlight):
		return http.StatusConflict
	case errors.Is(err, mutate.ErrNotConfirmed):
		return http.StatusPreconditionRequired
	case errors.Is(err, portal.ErrAggregate):
		return http.StatusBadGateway
	case errors.Is(err, portal.ErrInvalidInput):
		if errors.As(err, &uerr) {
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadRequest
	case errors.Is(err, portal.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, portal.ErrRejected):
		return http.StatusConflict
	default:
		return http.StatusServiceUnavailable
	}
}

// handleError writes err with the user-facing message: a service's own detail when it
// gave one, fallback otherwise. A rejected credential also ends the session.
func (a *API) handleError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	a.writeErrorWith(w, r, err, fallback, nil)
}

func (a *API) writeErrorWith(w http.ResponseWriter, r *http.Request, err error, fallback string, view any) {
	code := statusFor(err)
	payload := map[string]any{"error": portal.UserMessage(err, fallback)}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	var verr *portal.ValidationError
	if errors.As(err, &verr) {
		payload["fields"] = verr.Fields
	}
	switch code {
	case http.StatusUnauthorized:
		if st, ok := storeFromContext(r.Context()); ok {
			_ = st.Observe(r.Context(), err)
		}
		w.Header().Set("WWW-Authenticate", "Bearer")
		payload["redirect"] = auth.LoginPath
	case http.StatusForbidden:
		if s, ok := auth.SessionFromContext(r.Context()); ok {
			payload["redirect"] = s.Role.Home()
		}
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		a.logError(r, err)
	}
	if view != nil {
		payload["view"] = view
	}
	writeJSON(w, code, payload)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}
