package portal

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"studentportal.org/internal/auth"
)

var (
	ErrNotFound     = errors.New("portal: not found")
	ErrInvalidInput = errors.New("portal: invalid input")
	// ErrRejected is a service-side refusal of a well-formed request (already enrolled, course full, ...).
	ErrRejected    = errors.New("portal: rejected by service")
	ErrUnavailable = errors.New("portal: service unavailable")
	ErrAggregate   = errors.New("portal: aggregate fetch failed")
)

// FieldError describes one rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists the fields rejected before a request was sent.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return strings.Join(msgs, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

// UpstreamError is a non-2xx answer from one of the services.
type UpstreamError struct {
	Service    string
	StatusCode int
	Detail     string
}

func (e *UpstreamError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s service: %d: %s", e.Service, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s service: %d %s", e.Service, e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *UpstreamError) Unwrap() error { return KindForStatus(e.StatusCode) }

// KindForStatus maps an HTTP status to the error taxonomy.
func KindForStatus(code int) error {
	switch {
	case code == http.StatusUnauthorized:
		return auth.ErrUnauthenticated
	case code == http.StatusForbidden:
		return auth.ErrForbidden
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusUnprocessableEntity:
		return ErrInvalidInput
	case code >= 400 && code < 500:
		return ErrRejected
	default:
		return ErrUnavailable
	}
}

// AggregateError aborts an aggregation query; no partial result accompanies it.
type AggregateError struct {
	Query string
	Err   error
}

func (e *AggregateError) Error() string {
	return fmt.Sprintf("aggregate %s: %v", e.Query, e.Err)
}

func (e *AggregateError) Unwrap() error { return e.Err }

func (e *AggregateError) Is(target error) bool { return target == ErrAggregate }

// UserMessage picks what to show a user: validation messages and upstream details
// verbatim, fallback for everything else including transport failures.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var verr *ValidationError
	if errors.As(err, &verr) && len(verr.Fields) > 0 {
		return verr.Error()
	}
	var uerr *UpstreamError
	if errors.As(err, &uerr) && strings.TrimSpace(uerr.Detail) != "" {
		return uerr.Detail
	}
	return fallback
}
