package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"studentportal.org/internal/auth"
	"studentportal.org/internal/ids"
	"studentportal.org/internal/obs"
)

// Event names emitted by the portal.
const (
	SessionLogin       = "session.login"
	SessionLoginFailed = "session.login_failed"
	SessionRegister    = "session.register"
	SessionLogout      = "session.logout"
	SessionInvalidated = "session.invalidated"
	SessionRestored    = "session.restored"
	EnrollmentCreate   = "enrollment.create"
	EnrollmentDrop     = "enrollment.drop"
	CourseCreate       = "course.create"
	CourseUpdate       = "course.update"
	CourseDelete       = "course.delete"
)

// redacted keys never reach the log, whatever the caller passes.
var redacted = map[string]struct{}{
	"password":     {},
	"token":        {},
	"access_token": {},
}

// LogEvent writes an audit log entry enriched with request and user context.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	entry := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"type":  "audit",
		"event": event,
	}
	if rid := ids.RequestIDFromContext(ctx); rid != "" {
		entry["request_id"] = rid
	}
	if s, ok := auth.SessionFromContext(ctx); ok {
		if s.SubjectID != "" {
			entry["user_id"] = s.SubjectID
		}
		if s.Role.Valid() {
			entry["role"] = s.Role.String()
		}
	}
	copyFields := make(map[string]any, len(fields))
	for k, v := range fields {
		if _, hide := redacted[strings.ToLower(k)]; hide {
			continue
		}
		copyFields[k] = v
	}
	entry["fields"] = copyFields

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))
	return nil
}
