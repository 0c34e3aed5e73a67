package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"studentportal.org/internal/auth"
	"studentportal.org/internal/ids"
	"studentportal.org/internal/obs"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	logger := obs.Logger()
	original := logger.Writer()
	logger.SetFlags(0)
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(original) })
	return &buf
}

func TestLogEvent(t *testing.T) {
	buf := captureLog(t)

	ctx := context.Background()
	ctx = ids.WithRequestID(ctx, "req-123")
	ctx = auth.ContextWithSession(ctx, auth.Session{SubjectID: "user-42", Role: auth.RoleAdmin, Token: "t"})

	if err := LogEvent(ctx, CourseDelete, map[string]any{"course_id": "c1", "token": "secret"}); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	line := buf.String()
	if line == "" {
		t.Fatal("expected log output")
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["type"] != "audit" {
		t.Fatalf("unexpected type: %v", entry["type"])
	}
	if entry["event"] != CourseDelete {
		t.Fatalf("unexpected event: %v", entry["event"])
	}
	if entry["request_id"] != "req-123" {
		t.Fatalf("unexpected request id: %v", entry["request_id"])
	}
	if entry["user_id"] != "user-42" || entry["role"] != "admin" {
		t.Fatalf("unexpected identity: %v %v", entry["user_id"], entry["role"])
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["course_id"] != "c1" {
		t.Fatalf("fields missing or incorrect: %v", entry["fields"])
	}
	if _, leaked := fields["token"]; leaked {
		t.Fatalf("token leaked into audit log: %v", fields)
	}
}

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), "  ", nil); err == nil {
		t.Fatal("expected error for empty event name")
	}
}
