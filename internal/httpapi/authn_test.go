package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"studentportal.org/internal/auth"
)

func gated(role auth.Role) http.Handler {
	return RequireRole(role)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestRequireRoleAllowsMatchingRole(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/internal", nil)
	req = req.WithContext(auth.ContextWithSession(req.Context(), auth.Session{SubjectID: "user-1", Role: auth.RoleAdmin, Token: "t"}))

	rr := httptest.NewRecorder()
	gated(auth.RoleAdmin).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestRequireRoleRejectsOtherRole(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/internal", nil)
	req = req.WithContext(auth.ContextWithSession(req.Context(), auth.Session{SubjectID: "user-1", Role: auth.RoleStudent, Token: "t"}))

	rr := httptest.NewRecorder()
	gated(auth.RoleAdmin).ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	if got := rr.Header().Get("WWW-Authenticate"); got == "" {
		t.Fatalf("expected WWW-Authenticate header set")
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["redirect"] != auth.StudentHomePath {
		t.Fatalf("redirect = %v", body["redirect"])
	}
}

func TestRequireRoleRejectsMissingSession(t *testing.T) {
	for _, role := range []auth.Role{"", auth.RoleStudent, auth.RoleAdmin} {
		req := httptest.NewRequest(http.MethodGet, "/internal", nil)
		rr := httptest.NewRecorder()
		gated(role).ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("role %q: expected 401, got %d", role, rr.Code)
		}
		if got := rr.Header().Get("WWW-Authenticate"); got == "" {
			t.Fatalf("expected WWW-Authenticate header set")
		}
		var body map[string]any
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if body["redirect"] != auth.LoginPath || body["error"] != "authentication required" {
			t.Fatalf("body = %v", body)
		}
	}
}
