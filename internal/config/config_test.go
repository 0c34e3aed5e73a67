package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func isolate(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	for _, env := range bindings {
		t.Setenv(env, "")
		os.Unsetenv(env)
	}
	t.Setenv("PORTAL_CONFIG", "")
	t.Setenv("PORTAL_ENV_FILE", "")
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StudentServiceURL != "http://localhost:8001" ||
		cfg.CourseServiceURL != "http://localhost:8000" ||
		cfg.EnrollmentServiceURL != "http://localhost:8002" {
		t.Fatalf("unexpected service urls: %+v", cfg)
	}
	if cfg.UpstreamTimeout != 10*time.Second {
		t.Fatalf("timeout = %v", cfg.UpstreamTimeout)
	}
	if cfg.Backend != BackendRemote || cfg.SessionCookie != "portal_session" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "http://localhost:5173" {
		t.Fatalf("origins = %v", cfg.AllowedOrigins)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("COURSE_SERVICE_URL", "https://courses.example.com")
	t.Setenv("PORTAL_UPSTREAM_TIMEOUT", "3s")
	t.Setenv("PORTAL_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("PORTAL_SECURE_COOKIES", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CourseServiceURL != "https://courses.example.com" {
		t.Fatalf("course url = %q", cfg.CourseServiceURL)
	}
	if cfg.UpstreamTimeout != 3*time.Second || !cfg.SecureCookies {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("origins = %v", cfg.AllowedOrigins)
	}
}

func TestLoadDotEnvAndYAML(t *testing.T) {
	isolate(t)
	if err := os.WriteFile(".env", []byte("ENROLLMENT_SERVICE_URL=http://enroll.internal:9000\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("ENROLLMENT_SERVICE_URL") })
	yaml := "http_addr: \":9999\"\nbackend: memory\n"
	if err := os.WriteFile(filepath.Join(".", "portal.yaml"), []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.EnrollmentServiceURL != "http://enroll.internal:9000" {
		t.Fatalf("dotenv not applied: %q", cfg.EnrollmentServiceURL)
	}
	if cfg.HTTPAddr != ":9999" || cfg.Backend != BackendMemory {
		t.Fatalf("yaml not applied: %+v", cfg)
	}
}

func TestLoadRejectsRelativeURL(t *testing.T) {
	isolate(t)
	t.Setenv("STUDENT_SERVICE_URL", "localhost:8001")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for relative url")
	}
}
