package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Backend selects where the three services live.
const (
	BackendRemote = "remote"
	BackendMemory = "memory"
)

// Config is the resolved portal configuration.
type Config struct {
	StudentServiceURL    string
	CourseServiceURL     string
	EnrollmentServiceURL string
	Backend              string

	HTTPAddr        string
	GRPCAddr        string
	UpstreamTimeout time.Duration

	TokenDSN string
	TokenDB  string

	AllowedOrigins  []string
	LoginRateBurst  int
	LoginRatePerSec float64
	SessionCookie   string
	SecureCookies   bool
}

var bindings = map[string]string{
	"student_service_url":    "STUDENT_SERVICE_URL",
	"course_service_url":     "COURSE_SERVICE_URL",
	"enrollment_service_url": "ENROLLMENT_SERVICE_URL",
	"backend":                "PORTAL_BACKEND",
	"http_addr":              "PORTAL_HTTP_ADDR",
	"grpc_addr":              "PORTAL_GRPC_ADDR",
	"upstream_timeout":       "PORTAL_UPSTREAM_TIMEOUT",
	"token_dsn":              "PORTAL_TOKEN_DSN",
	"token_db":               "PORTAL_TOKEN_DB",
	"allowed_origins":        "PORTAL_ALLOWED_ORIGINS",
	"login_rate_burst":       "PORTAL_LOGIN_RATE_BURST",
	"login_rate_per_sec":     "PORTAL_LOGIN_RATE_PER_SEC",
	"session_cookie":         "PORTAL_SESSION_COOKIE",
	"secure_cookies":         "PORTAL_SECURE_COOKIES",
}

func defaults(v *viper.Viper) {
	v.SetDefault("student_service_url", "http://localhost:8001")
	v.SetDefault("course_service_url", "http://localhost:8000")
	v.SetDefault("enrollment_service_url", "http://localhost:8002")
	v.SetDefault("backend", BackendRemote)
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("grpc_addr", ":9090")
	v.SetDefault("upstream_timeout", 10*time.Second)
	v.SetDefault("token_dsn", "")
	v.SetDefault("token_db", defaultTokenDB())
	v.SetDefault("allowed_origins", "http://localhost:5173")
	v.SetDefault("login_rate_burst", 5)
	v.SetDefault("login_rate_per_sec", 1.0)
	v.SetDefault("session_cookie", "portal_session")
	v.SetDefault("secure_cookies", false)
}

func defaultTokenDB() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".portal", "session.db")
	}
	return filepath.Join(home, ".portal", "session.db")
}

// Load reads defaults, an optional portal.yaml, an optional .env file and the environment,
// in increasing order of precedence. PORTAL_CONFIG and PORTAL_ENV_FILE override the file paths.
func Load() (Config, error) {
	envFile := os.Getenv("PORTAL_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: stat %s: %w", envFile, err)
	}

	v := viper.New()
	v.SetTypeByDefaultValue(true)
	defaults(v)
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	if path := os.Getenv("PORTAL_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigName("portal")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("config: read portal.yaml: %w", err)
			}
		}
	}

	cfg := Config{
		StudentServiceURL:    strings.TrimSpace(v.GetString("student_service_url")),
		CourseServiceURL:     strings.TrimSpace(v.GetString("course_service_url")),
		EnrollmentServiceURL: strings.TrimSpace(v.GetString("enrollment_service_url")),
		Backend:              strings.ToLower(strings.TrimSpace(v.GetString("backend"))),
		HTTPAddr:             v.GetString("http_addr"),
		GRPCAddr:             v.GetString("grpc_addr"),
		UpstreamTimeout:      v.GetDuration("upstream_timeout"),
		TokenDSN:             strings.TrimSpace(v.GetString("token_dsn")),
		TokenDB:              strings.TrimSpace(v.GetString("token_db")),
		AllowedOrigins:       splitList(v.GetString("allowed_origins")),
		LoginRateBurst:       v.GetInt("login_rate_burst"),
		LoginRatePerSec:      v.GetFloat64("login_rate_per_sec"),
		SessionCookie:        strings.TrimSpace(v.GetString("session_cookie")),
		SecureCookies:        v.GetBool("secure_cookies"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values Load cannot default away.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendRemote, BackendMemory:
	default:
		return fmt.Errorf("config: backend %q: want %q or %q", c.Backend, BackendRemote, BackendMemory)
	}
	for name, raw := range map[string]string{
		"student_service_url":    c.StudentServiceURL,
		"course_service_url":     c.CourseServiceURL,
		"enrollment_service_url": c.EnrollmentServiceURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("config: %s %q: must be an absolute http(s) url", name, raw)
		}
	}
	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("config: upstream_timeout must be positive")
	}
	if c.SessionCookie == "" {
		return fmt.Errorf("config: session_cookie must not be empty")
	}
	if c.LoginRateBurst <= 0 || c.LoginRatePerSec <= 0 {
		return fmt.Errorf("config: login rate limit must be positive")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
