package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"studentportal.org/internal/aggregate"
	"studentportal.org/internal/auth"
	"studentportal.org/internal/mutate"
	"studentportal.org/internal/obs"
	"studentportal.org/internal/portal"
	"studentportal.org/internal/session"
)

const serviceName = "portal-api"

// Prober reports whether one upstream service is reachable.
type Prober interface {
	Service() string
	Ping(ctx context.Context) error
}

// ReadyProbe pings every upstream service.
type ReadyProbe struct {
	Probes  []Prober
	Timeout time.Duration
}

// Check returns the first failure; all probes run concurrently.
func (rp ReadyProbe) Check(ctx context.Context) error {
	if len(rp.Probes) == 0 {
		return nil
	}
	timeout := rp.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range rp.Probes {
		p := p
		g.Go(func() error { return p.Ping(gctx) })
	}
	return g.Wait()
}

// Options configure the API.
type Options struct {
	Services        portal.Services
	Sessions        *session.Registry
	Ready           ReadyProbe
	Version         string
	AllowedOrigins  []string
	CookieName      string
	SecureCookies   bool
	LoginRateBurst  int
	LoginRatePerSec float64
}

// API is the BFF HTTP layer.
type API struct {
	mux           *http.ServeMux
	sessions      *session.Registry
	queries       *aggregate.Queries
	ops           *mutate.Ops
	readyProbe    ReadyProbe
	version       string
	origins       []string
	cookieName    string
	secureCookies bool
	rateBurst     int
	ratePerSec    float64
}

func New(opts Options) *API {
	queries := aggregate.New(opts.Services)
	a := &API{
		mux:           http.NewServeMux(),
		sessions:      opts.Sessions,
		queries:       queries,
		ops:           mutate.New(opts.Services, queries),
		readyProbe:    opts.Ready,
		version:       opts.Version,
		origins:       opts.AllowedOrigins,
		cookieName:    opts.CookieName,
		secureCookies: opts.SecureCookies,
		rateBurst:     opts.LoginRateBurst,
		ratePerSec:    opts.LoginRatePerSec,
	}
	if a.sessions == nil {
		a.sessions = session.NewRegistry(opts.Services.Identity, nil)
	}
	if a.cookieName == "" {
		a.cookieName = "portal_session"
	}
	if a.rateBurst <= 0 {
		a.rateBurst = 5
	}
	if a.ratePerSec <= 0 {
		a.ratePerSec = 1
	}
	a.routes()
	return a
}

func (a *API) routes() {
	// health/ready/info
	a.mux.HandleFunc("GET /healthz", a.Healthz)
	a.mux.HandleFunc("GET /readyz", a.Ready)
	a.mux.HandleFunc("GET /v1/info", a.Info)
	a.mux.Handle("GET /metrics", obs.Handler())

	limited := func(h http.HandlerFunc) http.Handler { return RateLimit(h, a.rateBurst, a.ratePerSec) }
	a.mux.Handle("POST /v1/session/login", limited(a.handleLogin))
	a.mux.Handle("POST /v1/session/register", limited(a.handleRegister))
	a.mux.HandleFunc("POST /v1/session/logout", a.handleLogout)
	a.mux.Handle("GET /v1/session", RequireRole("")(http.HandlerFunc(a.handleCurrentSession)))

	student := RequireRole(auth.RoleStudent)
	a.mux.Handle("GET /v1/student/dashboard", student(http.HandlerFunc(a.handleStudentDashboard)))
	a.mux.Handle("GET /v1/student/courses", student(http.HandlerFunc(a.handleBrowseCourses)))
	a.mux.Handle("GET /v1/student/enrollments", student(http.HandlerFunc(a.handleMyCourses)))
	a.mux.Handle("POST /v1/student/enrollments", student(http.HandlerFunc(a.handleEnroll)))
	a.mux.Handle("POST /v1/student/enrollments/drop", student(http.HandlerFunc(a.handleDrop)))

	admin := RequireRole(auth.RoleAdmin)
	a.mux.Handle("GET /v1/admin/dashboard", admin(http.HandlerFunc(a.handleAdminDashboard)))
	a.mux.Handle("GET /v1/admin/students", admin(http.HandlerFunc(a.handleManageStudents)))
	a.mux.Handle("GET /v1/admin/students/{id}", admin(http.HandlerFunc(a.handleStudentDetail)))
	a.mux.Handle("GET /v1/admin/courses", admin(http.HandlerFunc(a.handleManageCourses)))
	a.mux.Handle("POST /v1/admin/courses", admin(http.HandlerFunc(a.handleCreateCourse)))
	a.mux.Handle("PUT /v1/admin/courses/{id}", admin(http.HandlerFunc(a.handleUpdateCourse)))
	a.mux.Handle("DELETE /v1/admin/courses/{id}", admin(http.HandlerFunc(a.handleDeleteCourse)))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not found")
	})
}

// Handler returns the fully wrapped handler.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withSession(h)
	h = MaxBodyBytes(h, 1<<20)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	h = CORS(h, a.origins)
	return obs.Instrument(h)
}

// Sessions exposes the session registry.
func (a *API) Sessions() *session.Registry { return a.sessions }

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

func (a *API) logError(r *http.Request, err error) {
	obs.Error("request_failed", map[string]any{
		"request_id": RequestIDFromContext(r.Context()),
		"path":       r.URL.Path,
		"error":      err.Error(),
	})
}

// currentSession is only called behind RequireRole.
func currentSession(r *http.Request) auth.Session {
	s, _ := auth.SessionFromContext(r.Context())
	return s
}

// writeMutation answers a fire-and-refetch mutation: the reloaded view on success, the
// error plus the reloaded view when the target had vanished.
func (a *API) writeMutation(w http.ResponseWriter, r *http.Request, view any, err error, fallback string) {
	if err == nil {
		writeJSON(w, http.StatusOK, view)
		return
	}
	if errors.Is(err, portal.ErrNotFound) {
		a.writeErrorWith(w, r, err, fallback, view)
		return
	}
	a.handleError(w, r, err, fallback)
}
