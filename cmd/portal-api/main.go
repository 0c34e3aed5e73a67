package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"studentportal.org/internal/config"
	"studentportal.org/internal/httpapi"
	"studentportal.org/internal/migrate"
	"studentportal.org/internal/obs"
	"studentportal.org/internal/portal"
	"studentportal.org/internal/portal/remote"
	"studentportal.org/internal/session"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// Tokens older than the session cookie are useless.
const tokenRetention = 7 * 24 * time.Hour

func main() {
	// Метрики и JSON-логгер
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, probes, closeBackend, err := openBackend(cfg)
	if err != nil {
		log.Fatalf("backend: %v", err)
	}
	defer closeBackend()

	tokens, closeTokens, err := openTokens(ctx, cfg)
	if err != nil {
		log.Fatalf("token store: %v", err)
	}
	defer closeTokens()

	api := httpapi.New(httpapi.Options{
		Services:        services,
		Sessions:        session.NewRegistry(services.Identity, tokens),
		Ready:           httpapi.ReadyProbe{Probes: probes, Timeout: 2 * time.Second},
		Version:         version,
		AllowedOrigins:  cfg.AllowedOrigins,
		CookieName:      cfg.SessionCookie,
		SecureCookies:   cfg.SecureCookies,
		LoginRateBurst:  cfg.LoginRateBurst,
		LoginRatePerSec: cfg.LoginRatePerSec,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      cfg.UpstreamTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	grpcSrv := grpc.NewServer()
	health := httpapi.NewHealthServer(probes...)
	health.Register(grpcSrv)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		obs.Info("http_listen", map[string]any{"addr": srv.Addr, "version": version, "backend": cfg.Backend})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return err
		}
		obs.Info("grpc_listen", map[string]any{"addr": cfg.GRPCAddr})
		return grpcSrv.Serve(lis)
	})
	g.Go(func() error {
		health.Run(gctx, 10*time.Second)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		obs.Info("shutdown", nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		grpcSrv.GracefulStop()
		return srv.Shutdown(shutdownCtx)
	})
	if pruner, ok := tokens.(interface {
		Prune(context.Context, time.Time) (int64, error)
	}); ok {
		g.Go(func() error {
			prune(gctx, pruner.Prune)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Fatalf("portal-api: %v", err)
	}
	obs.Info("stopped", nil)
}

// openBackend dials the three services, or builds the in-process stand-in.
func openBackend(cfg config.Config) (portal.Services, []httpapi.Prober, func(), error) {
	if cfg.Backend == config.BackendMemory {
		mem := portal.NewInMemory()
		if err := seedAdmin(mem, os.Getenv("PORTAL_MEMORY_ADMIN")); err != nil {
			return portal.Services{}, nil, nil, err
		}
		obs.Warn("memory_backend", map[string]any{"note": "data is lost on restart"})
		return mem.Services(), nil, func() {}, nil
	}
	clients, err := remote.DialAll(remote.Endpoints{
		Student:    cfg.StudentServiceURL,
		Course:     cfg.CourseServiceURL,
		Enrollment: cfg.EnrollmentServiceURL,
	}, remote.WithTimeout(cfg.UpstreamTimeout))
	if err != nil {
		return portal.Services{}, nil, nil, err
	}
	var probes []httpapi.Prober
	for _, c := range clients.All() {
		probes = append(probes, c)
	}
	closeAll := func() {
		for _, c := range clients.All() {
			_ = c.Close()
		}
	}
	return clients.Services(), probes, closeAll, nil
}

// seedAdmin reads "email:password".
func seedAdmin(mem *portal.Memory, creds string) error {
	if creds == "" {
		return nil
	}
	email, password, ok := strings.Cut(creds, ":")
	if !ok || email == "" || password == "" {
		return errors.New("PORTAL_MEMORY_ADMIN must be email:password")
	}
	_, err := mem.SeedAdmin("Administrator", email, password)
	return err
}

// openTokens uses PostgreSQL when a DSN is configured and keeps tokens in memory otherwise.
func openTokens(ctx context.Context, cfg config.Config) (session.TokenStore, func(), error) {
	if cfg.TokenDSN == "" {
		return session.NewMemoryTokens(), func() {}, nil
	}
	pg, err := session.OpenPostgres(cfg.TokenDSN)
	if err != nil {
		return nil, nil, err
	}
	mctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := migrate.NewManager(pg.DB(), migrate.Embedded()).Up(mctx); err != nil {
		_ = pg.Close()
		return nil, nil, err
	}
	return pg, func() { _ = pg.Close() }, nil
}

func prune(ctx context.Context, fn func(context.Context, time.Time) (int64, error)) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := fn(ctx, time.Now().Add(-tokenRetention))
			if err != nil {
				obs.Warn("token_prune_failed", map[string]any{"error": err.Error()})
				continue
			}
			if n > 0 {
				obs.Info("token_prune", map[string]any{"removed": n})
			}
		}
	}
}
