package httpapi

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"studentportal.org/internal/obs"
)

// HealthServer publishes upstream reachability over grpc.health.v1. Each prober is a
// named service; the empty service name is the overall status.
type HealthServer struct {
	health *health.Server
	probes []Prober
}

// NewHealthServer starts with every service NOT_SERVING until the first probe.
func NewHealthServer(probes ...Prober) *HealthServer {
	hs := &HealthServer{health: health.NewServer(), probes: probes}
	hs.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	for _, p := range probes {
		hs.health.SetServingStatus(p.Service(), healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return hs
}

// Register attaches the health service to srv.
func (hs *HealthServer) Register(srv *grpc.Server) {
	healthpb.RegisterHealthServer(srv, hs.health)
}

// ProbeOnce pings every upstream and updates the statuses and the readiness gauge.
func (hs *HealthServer) ProbeOnce(ctx context.Context, timeout time.Duration) bool {
	all := true
	for _, p := range hs.probes {
		pctx, cancel := context.WithTimeout(ctx, timeout)
		err := p.Ping(pctx)
		cancel()
		status := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			all = false
			obs.Warn("upstream_unhealthy", map[string]any{"service": p.Service(), "error": err.Error()})
		}
		hs.health.SetServingStatus(p.Service(), status)
	}
	overall := healthpb.HealthCheckResponse_SERVING
	if !all {
		overall = healthpb.HealthCheckResponse_NOT_SERVING
	}
	hs.health.SetServingStatus("", overall)
	obs.SetReady(all)
	return all
}

// Run probes every interval until ctx ends, then marks everything NOT_SERVING.
func (hs *HealthServer) Run(ctx context.Context, interval time.Duration) {
	hs.ProbeOnce(ctx, interval/2)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.health.Shutdown()
			return
		case <-ticker.C:
			hs.ProbeOnce(ctx, interval/2)
		}
	}
}
