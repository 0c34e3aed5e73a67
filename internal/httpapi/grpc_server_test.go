package httpapi

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

const bufSize = 1024 * 1024

type stubProber struct {
	name string
	err  error
}

func (p *stubProber) Service() string                { return p.name }
func (p *stubProber) Ping(ctx context.Context) error { return p.err }

func startBufGRPC(t *testing.T, hs *HealthServer) healthpb.HealthClient {
	t.Helper()

	listener := bufconn.Listen(bufSize)
	server := grpc.NewServer()
	hs.Register(server)

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			t.Logf("grpc serve error: %v", err)
		}
	}()

	dialer := func(ctx context.Context, _ string) (net.Conn, error) {
		return listener.Dial()
	}
	conn, err := grpc.NewClient(
		"passthrough:///bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial bufnet: %v", err)
	}
	t.Cleanup(func() {
		server.GracefulStop()
		_ = conn.Close()
	})
	return healthpb.NewHealthClient(conn)
}

func checkStatus(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("check %q: %v", service, err)
	}
	return resp.GetStatus()
}

func TestHealthServerReportsUpstreams(t *testing.T) {
	course := &stubProber{name: "course", err: errors.New("connection refused")}
	hs := NewHealthServer(&stubProber{name: "identity"}, course, &stubProber{name: "enrollment"})
	client := startBufGRPC(t, hs)

	if got := checkStatus(t, client, ""); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("initial overall = %v", got)
	}

	if hs.ProbeOnce(context.Background(), time.Second) {
		t.Fatal("probe reported healthy with course down")
	}
	if got := checkStatus(t, client, "identity"); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("identity = %v", got)
	}
	if got := checkStatus(t, client, "course"); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("course = %v", got)
	}
	if got := checkStatus(t, client, ""); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("overall = %v", got)
	}

	course.err = nil
	if !hs.ProbeOnce(context.Background(), time.Second) {
		t.Fatal("probe reported unhealthy with all up")
	}
	if got := checkStatus(t, client, ""); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("overall after recovery = %v", got)
	}
}
