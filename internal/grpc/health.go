package grpc

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported alongside the overall ("") status.
const ServiceName = "storefront.api"

// Check reports whether one dependency is reachable.
type Check func(ctx context.Context) error

// HealthServer publishes dependency health over the standard gRPC health
// protocol. The status is SERVING only while every check passes.
type HealthServer struct {
	srv      *health.Server
	checks   map[string]Check
	interval time.Duration
	timeout  time.Duration
}

func NewHealthServer(checks map[string]Check, interval time.Duration) *HealthServer {
	srv := health.NewServer()
	srv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	srv.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &HealthServer{srv: srv, checks: checks, interval: interval, timeout: 2 * time.Second}
}

// NewServer returns an instrumented gRPC server with the health service and
// reflection registered.
func NewServer(h *HealthServer) *grpc.Server {
	s := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthpb.RegisterHealthServer(s, h.srv)
	reflection.Register(s)
	return s
}

func (h *HealthServer) Run(ctx context.Context) {
	h.probe(ctx)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.probe(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Shutdown marks everything NOT_SERVING and ignores later updates.
func (h *HealthServer) Shutdown() {
	h.srv.Shutdown()
}

func (h *HealthServer) probe(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	for name, check := range h.checks {
		cctx, cancel := context.WithTimeout(ctx, h.timeout)
		err := check(cctx)
		cancel()
		if err != nil {
			slog.WarnContext(ctx, "health check failed", "dependency", name, "error", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	h.srv.SetServingStatus("", status)
	h.srv.SetServingStatus(ServiceName, status)
}
