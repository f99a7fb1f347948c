package httpapi

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"sanastro.app/internal/obs"
)

// HealthReporter publishes readiness over the standard gRPC health protocol.
type HealthReporter struct {
	server    *health.Server
	readiness readinessChecker
	interval  time.Duration
}

// NewHealthReporter starts in NOT_SERVING until the first Refresh.
func NewHealthReporter(r readinessChecker, interval time.Duration) *HealthReporter {
	if r == nil {
		r = ReadyProbe{}
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	srv := health.NewServer()
	srv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	srv.SetServingStatus(serviceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &HealthReporter{server: srv, readiness: r, interval: interval}
}

// Refresh runs one readiness check and records the result.
func (h *HealthReporter) Refresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := h.readiness.Check(ctx); err != nil {
		obs.Logger().Warn("grpc: readiness check failed", "error", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	obs.SetReady(status == healthpb.HealthCheckResponse_SERVING)
	h.server.SetServingStatus("", status)
	h.server.SetServingStatus(serviceName, status)
}

// Run refreshes on every interval until ctx is done, then marks the
// service as shutting down.
func (h *HealthReporter) Run(ctx context.Context) {
	h.Refresh(ctx)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.server.Shutdown()
			return
		case <-ticker.C:
			h.Refresh(ctx)
		}
	}
}

// NewGRPCServer builds a server exposing the health service.
func NewGRPCServer(h *HealthReporter, opts ...grpc.ServerOption) *grpc.Server {
	s := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(s, h.server)
	return s
}
