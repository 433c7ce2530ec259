package server

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// GRPCHealthService is the service name reported alongside the overall status.
const GRPCHealthService = "order_analyzer.Analyzer"

// GRPCHealth mirrors a HealthFunc onto the standard gRPC health service.
type GRPCHealth struct {
	hs       *health.Server
	check    HealthFunc
	interval time.Duration
	logger   *slog.Logger
}

// NewGRPCServer returns a gRPC server exposing only health and reflection.
func NewGRPCServer(check HealthFunc, logger *slog.Logger) (*grpc.Server, *GRPCHealth) {
	if logger == nil {
		logger = slog.Default()
	}
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)

	h := &GRPCHealth{hs: hs, check: check, interval: 5 * time.Second, logger: logger}
	h.refresh()
	return gs, h
}

// Run refreshes the serving status until ctx ends, then marks everything
// NOT_SERVING.
func (h *GRPCHealth) Run(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			h.hs.Shutdown()
			return
		case <-t.C:
			h.refresh()
		}
	}
}

func (h *GRPCHealth) refresh() {
	status := healthpb.HealthCheckResponse_SERVING
	if h.check != nil {
		if err := h.check(); err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			h.logger.Warn("grpc.health.not_serving", "error", err)
		}
	}
	h.hs.SetServingStatus("", status)
	h.hs.SetServingStatus(GRPCHealthService, status)
}
