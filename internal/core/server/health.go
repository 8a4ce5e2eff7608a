package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/openbenefits/medscreen/internal/core/config"
)

// HealthServer exposes the standard gRPC health protocol on a side port.
// Orchestrators probe it without touching the HTTP request path.
type HealthServer struct {
	server *grpc.Server
	health *health.Server
	config *config.ScreenerConfig
}

// NewHealthServer creates the health server in SERVING state.
func NewHealthServer(cfg *config.ScreenerConfig) (*HealthServer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}

	server := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	return &HealthServer{
		server: server,
		health: healthServer,
		config: cfg,
	}, nil
}

// Start binds the health port and serves probes. Blocks until Shutdown.
func (s *HealthServer) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.HealthPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}
	return s.server.Serve(listener)
}

// Shutdown flips status to NOT_SERVING then gracefully stops with a
// 30-second timeout.
func (s *HealthServer) Shutdown(ctx context.Context) error {
	s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		s.server.Stop()
		return fmt.Errorf("shutdown cancelled by context: %w", ctx.Err())
	case <-time.After(30 * time.Second):
		s.server.Stop()
		return fmt.Errorf("graceful shutdown timeout, forced stop")
	}
}
