// Package health exposes the standard gRPC health service, driven by the
// history store's availability.
package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the service reported alongside the overall ("") status.
const ServiceName = "newsdesk.Summary"

const (
	defaultCheckInterval = 15 * time.Second
	pingTimeout          = 5 * time.Second
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server serves grpc.health.v1 and keeps its status in sync with a Pinger.
type Server struct {
	grpc     *grpc.Server
	health   *grpchealth.Server
	pinger   Pinger
	interval time.Duration
}

// NewServer creates a health server. Status starts as NOT_SERVING until the
// first successful check.
func NewServer(pinger Pinger) *Server {
	hs := grpchealth.NewServer()
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	s := &Server{
		grpc:     gs,
		health:   hs,
		pinger:   pinger,
		interval: defaultCheckInterval,
	}
	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

func (s *Server) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Check pings the dependency once and updates the served status.
func (s *Server) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := s.pinger.Ping(ctx); err != nil {
		s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
		return fmt.Errorf("health ping: %w", err)
	}
	s.setStatus(healthpb.HealthCheckResponse_SERVING)
	return nil
}

// Watch runs Check periodically until ctx is cancelled.
func (s *Server) Watch(ctx context.Context) {
	if err := s.Check(ctx); err != nil {
		slog.Warn("Health check failed", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Check(ctx); err != nil {
				slog.Warn("Health check failed", "error", err)
			}
		}
	}
}

// Serve accepts gRPC connections on lis. It returns nil after Shutdown.
func (s *Server) Serve(lis net.Listener) error {
	slog.Info("gRPC health server listening", "addr", lis.Addr().String())
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve grpc health: %w", err)
	}
	return nil
}

// Shutdown marks every service NOT_SERVING and stops the server gracefully.
func (s *Server) Shutdown() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
