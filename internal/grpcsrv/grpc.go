//go:build !rmgrpc

// Package grpcsrv implements a gRPC server exposing the standard
// grpc.health.v1 service for the process's listening sockets.
//
// The overall health (empty service name) is SERVING while the server runs.
// Every registered listener is reported under its registry name: SERVING
// while its socket is open, NOT_SERVING once it has been closed.
package grpcsrv

import (
	"context"
	"os"
	"sync"

	"github.com/nmezhenskyi/listend/internal/bind"
	"github.com/nmezhenskyi/listend/internal/registry"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Server wraps a grpc.Server serving health checks.
type Server struct {
	server   *grpc.Server
	health   *health.Server
	registry *registry.Registry

	mu    sync.Mutex
	names map[string]struct{}

	Logger zerolog.Logger // By defaut Logger is disabled, but can be manually attached.
}

// NewServer initializes a new grpc Server instance ready to be used and returns a pointer to it.
func NewServer(reg *registry.Registry, opts ...grpc.ServerOption) *Server {
	if reg == nil {
		reg = registry.New()
	}
	s := &Server{
		server:   grpc.NewServer(opts...),
		health:   health.NewServer(),
		registry: reg,
		names:    make(map[string]struct{}),
		Logger:   zerolog.New(os.Stderr).Level(zerolog.Disabled),
	}
	healthpb.RegisterHealthServer(s.server, s.health)
	return s
}

// Serve handles gRPC requests on connections accepted from ls. ls is
// closed when Serve returns.
func (s *Server) Serve(ls *bind.ListeningSocket) error {
	s.Logger.Info().Msg("Starting grpc health server on " + ls.Addr().String())
	s.Refresh()
	err := s.server.Serve(ls)
	if err == grpc.ErrServerStopped {
		return nil
	}
	if err != nil {
		s.Logger.Error().Err(err).Msg("grpc server failed")
	}
	return err
}

// Refresh updates the serving status of every registered listener.
// Listeners removed from the registry are reported as SERVICE_UNKNOWN.
func (s *Server) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	current := make(map[string]healthpb.HealthCheckResponse_ServingStatus)
	for _, e := range s.registry.List() {
		status := healthpb.HealthCheckResponse_SERVING
		if e.Socket.Closed() {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		// Any open socket under a shared name keeps the name serving.
		if prev, ok := current[e.Name]; ok && prev == healthpb.HealthCheckResponse_SERVING {
			continue
		}
		current[e.Name] = status
	}
	for name, status := range current {
		s.health.SetServingStatus(name, status)
		s.names[name] = struct{}{}
	}
	for name := range s.names {
		if _, ok := current[name]; !ok {
			s.health.SetServingStatus(name, healthpb.HealthCheckResponse_SERVICE_UNKNOWN)
			delete(s.names, name)
		}
	}
}

// Shutdown gracefully shuts down the server without interrupting any
// active RPCs. Accepts context with timeout that will forcefully close
// the server if timeout runs out.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.Shutdown()
	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		s.Logger.Info().Msg("grpc server has been shutdown")
		return nil
	case <-ctx.Done():
		s.server.Stop()
		s.Logger.Warn().Err(ctx.Err()).Msg("grpc server shutdown timed out, stopped")
		return ctx.Err()
	}
}

// Close immediately closes all active connections and listeners.
// For a graceful shutdown, use Shutdown.
func (s *Server) Close() {
	s.server.Stop()
	s.Logger.Info().Msg("grpc server has been closed")
}
