//go:build rmhttp

package httpsrv

import (
	"context"

	"github.com/nmezhenskyi/listend/internal/bind"
	"github.com/nmezhenskyi/listend/internal/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

type Server struct {
	Logger zerolog.Logger
}

func NewServer(_ *registry.Registry, _ prometheus.Gatherer) *Server {
	return &Server{}
}

// Serve closes ls right away, the status server is compiled out.
func (s *Server) Serve(ls *bind.ListeningSocket) error {
	return ls.Close()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return nil
}

func (s *Server) Close() error {
	return nil
}
