//go:build rmgrpc

package grpcsrv

import (
	"context"

	"github.com/nmezhenskyi/listend/internal/bind"
	"github.com/nmezhenskyi/listend/internal/registry"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
)

type Server struct {
	Logger zerolog.Logger
}

func NewServer(_ *registry.Registry, _ ...grpc.ServerOption) *Server {
	return &Server{}
}

// Serve closes ls right away, the health server is compiled out.
func (s *Server) Serve(ls *bind.ListeningSocket) error {
	return ls.Close()
}

func (s *Server) Refresh() {}

func (s *Server) Shutdown(ctx context.Context) error {
	return nil
}

func (s *Server) Close() {}
