//go:build !rmhttp

// Package httpsrv implements the status HTTP server that reports the
// process's listening sockets and exposes Prometheus metrics.
package httpsrv

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/nmezhenskyi/listend/internal/bind"
	"github.com/nmezhenskyi/listend/internal/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server serves the status API.
type Server struct {
	server   *http.Server
	router   *httprouter.Router
	registry *registry.Registry
	gatherer prometheus.Gatherer

	Logger zerolog.Logger // By defaut Logger is disabled, but can be manually attached.
}

// NewServer initializes a new Server instance ready to be used and returns a pointer to it.
// A nil reg gets an empty registry, a nil g falls back to prometheus.DefaultGatherer.
func NewServer(reg *registry.Registry, g prometheus.Gatherer) *Server {
	if reg == nil {
		reg = registry.New()
	}
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	s := &Server{
		router: httprouter.New(),
		server: &http.Server{
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  30 * time.Second,
		},
		registry: reg,
		gatherer: g,
		Logger:   zerolog.New(os.Stderr).Level(zerolog.Disabled),
	}
	s.server.Handler = s.router
	s.setupRoutes()
	return s
}

// ServeHTTP makes the server implement the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Serve handles requests on connections accepted from ls. ls is closed
// when Serve returns.
//
// Unlike http.Server, it does not return ErrServerClosed after Shutdown or Close.
func (s *Server) Serve(ls *bind.ListeningSocket) error {
	s.Logger.Info().Msg("Starting http status server on " + ls.Addr().String())
	err := s.server.Serve(ls)
	if err != nil && err != http.ErrServerClosed {
		s.Logger.Error().Err(err).Msg("http server failed")
	}
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server without interrupting any
// active connections. Waits until all connections are closed or until context
// timeout runs out. Once Shutdown has been called on a server, it may not be reused.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.server.Shutdown(ctx)
	if err != nil {
		s.Logger.Error().Err(err).Msg("http server shutdown failed")
	} else {
		s.Logger.Info().Msg("http server has been shutdown")
	}
	return err
}

// Close immediately closes all active connections and the listening socket.
func (s *Server) Close() error {
	err := s.server.Close()
	if err != nil {
		s.Logger.Error().Err(err).Msg("http server has been closed & returned error")
	} else {
		s.Logger.Info().Msg("http server has been closed")
	}
	return err
}

func (s *Server) setupRoutes() {
	s.router.GET("/PING", s.handlePing())
	s.router.GET("/LISTENERS", s.handleListeners())
	s.router.GET("/LISTENERS/:id", s.handleListener())
	s.router.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
}

type listenerInfo struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Address string    `json:"address"`
	Port    int       `json:"port"`
	Family  string    `json:"family"`
	Backlog int       `json:"backlog"`
	Closed  bool      `json:"closed"`
	Created time.Time `json:"created"`
}

func toInfo(e registry.Entry) listenerInfo {
	return listenerInfo{
		ID:      e.ID,
		Name:    e.Name,
		Address: e.Socket.Addr().String(),
		Port:    e.Socket.Port(),
		Family:  e.Socket.Family().String(),
		Backlog: e.Socket.Backlog(),
		Closed:  e.Socket.Closed(),
		Created: e.Created,
	}
}

func (s *Server) handleListeners() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		s.Logger.Debug().Msg("received http GET \"/LISTENERS\" request from " + req.RemoteAddr)
		entries := s.registry.List()
		infos := make([]listenerInfo, 0, len(entries))
		for _, e := range entries {
			infos = append(infos, toInfo(e))
		}
		sendJSON(w, http.StatusOK, httpResponse{Command: "LISTENERS", Value: infos, Ok: true})
	}
}

func (s *Server) handleListener() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, p httprouter.Params) {
		s.Logger.Debug().Msg("received http GET \"/LISTENERS/:id\" request from " + req.RemoteAddr)
		id := p.ByName("id")
		entry, ok := s.registry.Get(id)
		if !ok {
			sendJSON(w, http.StatusNotFound, httpResponse{Command: "LISTENER", Message: "Unknown listener id", Ok: false})
			return
		}
		sendJSON(w, http.StatusOK, httpResponse{Command: "LISTENER", Value: toInfo(entry), Ok: true})
	}
}

func (s *Server) handlePing() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		s.Logger.Debug().Msg("received http GET \"/PING\" request from " + req.RemoteAddr)
		sendJSON(w, http.StatusOK, httpResponse{Command: "PING", Message: "PONG", Ok: true})
	}
}

type httpResponse struct {
	Command string `json:"command"`
	Message string `json:"message,omitempty"`
	Value   any    `json:"value,omitempty"`
	Ok      bool   `json:"ok"`
}

func sendJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(statusCode)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	} else {
		json.NewEncoder(w).Encode(struct{}{})
	}
}
