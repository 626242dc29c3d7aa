// Package acceptor runs the accept loop for a listening socket created by
// package bind and hands every connection to a Handler.
package acceptor

import (
	"context"
	"errors"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nmezhenskyi/listend/internal/bind"
	"github.com/rs/zerolog"
)

// ErrServerClosed is returned by Serve after Close or Shutdown.
var ErrServerClosed = errors.New("acceptor: server closed")

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// Server accepts connections from a single ListeningSocket.
type Server struct {
	handler Handler

	inShutdown atomic.Bool
	wg         sync.WaitGroup

	mu          sync.Mutex
	listener    *bind.ListeningSocket
	activeConns map[net.Conn]struct{}

	Logger zerolog.Logger // By defaut Logger is disabled, but can be manually attached.
}

// --- Public API: --- //

// NewServer returns a Server passing connections to h. A nil h drains
// connections with Discard.
func NewServer(h Handler) *Server {
	if h == nil {
		h = Discard
	}
	return &Server{
		handler:     h,
		activeConns: make(map[net.Conn]struct{}),
		Logger:      zerolog.New(os.Stderr).Level(zerolog.Disabled),
	}
}

// Serve takes ownership of ls and accepts connections until the server is
// closed. It always returns a non-nil error, ErrServerClosed after Close or
// Shutdown. ls is closed when Serve returns.
func (s *Server) Serve(ls *bind.ListeningSocket) error {
	defer ls.Close()

	s.mu.Lock()
	if s.shuttingDown() {
		s.mu.Unlock()
		return ErrServerClosed
	}
	if s.listener != nil {
		s.mu.Unlock()
		return errors.New("acceptor: Serve called twice")
	}
	s.listener = ls
	s.mu.Unlock()

	s.Logger.Info().Str("address", ls.Addr().String()).Msg("accepting connections")

	var delay time.Duration
	for {
		conn, err := ls.Accept()
		if err != nil {
			if s.shuttingDown() {
				return ErrServerClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() || isTemporary(err) {
				if delay == 0 {
					delay = minAcceptDelay
				} else {
					delay *= 2
				}
				if delay > maxAcceptDelay {
					delay = maxAcceptDelay
				}
				s.Logger.Warn().Err(err).Dur("retryIn", delay).Msg("accept error")
				time.Sleep(delay)
				continue
			}
			s.Logger.Error().Err(err).Msg("failed to accept connection")
			return err
		}
		delay = 0

		if !s.trackConn(conn, true) {
			conn.Close()
			return ErrServerClosed
		}
		go s.handleConnection(conn)
	}
}

// Shutdown closes the listening socket and waits for active connections to
// finish. If ctx expires first, the remaining connections are closed and
// ctx's error is returned.
func (s *Server) Shutdown(ctx context.Context) error {
	lisErr := s.closeListener()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.Logger.Info().Msg("acceptor has been shutdown")
		return lisErr
	case <-ctx.Done():
		s.closeConns()
		s.Logger.Warn().Err(ctx.Err()).Msg("acceptor shutdown timed out, connections closed")
		return ctx.Err()
	}
}

// Close immediately closes the listening socket and all active connections.
func (s *Server) Close() error {
	err := s.closeListener()
	s.closeConns()
	return err
}

// ActiveConns returns the number of connections being handled.
func (s *Server) ActiveConns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}

// --- Private: --- //

func (s *Server) handleConnection(conn net.Conn) {
	defer func() {
		s.trackConn(conn, false)
		s.wg.Done()
	}()
	s.handler.ServeConn(conn)
}

// trackConn adds or removes conn from the active set. Adding fails once
// shutdown has started, so Shutdown never waits on a connection it missed.
func (s *Server) trackConn(conn net.Conn, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		if s.shuttingDown() {
			return false
		}
		s.activeConns[conn] = struct{}{}
		s.wg.Add(1)
	} else {
		delete(s.activeConns, conn)
	}
	return true
}

func (s *Server) closeListener() error {
	s.mu.Lock()
	s.inShutdown.Store(true)
	ls := s.listener
	s.mu.Unlock()
	if ls == nil {
		return nil
	}
	err := ls.Close()
	if err != nil {
		s.Logger.Error().Err(err).Msg("listening socket errored while closing")
	}
	return err
}

func (s *Server) closeConns() {
	s.mu.Lock()
	for c := range s.activeConns {
		c.Close()
	}
	s.mu.Unlock()
}

func (s *Server) shuttingDown() bool {
	return s.inShutdown.Load()
}

func isTemporary(err error) bool {
	var te interface{ Temporary() bool }
	return errors.As(err, &te) && te.Temporary()
}
