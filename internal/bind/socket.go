package bind

import (
	"net"
	"sync"
	"sync/atomic"
)

// ListeningSocket is an open, bound and listening TCP endpoint produced by
// BindAndListen. It implements net.Listener so it can be handed directly to
// http.Server.Serve or grpc.Server.Serve.
//
// A ListeningSocket is meant to be owned by a single accept loop.
type ListeningSocket struct {
	ln      *net.TCPListener
	addr    *net.TCPAddr
	family  Family
	backlog int

	closed   atomic.Bool
	once     sync.Once
	closeErr error
	onClose  func()
}

func newListeningSocket(ln *net.TCPListener, family Family, backlog int) *ListeningSocket {
	addr, _ := ln.Addr().(*net.TCPAddr)
	return &ListeningSocket{
		ln:      ln,
		addr:    addr,
		family:  family,
		backlog: backlog,
	}
}

// Accept waits for and returns the next connection.
func (s *ListeningSocket) Accept() (net.Conn, error) {
	return s.ln.Accept()
}

// AcceptTCP is like Accept but returns a *net.TCPConn.
func (s *ListeningSocket) AcceptTCP() (*net.TCPConn, error) {
	return s.ln.AcceptTCP()
}

// Addr returns the bound address. For port 0 requests it carries the
// port picked by the system.
func (s *ListeningSocket) Addr() net.Addr {
	if s.addr == nil {
		return s.ln.Addr()
	}
	return s.addr
}

// Port returns the bound port.
func (s *ListeningSocket) Port() int {
	if s.addr == nil {
		return 0
	}
	return s.addr.Port
}

// Family returns the address family of the bound socket. A dual-stack
// wildcard socket reports FamilyIPv6.
func (s *ListeningSocket) Family() Family { return s.family }

// Backlog returns the backlog passed to listen, after clamping.
func (s *ListeningSocket) Backlog() int { return s.backlog }

// Closed reports whether Close has been called.
func (s *ListeningSocket) Closed() bool { return s.closed.Load() }

// Close releases the underlying descriptor. Only the first call closes it,
// later calls return nil.
func (s *ListeningSocket) Close() error {
	first := false
	s.once.Do(func() {
		first = true
		s.closed.Store(true)
		s.closeErr = s.ln.Close()
		if s.onClose != nil {
			s.onClose()
		}
	})
	if !first {
		return nil
	}
	return s.closeErr
}
