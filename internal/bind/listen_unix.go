//go:build unix

package bind

import (
	"errors"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// socketFD owns a raw descriptor until release hands it over.
type socketFD struct {
	fd int
}

func (s *socketFD) release() int {
	fd := s.fd
	s.fd = -1
	return fd
}

func (s *socketFD) close() {
	if s.fd >= 0 {
		unix.Close(s.fd)
		s.fd = -1
	}
}

// listenCandidate walks one candidate through socket, setsockopt, bind and
// listen. The descriptor is closed on every failure path.
func listenCandidate(c candidate, backlog int) (*ListeningSocket, *BindFailure) {
	addr := c.String()

	domain := unix.AF_INET
	if c.family == FamilyIPv6 {
		domain = unix.AF_INET6
	}
	fd, err := newSocket(domain)
	if err != nil {
		return nil, failure(SocketFailed, opSocket, addr, os.NewSyscallError("socket", err))
	}
	sock := &socketFD{fd: fd}
	defer sock.close()

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return nil, failure(SocketFailed, opSetsockopt, addr, os.NewSyscallError("setsockopt", err))
	}
	if domain == unix.AF_INET6 {
		v6only := 1
		if c.dualStack {
			v6only = 0
		}
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, v6only); err != nil {
			return nil, failure(SocketFailed, opSetsockopt, addr, os.NewSyscallError("setsockopt", err))
		}
	}

	sa, err := sockaddr(c)
	if err != nil {
		return nil, failure(AddressUnavailable, opBind, addr, err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		return nil, failure(classifyBind(err), opBind, addr, os.NewSyscallError("bind", err))
	}

	if err := unix.Listen(fd, backlog); err != nil {
		kind := ListenFailed
		if errors.Is(err, unix.EADDRINUSE) {
			kind = AddressInUse
		}
		return nil, failure(kind, opListen, addr, os.NewSyscallError("listen", err))
	}

	// net.FileListener duplicates the descriptor, the original is closed
	// together with f.
	f := os.NewFile(uintptr(sock.release()), "tcp:"+addr)
	ln, err := net.FileListener(f)
	f.Close()
	if err != nil {
		return nil, failure(ListenFailed, opListen, addr, err)
	}
	tln, ok := ln.(*net.TCPListener)
	if !ok {
		ln.Close()
		return nil, failure(ListenFailed, opListen, addr, errors.New("not a TCP listener"))
	}
	return newListeningSocket(tln, c.family, backlog), nil
}

func sockaddr(c candidate) (unix.Sockaddr, error) {
	if c.family == FamilyIPv4 {
		return &unix.SockaddrInet4{Port: c.port, Addr: c.ip.As4()}, nil
	}
	zone, err := zoneIndex(c.ip.Zone())
	if err != nil {
		return nil, err
	}
	return &unix.SockaddrInet6{Port: c.port, ZoneId: uint32(zone), Addr: c.ip.As16()}, nil
}

func classifyBind(err error) Kind {
	switch {
	case errors.Is(err, unix.EADDRINUSE):
		return AddressInUse
	case errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM):
		return PermissionDenied
	case errors.Is(err, unix.EADDRNOTAVAIL):
		return AddressUnavailable
	default:
		return BindFailed
	}
}
