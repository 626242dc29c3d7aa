//go:build unix && !(dragonfly || freebsd || illumos || linux || netbsd || openbsd || solaris)

package bind

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// newSocket creates a stream socket and marks it close-on-exec. Holding
// syscall.ForkLock keeps a concurrent fork from inheriting the descriptor
// in between.
func newSocket(domain int) (int, error) {
	syscall.ForkLock.RLock()
	defer syscall.ForkLock.RUnlock()
	fd, err := unix.Socket(domain, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return -1, err
	}
	unix.CloseOnExec(fd)
	return fd, nil
}
