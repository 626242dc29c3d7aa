//go:build dragonfly || freebsd || illumos || linux || netbsd || openbsd || solaris

package bind

import "golang.org/x/sys/unix"

// newSocket creates a stream socket marked close-on-exec atomically.
func newSocket(domain int) (int, error) {
	return unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
}
