//go:build windows

package bind

import (
	"errors"
	"syscall"
)

// Winsock error codes, see WinError.h.
const (
	wsaeacces        = syscall.Errno(10013)
	wsaeaddrinuse    = syscall.Errno(10048)
	wsaeaddrnotavail = syscall.Errno(10049)
)

func classifyBind(err error) Kind {
	switch {
	case errors.Is(err, wsaeaddrinuse):
		return AddressInUse
	case errors.Is(err, wsaeacces):
		return PermissionDenied
	case errors.Is(err, wsaeaddrnotavail):
		return AddressUnavailable
	default:
		return BindFailed
	}
}
