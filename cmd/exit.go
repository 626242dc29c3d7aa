package main

import (
	"errors"

	"github.com/nmezhenskyi/listend/internal/bind"
)

const (
	exitOK           = 0
	exitUsage        = 1
	exitInvalid      = 2 // Bad port, bad config.
	exitResolution   = 3
	exitAddressInUse = 4
	exitPermission   = 5
	exitListen       = 6
	exitFailure      = 7 // Any other bind or serve failure.
)

func exitCode(err error) int {
	var confErr *configError
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage):
		return exitUsage
	case errors.As(err, &confErr), errors.Is(err, bind.InvalidArgument):
		return exitInvalid
	case errors.Is(err, bind.ResolutionFailed):
		return exitResolution
	case errors.Is(err, bind.AddressInUse):
		return exitAddressInUse
	case errors.Is(err, bind.PermissionDenied):
		return exitPermission
	case errors.Is(err, bind.ListenFailed):
		return exitListen
	default:
		return exitFailure
	}
}

// describe prefixes bind failures with their most specific kind so the
// message names the cause first, e.g.
// "address in use: no bindable address :80: address in use (bind) ...".
func describe(err error) string {
	if kind := bind.KindOf(err); kind != 0 {
		return kind.String() + ": " + err.Error()
	}
	return err.Error()
}
