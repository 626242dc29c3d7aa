package bind

import (
	"errors"
	"strings"
)

// Kind classifies why a bind attempt failed. Kind values are errors
// themselves, so callers can test a failure chain with errors.Is:
//
//	if errors.Is(err, bind.AddressInUse) { ... }
type Kind int

const (
	InvalidArgument    Kind = iota + 1 // Bad port, backlog, family or address/family mismatch.
	ResolutionFailed                   // Address resolved to no candidate.
	AddressInUse                       // Address/port already bound or listened on elsewhere.
	PermissionDenied                   // Insufficient privilege, e.g. ports below 1024.
	ListenFailed                       // Bound, but could not enter the listening state.
	NoBindableAddress                  // Every candidate failed, wraps the last failure.
	AddressUnavailable                 // Address is not assigned to a local interface.
	SocketFailed                       // socket() or setsockopt() failed for a candidate.
	BindFailed                         // Any other bind error.
)

var kindNames = map[Kind]string{
	InvalidArgument:    "invalid argument",
	ResolutionFailed:   "resolution failed",
	AddressInUse:       "address in use",
	PermissionDenied:   "permission denied",
	ListenFailed:       "listen failed",
	NoBindableAddress:  "no bindable address",
	AddressUnavailable: "address unavailable",
	SocketFailed:       "socket failed",
	BindFailed:         "bind failed",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

func (k Kind) Error() string { return k.String() }

// BindFailure is the error returned by BindAndListen.
type BindFailure struct {
	Kind    Kind
	Op      string // resolve, socket, setsockopt, bind, listen.
	Address string // Candidate or requested address in host:port form.
	Err     error
}

func (f *BindFailure) Error() string {
	var b strings.Builder
	b.WriteString(f.Kind.String())
	if f.Op != "" {
		b.WriteString(" (")
		b.WriteString(f.Op)
		b.WriteString(")")
	}
	if f.Address != "" {
		b.WriteString(" ")
		b.WriteString(f.Address)
	}
	if f.Err != nil {
		b.WriteString(": ")
		b.WriteString(f.Err.Error())
	}
	return b.String()
}

func (f *BindFailure) Unwrap() error { return f.Err }

// Is reports whether target is the Kind of this failure.
func (f *BindFailure) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == f.Kind
}

// KindOf returns the most specific Kind found in err's chain, so a
// NoBindableAddress failure wrapping an AddressInUse one yields
// AddressInUse. It returns 0 if err holds no BindFailure.
func KindOf(err error) Kind {
	var kind Kind
	for err != nil {
		var f *BindFailure
		if !errors.As(err, &f) {
			break
		}
		kind = f.Kind
		err = f.Err
	}
	return kind
}

func failure(kind Kind, op, address string, err error) *BindFailure {
	return &BindFailure{Kind: kind, Op: op, Address: address, Err: err}
}
