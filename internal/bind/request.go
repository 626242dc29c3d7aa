package bind

import (
	"fmt"
	"net"
	"strconv"
)

// Family selects which address families a BindRequest may resolve to.
type Family int

const (
	FamilyAny  Family = iota // Dual-stack first, IPv4 as fallback.
	FamilyIPv4               // IPv4 only.
	FamilyIPv6               // IPv6 only, the socket is bound v6-only.
)

func (f Family) String() string {
	switch f {
	case FamilyAny:
		return "any"
	case FamilyIPv4:
		return "ipv4"
	case FamilyIPv6:
		return "ipv6"
	default:
		return "Family(" + strconv.Itoa(int(f)) + ")"
	}
}

func (f Family) valid() bool {
	return f >= FamilyAny && f <= FamilyIPv6
}

// lookupNetwork returns the network name understood by net.Resolver.LookupNetIP.
func (f Family) lookupNetwork() string {
	switch f {
	case FamilyIPv4:
		return "ip4"
	case FamilyIPv6:
		return "ip6"
	default:
		return "ip"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (f Family) MarshalText() ([]byte, error) {
	if !f.valid() {
		return nil, fmt.Errorf("unknown address family %d", int(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Accepted values are
// "any" (or empty), "ipv4"/"tcp4" and "ipv6"/"tcp6".
func (f *Family) UnmarshalText(text []byte) error {
	switch string(text) {
	case "", "any", "tcp":
		*f = FamilyAny
	case "ipv4", "tcp4":
		*f = FamilyIPv4
	case "ipv6", "tcp6":
		*f = FamilyIPv6
	default:
		return fmt.Errorf("unknown address family %q", string(text))
	}
	return nil
}

// BindRequest describes where a listening socket should be bound.
// An empty Address binds the wildcard address, Port 0 asks the system
// for an ephemeral port.
type BindRequest struct {
	Address string
	Port    int
	Family  Family
}

// String returns the request in host:port form.
func (r BindRequest) String() string {
	return net.JoinHostPort(r.Address, strconv.Itoa(r.Port))
}
