// Package bind creates TCP listening sockets.
//
// BindAndListen resolves an address into candidate socket addresses and
// tries them in order: socket, SO_REUSEADDR, bind, listen. The first
// candidate that reaches the listening state is returned as a
// ListeningSocket, every other descriptor is closed before returning.
package bind

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

const (
	MaxPort    = 65535
	MaxBacklog = 65535 // Larger backlogs are clamped, the kernel may clamp further.
)

const (
	opResolve    = "resolve"
	opSocket     = "socket"
	opSetsockopt = "setsockopt"
	opBind       = "bind"
	opListen     = "listen"
)

var errNoCandidates = errors.New("no addresses found")

// Resolver looks up the IP addresses of a host. *net.Resolver implements it.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// Binder creates listening sockets. Use NewBinder to get one with a
// disabled logger; a nil Resolver falls back to net.DefaultResolver.
type Binder struct {
	Resolver Resolver
	Metrics  *Metrics       // Optional.
	Logger   zerolog.Logger // By default Logger is disabled, but can be manually attached.

	listen func(c candidate, backlog int) (*ListeningSocket, *BindFailure) // listenCandidate when nil.
}

// NewBinder returns a Binder using net.DefaultResolver and no metrics.
func NewBinder() *Binder {
	return &Binder{
		Resolver: net.DefaultResolver,
		Logger:   zerolog.New(os.Stderr).Level(zerolog.Disabled),
	}
}

// BindAndListen binds address:port and puts the socket into the listening
// state with the given backlog. An empty address binds the wildcard address.
//
// Failures are returned as *BindFailure; use errors.Is with a Kind or KindOf
// to inspect them.
func BindAndListen(address string, port, backlog int) (*ListeningSocket, error) {
	return NewBinder().BindAndListen(BindRequest{Address: address, Port: port}, backlog)
}

// BindAndListen is the Binder form of the package level BindAndListen.
//
// Candidates are tried sequentially. A bind failure moves on to the next
// candidate; a listen failure stops the iteration and is returned as is.
// When every candidate fails the result is a NoBindableAddress failure
// wrapping the last candidate's failure.
func (b *Binder) BindAndListen(req BindRequest, backlog int) (ls *ListeningSocket, err error) {
	defer func() {
		if err != nil {
			b.Metrics.recordFailure(err)
			b.Logger.Error().Err(err).Str("request", req.String()).Msg("failed to bind listening socket")
		}
	}()

	if req.Port < 0 || req.Port > MaxPort {
		return nil, failure(InvalidArgument, "", req.String(),
			errors.New("port must be in range 0-"+strconv.Itoa(MaxPort)))
	}
	if !req.Family.valid() {
		return nil, failure(InvalidArgument, "", req.String(), errors.New("unknown address family "+req.Family.String()))
	}
	if backlog < 1 {
		return nil, failure(InvalidArgument, "", req.String(), errors.New("backlog must be at least 1"))
	}
	if backlog > MaxBacklog {
		b.Logger.Debug().Int("backlog", backlog).Int("max", MaxBacklog).Msg("clamping backlog")
		backlog = MaxBacklog
	}

	candidates, ferr := b.resolve(req)
	if ferr != nil {
		return nil, ferr
	}

	listen := b.listen
	if listen == nil {
		listen = listenCandidate
	}

	var last *BindFailure
	for _, c := range candidates {
		b.Metrics.recordAttempt(c.family)
		b.Logger.Debug().Str("candidate", c.String()).Bool("dualStack", c.dualStack).Msg("trying bind candidate")

		sock, ferr := listen(c, backlog)
		if ferr == nil {
			b.Metrics.socketOpened()
			sock.onClose = b.Metrics.socketClosed
			b.Logger.Info().
				Str("address", sock.Addr().String()).
				Int("port", sock.Port()).
				Str("family", sock.Family().String()).
				Int("backlog", sock.Backlog()).
				Msg("listening")
			return sock, nil
		}
		if ferr.Op == opListen {
			return nil, ferr
		}
		b.Logger.Warn().Err(ferr).Str("candidate", c.String()).Msg("bind candidate failed")
		last = ferr
	}
	var cause error = errNoCandidates
	if last != nil {
		cause = last
	}
	return nil, failure(NoBindableAddress, "", req.String(), cause)
}

// candidate is one resolved socket address.
type candidate struct {
	ip        netip.Addr
	port      int
	family    Family // FamilyIPv4 or FamilyIPv6.
	dualStack bool   // IPv6 wildcard accepting IPv4 too.
}

func (c candidate) String() string {
	return netip.AddrPortFrom(c.ip, uint16(c.port)).String()
}

func (b *Binder) resolve(req BindRequest) ([]candidate, *BindFailure) {
	if req.Address == "" {
		return wildcardCandidates(req.Family, req.Port), nil
	}

	host := strings.TrimSuffix(strings.TrimPrefix(req.Address, "["), "]")
	if ip, err := netip.ParseAddr(host); err == nil {
		ip = ip.Unmap()
		fam := familyOf(ip)
		if req.Family != FamilyAny && req.Family != fam {
			return nil, failure(InvalidArgument, opResolve, req.String(),
				errors.New(fam.String()+" address does not match requested family "+req.Family.String()))
		}
		return []candidate{{ip: ip, port: req.Port, family: fam}}, nil
	}

	resolver := b.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	ips, err := resolver.LookupNetIP(context.Background(), req.Family.lookupNetwork(), host)
	if err != nil {
		return nil, failure(ResolutionFailed, opResolve, req.String(), err)
	}

	seen := make(map[netip.Addr]struct{}, len(ips))
	candidates := make([]candidate, 0, len(ips))
	for _, ip := range ips {
		ip = ip.Unmap()
		fam := familyOf(ip)
		if req.Family != FamilyAny && req.Family != fam {
			continue
		}
		if _, ok := seen[ip]; ok {
			continue
		}
		seen[ip] = struct{}{}
		candidates = append(candidates, candidate{ip: ip, port: req.Port, family: fam})
	}
	if len(candidates) == 0 {
		return nil, failure(ResolutionFailed, opResolve, req.String(), errNoCandidates)
	}
	return candidates, nil
}

func wildcardCandidates(f Family, port int) []candidate {
	v4 := candidate{ip: netip.IPv4Unspecified(), port: port, family: FamilyIPv4}
	v6 := candidate{ip: netip.IPv6Unspecified(), port: port, family: FamilyIPv6}
	switch f {
	case FamilyIPv4:
		return []candidate{v4}
	case FamilyIPv6:
		return []candidate{v6}
	default:
		v6.dualStack = true
		return []candidate{v6, v4}
	}
}

func familyOf(ip netip.Addr) Family {
	if ip.Is4() {
		return FamilyIPv4
	}
	return FamilyIPv6
}

// zoneIndex maps an IPv6 zone, either an interface name or a number, to
// an interface index.
func zoneIndex(zone string) (int, error) {
	if zone == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(zone); err == nil {
		return n, nil
	}
	ifi, err := net.InterfaceByName(zone)
	if err != nil {
		return 0, err
	}
	return ifi.Index, nil
}
