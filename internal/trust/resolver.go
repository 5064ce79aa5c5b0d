package trust

import (
	"net"
	"strings"

	"github.com/vyrodovalexey/authgate/internal/observability"
)

// Resolver derives the real client address from a direct connection
// address plus a forwarded-address chain (the X-Forwarded-For value
// accumulated client-to-edge by successive proxies).
type Resolver struct {
	trusted *NetworkSet
	logger  observability.Logger
}

// ResolverOption is a functional option for the resolver.
type ResolverOption func(*Resolver)

// WithResolverLogger sets the logger for the resolver.
func WithResolverLogger(logger observability.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver creates a resolver over the given trusted network set.
// A nil set behaves as empty: forwarded chains are never trusted.
func NewResolver(trusted *NetworkSet, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		trusted: trusted,
		logger:  observability.NopLogger(),
	}
	if r.trusted == nil {
		r.trusted = NewNetworkSet(nil, nil)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the address to use for access-control decisions.
//
// If the direct peer is not a trusted proxy the chain is ignored entirely
// and the direct address is returned: an untrusted edge can write any
// header it likes, so nothing in it may influence the verdict. If the
// direct peer is trusted, the chain is walked right to left and the
// first hop outside the trusted set is returned, the most specific
// known-untrusted originator. When every hop is trusted the leftmost
// entry is returned with a diagnostic warning; that rests on the
// assumption that no trusted proxy is itself compromised, which is a
// residual trust assumption rather than a hard guarantee.
func (r *Resolver) Resolve(directAddr, forwardedChain string) string {
	direct := StripPort(directAddr)

	// Secure default: an empty trusted set means only the direct peer
	// address is ever used.
	if r.trusted.Empty() {
		return direct
	}

	if !r.trusted.Contains(direct) {
		return direct
	}

	if forwardedChain == "" {
		return direct
	}

	hops := strings.Split(forwardedChain, ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if net.ParseIP(StripPort(hop)) == nil {
			// Malformed tokens are treated as untrusted, never fatal.
			// Downstream policy evaluation fails closed on them.
			r.logger.Warn("malformed address in forwarded chain",
				observability.String("token", hop),
			)
			return hop
		}
		if !r.trusted.Contains(StripPort(hop)) {
			return StripPort(hop)
		}
	}

	leftmost := StripPort(strings.TrimSpace(hops[0]))
	if leftmost == "" {
		return direct
	}
	r.logger.Warn("every hop in forwarded chain is trusted, using leftmost entry",
		observability.String("chain", forwardedChain),
		observability.String("client", leftmost),
	)
	return leftmost
}

// StripPort removes the port from an address string. Handles both IPv4
// ("192.168.1.1:8080") and IPv6 ("[::1]:8080") formats.
func StripPort(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		// No port present or invalid format, return as-is
		return addr
	}
	return host
}
