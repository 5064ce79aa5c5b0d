package trust

import (
	"net"
	"strings"

	"github.com/vyrodovalexey/authgate/internal/observability"
)

// NetworkSet is an immutable set of trusted proxy networks. It is built
// once at startup (or on reload, producing a fresh set) and is safe for
// unsynchronized concurrent reads.
type NetworkSet struct {
	cidrs []*net.IPNet

	// original entries that survived parsing, for logging and reload diffs
	entries []string
}

// NewNetworkSet builds a NetworkSet from a list of IPv4/IPv6 addresses or
// CIDR ranges. Invalid entries are dropped with a warning, never fatal:
// a bad trusted-proxy entry must not abort startup, it just narrows trust.
func NewNetworkSet(entries []string, logger observability.Logger) *NetworkSet {
	if logger == nil {
		logger = observability.NopLogger()
	}

	s := &NetworkSet{
		cidrs:   make([]*net.IPNet, 0, len(entries)),
		entries: make([]string, 0, len(entries)),
	}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		_, cidr, err := net.ParseCIDR(entry)
		if err != nil {
			// Try parsing as a single IP address
			ip := net.ParseIP(entry)
			if ip == nil {
				logger.Warn("dropping invalid trusted proxy entry",
					observability.String("entry", entry),
				)
				continue
			}
			cidr = singleIPToCIDR(ip)
		}
		s.cidrs = append(s.cidrs, cidr)
		s.entries = append(s.entries, entry)
	}
	return s
}

// ParseNetworkSet builds a NetworkSet from a comma-separated configuration
// string, e.g. "10.0.0.0/8, 192.168.1.1, fd00::/8".
func ParseNetworkSet(spec string, logger observability.Logger) *NetworkSet {
	if strings.TrimSpace(spec) == "" {
		return NewNetworkSet(nil, logger)
	}
	return NewNetworkSet(strings.Split(spec, ","), logger)
}

// singleIPToCIDR converts a single IP address to a /32 or /128 CIDR.
func singleIPToCIDR(ip net.IP) *net.IPNet {
	bits := 32
	if ip.To4() == nil {
		bits = 128
	}
	return &net.IPNet{
		IP:   ip,
		Mask: net.CIDRMask(bits, bits),
	}
}

// Contains reports whether the given address string falls inside any
// trusted network. Unparseable addresses are never trusted.
func (s *NetworkSet) Contains(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, cidr := range s.cidrs {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

// Empty reports whether the set contains no networks.
func (s *NetworkSet) Empty() bool {
	return len(s.cidrs) == 0
}

// Size returns the number of networks in the set.
func (s *NetworkSet) Size() int {
	return len(s.cidrs)
}

// Entries returns the configuration entries that survived parsing.
func (s *NetworkSet) Entries() []string {
	out := make([]string, len(s.entries))
	copy(out, s.entries)
	return out
}
