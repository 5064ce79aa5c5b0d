package policy

import (
	"net"
	"strings"

	"github.com/vyrodovalexey/authgate/internal/observability"
)

// AllowList is a tenant's IP access policy. The nil/empty distinction is
// load-bearing: a nil list means the tenant never configured one (allow
// all), an empty list means the tenant locked the account down (deny all).
type AllowList []string

// Evaluator evaluates client addresses against allow-lists.
type Evaluator struct {
	logger observability.Logger
}

// NewEvaluator creates a new policy evaluator.
func NewEvaluator(logger observability.Logger) *Evaluator {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Evaluator{logger: logger}
}

// IsAllowed reports whether the client address passes the allow-list.
// First match wins. Unparseable client addresses are denied and
// unparseable list entries are skipped with a warning.
func (e *Evaluator) IsAllowed(clientAddr string, list AllowList) bool {
	if list == nil {
		return true
	}
	if len(list) == 0 {
		return false
	}

	client := net.ParseIP(strings.TrimSpace(clientAddr))
	if client == nil {
		// Fail closed: an address we cannot parse is an address we
		// cannot vouch for.
		return false
	}

	for _, entry := range list {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			if e.matchCIDR(client, entry) {
				return true
			}
			continue
		}
		if e.matchExact(client, entry) {
			return true
		}
	}
	return false
}

// matchCIDR matches the client against a CIDR entry. Parsing is
// non-strict: "192.168.1.1/24" is accepted and masked to its network.
func (e *Evaluator) matchCIDR(client net.IP, entry string) bool {
	_, network, err := net.ParseCIDR(entry)
	if err != nil {
		e.logger.Warn("skipping unparseable allow-list entry",
			observability.String("entry", entry),
		)
		return false
	}
	if family(network.IP) != family(client) {
		return false
	}
	return network.Contains(client)
}

// matchExact matches the client against a single-address entry.
func (e *Evaluator) matchExact(client net.IP, entry string) bool {
	ip := net.ParseIP(entry)
	if ip == nil {
		e.logger.Warn("skipping unparseable allow-list entry",
			observability.String("entry", entry),
		)
		return false
	}
	if family(ip) != family(client) {
		return false
	}
	return ip.Equal(client)
}

// family returns 4 or 6 for the IP's address family.
func family(ip net.IP) int {
	if ip.To4() != nil {
		return 4
	}
	return 6
}
