// Package policy evaluates a resolved client address against a per-tenant
// IP allow-list. A nil list allows every address, an empty list denies
// every address, and a non-empty list allows the first matching entry
// (exact address or CIDR range, IPv4 or IPv6).
//
// Evaluation fails closed: an unparseable client address is always denied,
// and unparseable list entries are skipped rather than treated as matches.
package policy
