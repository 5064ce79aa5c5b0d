// Package middleware provides the HTTP middleware chain around the
// gatekeeper: request IDs, client address resolution, access logging,
// and panic recovery.
package middleware
