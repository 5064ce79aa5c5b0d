// Package trust decides which address to believe for a request that may
// have passed through proxies. A NetworkSet holds the configured trusted
// proxy networks; a Resolver walks the forwarded-address chain against it
// to find the real client address.
//
// The secure default is to trust nothing: with an empty NetworkSet the
// forwarded chain is never consulted and the direct peer address wins,
// which prevents header spoofing at untrusted edges.
package trust
