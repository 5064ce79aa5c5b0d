// Package gatekeeper composes trust resolution, IP policy evaluation,
// and license verification into a single per-request access decision.
//
// A request moves through Received -> ResolvingIP -> PolicyCheck ->
// CredentialCheck -> {Allowed, Denied}. Denied is terminal and uniform:
// whichever stage failed, the external response is the same generic
// denial with the same latency envelope, so neither error content nor
// timing reveals whether a tenant exists, an IP is blocked, or a
// credential is invalid, inactive, or expired. The specific cause is
// kept for operator logs and metrics only.
package gatekeeper
