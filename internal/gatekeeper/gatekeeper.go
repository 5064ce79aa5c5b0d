package gatekeeper

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vyrodovalexey/authgate/internal/license"
	"github.com/vyrodovalexey/authgate/internal/observability"
	"github.com/vyrodovalexey/authgate/internal/policy"
	"github.com/vyrodovalexey/authgate/internal/timing"
	"github.com/vyrodovalexey/authgate/internal/trust"
)

// gkTracer is the OTEL tracer for gatekeeper decisions.
var gkTracer = otel.Tracer("authgate/gatekeeper")

// ErrAccessDenied is the single externally visible denial. Every internal
// cause collapses to it at the boundary.
var ErrAccessDenied = errors.New("access denied")

// Stage identifies where in the pipeline a request currently is, or
// where it was denied.
type Stage int

// Pipeline stages.
const (
	StageReceived Stage = iota
	StageResolvingIP
	StagePolicyCheck
	StageCredentialCheck
	StageAllowed
	StageDenied
)

// String returns the stage name for logs and metrics.
func (s Stage) String() string {
	switch s {
	case StageReceived:
		return "received"
	case StageResolvingIP:
		return "resolving_ip"
	case StagePolicyCheck:
		return "policy_check"
	case StageCredentialCheck:
		return "credential_check"
	case StageAllowed:
		return "allowed"
	case StageDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// Request carries the per-request inputs to a gatekeeper check.
type Request struct {
	// DirectAddr is the transport-level peer address, possibly with a
	// port.
	DirectAddr string

	// ForwardedChain is the raw forwarded-address header value, empty
	// when absent.
	ForwardedChain string

	// Credential is the presented plaintext license key.
	Credential string

	// Cost is the allowance consumed when the request is admitted.
	// Zero skips allowance accounting.
	Cost int64
}

// Decision is the outcome of a check. The internal cause and denial
// stage are for operator logs; nothing in them may reach the response
// body.
type Decision struct {
	// Allowed reports the verdict.
	Allowed bool

	// ClientAddr is the resolved client address, always set.
	ClientAddr string

	// Credential is the matched credential, set only when allowed.
	Credential *license.Credential

	stage Stage
	cause error
}

// Stage returns the stage the decision was made at.
func (d Decision) Stage() Stage {
	return d.stage
}

// Cause returns the internal denial cause, nil when allowed. Operator
// use only: it must never be rendered to the requester.
func (d Decision) Cause() error {
	return d.cause
}

// Config holds gatekeeper configuration.
type Config struct {
	// VerifyContract is the timing envelope applied to the policy and
	// credential stages.
	VerifyContract timing.Contract
}

// DefaultConfig returns gatekeeper defaults.
func DefaultConfig() *Config {
	return &Config{
		VerifyContract: timing.DefaultContract(),
	}
}

// Gatekeeper is the composition root for per-request access decisions.
// The trust resolver is held behind an atomic pointer so a configuration
// reload swaps in a new snapshot without synchronizing readers.
type Gatekeeper struct {
	config      *Config
	resolver    atomic.Pointer[trust.Resolver]
	evaluator   *policy.Evaluator
	policies    policy.Store
	credentials license.Store
	limiters    *limiterRegistry
	logger      observability.Logger
}

// Option is a functional option for the gatekeeper.
type Option func(*Gatekeeper)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(g *Gatekeeper) {
		g.logger = logger
	}
}

// New creates a gatekeeper over the given stores and trust resolver.
func New(
	config *Config,
	resolver *trust.Resolver,
	policies policy.Store,
	credentials license.Store,
	opts ...Option,
) (*Gatekeeper, error) {
	if resolver == nil {
		return nil, fmt.Errorf("trust resolver is required")
	}
	if policies == nil {
		return nil, fmt.Errorf("policy store is required")
	}
	if credentials == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	if config == nil {
		config = DefaultConfig()
	}

	g := &Gatekeeper{
		config:      config,
		evaluator:   nil,
		policies:    policies,
		credentials: credentials,
		limiters:    newLimiterRegistry(),
		logger:      observability.NopLogger(),
	}
	g.resolver.Store(resolver)

	for _, opt := range opts {
		opt(g)
	}
	g.evaluator = policy.NewEvaluator(g.logger)

	return g, nil
}

// SwapResolver atomically replaces the trust resolver. Used on reload:
// the new snapshot is built first, then swapped in; the old one is never
// mutated.
func (g *Gatekeeper) SwapResolver(resolver *trust.Resolver) {
	if resolver != nil {
		g.resolver.Store(resolver)
	}
}

// ResolveClientAddr resolves the client address for a request without
// running the rest of the pipeline. Used for non-gated routes that still
// need the resolved address downstream.
func (g *Gatekeeper) ResolveClientAddr(directAddr, forwardedChain string) string {
	return g.resolver.Load().Resolve(directAddr, forwardedChain)
}

// Check runs the full pipeline for one request. The policy and
// credential stages execute inside the timing envelope so the latency
// distribution of a denial does not depend on which stage produced it.
func (g *Gatekeeper) Check(ctx context.Context, req Request) Decision {
	start := time.Now()
	ctx, span := gkTracer.Start(ctx, "gatekeeper.check")
	defer span.End()

	clientAddr := g.ResolveClientAddr(req.DirectAddr, req.ForwardedChain)

	decision, _ := timing.Wrap(ctx, g.config.VerifyContract, true,
		func(ctx context.Context) (Decision, error) {
			return g.decide(ctx, clientAddr, req), nil
		})

	g.observe(decision, time.Since(start))
	span.SetAttributes(
		attribute.Bool("gatekeeper.allowed", decision.Allowed),
		attribute.String("gatekeeper.stage", decision.stage.String()),
	)
	return decision
}

// decide runs the policy and credential stages. It always returns a
// terminal decision; errors become denial causes, never panics or
// partial verdicts.
func (g *Gatekeeper) decide(ctx context.Context, clientAddr string, req Request) Decision {
	deny := func(stage Stage, cause error) Decision {
		return Decision{ClientAddr: clientAddr, stage: stage, cause: cause}
	}

	if req.Credential == "" {
		return deny(StageCredentialCheck, license.ErrEmptyCredential)
	}

	plaintext, digest := license.LookupForms(req.Credential)
	cred, err := g.credentials.Fetch(ctx, plaintext, digest)
	if err != nil {
		return deny(StageCredentialCheck, err)
	}

	list, err := g.policies.AllowList(ctx, cred.TenantID)
	if err != nil {
		return deny(StagePolicyCheck, err)
	}
	if !g.evaluator.IsAllowed(clientAddr, list) {
		return deny(StagePolicyCheck, errIPBlocked)
	}

	if !license.Verify(req.Credential, cred.Secret) {
		return deny(StageCredentialCheck, license.ErrCredentialInvalid)
	}
	if !cred.Active {
		return deny(StageCredentialCheck, license.ErrCredentialInactive)
	}
	if cred.IsExpired() {
		return deny(StageCredentialCheck, license.ErrCredentialExpired)
	}

	if cred.RateLimit != nil && !g.limiters.allow(cred.ID, cred.RateLimit) {
		return deny(StageCredentialCheck, errRateLimited)
	}

	if req.Cost > 0 {
		if err := g.credentials.DecrementAllowance(ctx, cred.ID, req.Cost); err != nil {
			return deny(StageCredentialCheck, err)
		}
	}

	return Decision{
		Allowed:    true,
		ClientAddr: clientAddr,
		Credential: cred,
		stage:      StageAllowed,
	}
}

// Internal denial causes with no sentinel elsewhere.
var (
	errIPBlocked   = errors.New("client address not in tenant allow-list")
	errRateLimited = errors.New("credential rate limit exceeded")
)

// observe records the decision in logs and metrics, keeping the specific
// cause internal.
func (g *Gatekeeper) observe(d Decision, elapsed time.Duration) {
	outcome := "allowed"
	reason := "valid"
	if !d.Allowed {
		outcome = "denied"
		reason = denialReason(d.cause)
		g.logger.Info("request denied",
			observability.String("clientAddr", d.ClientAddr),
			observability.String("stage", d.stage.String()),
			observability.String("reason", reason),
			observability.Error(d.cause),
		)
	}
	recordDecision(outcome, d.stage.String(), reason, elapsed)
}

// denialReason maps internal causes to stable metric label values.
func denialReason(cause error) string {
	switch {
	case errors.Is(cause, license.ErrEmptyCredential):
		return "empty_credential"
	case errors.Is(cause, license.ErrCredentialNotFound):
		return "not_found"
	case errors.Is(cause, license.ErrCredentialInvalid):
		return "invalid"
	case errors.Is(cause, license.ErrCredentialInactive):
		return "inactive"
	case errors.Is(cause, license.ErrCredentialExpired):
		return "expired"
	case errors.Is(cause, license.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(cause, license.ErrStoreUnavailable), errors.Is(cause, policy.ErrStoreUnavailable):
		return "store_error"
	case errors.Is(cause, errIPBlocked):
		return "ip_blocked"
	case errors.Is(cause, errRateLimited):
		return "rate_limited"
	default:
		return "unknown"
	}
}
