package gatekeeper

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/vyrodovalexey/authgate/internal/license"
)

// limiterRegistry holds per-credential token buckets fed by the rate
// limits the store returns on each credential row.
type limiterRegistry struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
}

func newLimiterRegistry() *limiterRegistry {
	return &limiterRegistry{
		limiters: make(map[string]*rate.Limiter),
	}
}

// allow reports whether the credential may proceed under its rate limit.
// The limiter is created lazily and rebuilt when the stored limit
// changes.
func (r *limiterRegistry) allow(credentialID string, rl *license.RateLimit) bool {
	if rl == nil || rl.RequestsPerSecond <= 0 {
		return true
	}

	burst := rl.Burst
	if burst <= 0 {
		burst = rl.RequestsPerSecond
	}

	r.mu.Lock()
	limiter, ok := r.limiters[credentialID]
	if !ok || limiter.Limit() != rate.Limit(rl.RequestsPerSecond) || limiter.Burst() != burst {
		limiter = rate.NewLimiter(rate.Limit(rl.RequestsPerSecond), burst)
		r.limiters[credentialID] = limiter
	}
	r.mu.Unlock()

	return limiter.Allow()
}
