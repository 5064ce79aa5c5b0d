// Package timing enforces a uniform latency envelope around
// auth-sensitive operations so their outcome cannot be inferred from
// response time. An envelope draws a random initial jitter, runs the
// operation, then pads the elapsed wall-clock time up to a fixed floor.
//
// The waits are timer-based goroutine suspensions, never thread-blocking
// sleeps of a worker, and they are deliberately not cancellable: once an
// envelope starts, the floor completes even if the caller disconnects,
// so early disconnect cannot itself become a timing signal.
package timing

import (
	"context"
	"math/rand/v2"
	"time"
)

// Contract describes the envelope for one operation class.
type Contract struct {
	// MinDelay is the timing floor: every enveloped call takes at
	// least this long, whatever the outcome.
	MinDelay time.Duration

	// MaxJitter bounds the random initial delay drawn per call,
	// uniform over [0, MaxJitter).
	MaxJitter time.Duration
}

// DefaultContract is the envelope applied to credential verification
// when none is configured.
func DefaultContract() Contract {
	return Contract{
		MinDelay:  150 * time.Millisecond,
		MaxJitter: 50 * time.Millisecond,
	}
}

// Wrap runs op inside a timing envelope. The jitter is sampled once at
// invocation start and awaited before op runs, obscuring path-dependent
// timing before any work begins; afterwards the elapsed time since
// invocation start is padded up to MinDelay.
//
// Errors from op propagate unchanged once the floor is satisfied. With
// applyToFailures=false a failing op returns immediately, bypassing the
// floor, for branches where fail-fast matters more than timing safety.
func Wrap[T any](ctx context.Context, c Contract, applyToFailures bool, op func(context.Context) (T, error)) (T, error) {
	region := Begin(c)

	result, err := op(ctx)
	if err != nil && !applyToFailures {
		return result, err
	}

	region.Wait()
	return result, err
}

// Region is the scoped-block variant of the envelope, protecting an
// arbitrary critical section with the same semantics as Wrap:
//
//	region := timing.Begin(contract)
//	... critical section ...
//	region.Wait()
type Region struct {
	contract Contract
	start    time.Time
}

// Begin starts a region: it records the start time, draws the jitter
// sample, and awaits it before returning.
func Begin(c Contract) *Region {
	r := &Region{
		contract: c,
		start:    time.Now(),
	}
	await(sampleJitter(c.MaxJitter))
	return r
}

// Wait pads the region's elapsed time up to the contract floor.
func (r *Region) Wait() {
	await(r.contract.MinDelay - time.Since(r.start))
}

// Elapsed returns the time since the region began.
func (r *Region) Elapsed() time.Duration {
	return time.Since(r.start)
}

// sampleJitter draws a uniform sample from [0, maxJitter).
func sampleJitter(maxJitter time.Duration) time.Duration {
	if maxJitter <= 0 {
		return 0
	}
	return rand.N(maxJitter)
}

// await suspends the calling goroutine for d. There is intentionally no
// context select here: the floor must complete even when the caller has
// gone away.
func await(d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	<-t.C
}
