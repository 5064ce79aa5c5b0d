package license

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/vyrodovalexey/authgate/internal/observability"
)

// BreakerConfig holds circuit breaker settings for the credential store.
type BreakerConfig struct {
	// Threshold is the number of requests the failure ratio is judged
	// over before the breaker can trip.
	Threshold uint32

	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration
}

// DefaultBreakerConfig returns breaker defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Threshold: 5,
		Timeout:   30 * time.Second,
	}
}

// BreakerStore wraps a Store with a circuit breaker so a struggling
// backend fails fast instead of stacking up timed-out fetches. An open
// breaker surfaces ErrStoreUnavailable; only transient failures count
// against the breaker, domain outcomes like "not found" do not.
type BreakerStore struct {
	inner Store
	cb    *gobreaker.CircuitBreaker
}

// NewBreakerStore wraps the given store with a circuit breaker.
func NewBreakerStore(inner Store, cfg BreakerConfig, logger observability.Logger) *BreakerStore {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultBreakerConfig().Threshold
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultBreakerConfig().Timeout
	}

	settings := gobreaker.Settings{
		Name:        "credential-store",
		MaxRequests: cfg.Threshold,
		Interval:    cfg.Timeout,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.Threshold && failureRatio >= 0.5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrStoreUnavailable)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("credential store breaker state change",
				observability.String("name", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)
		},
	}

	return &BreakerStore{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker(settings),
	}
}

// Fetch looks up a credential through the breaker.
func (s *BreakerStore) Fetch(ctx context.Context, plaintext, digest string) (*Credential, error) {
	result, err := s.cb.Execute(func() (interface{}, error) {
		return s.inner.Fetch(ctx, plaintext, digest)
	})
	if err != nil {
		return nil, mapBreakerError(err)
	}
	cred, ok := result.(*Credential)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected result type", ErrStoreUnavailable)
	}
	return cred, nil
}

// DecrementAllowance consumes allowance through the breaker.
func (s *BreakerStore) DecrementAllowance(ctx context.Context, id string, amount int64) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.inner.DecrementAllowance(ctx, id, amount)
	})
	return mapBreakerError(err)
}

// Close closes the wrapped store.
func (s *BreakerStore) Close() error {
	return s.inner.Close()
}

// mapBreakerError converts breaker-refused calls to the transient store
// error so callers see one taxonomy.
func mapBreakerError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}

// Ensure BreakerStore implements Store.
var _ Store = (*BreakerStore)(nil)
