package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"github.com/vyrodovalexey/authgate/internal/observability"
)

// Prometheus metrics for Redis policy store operations
var (
	policyStoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policy_store_operations_total",
			Help: "Total number of Redis policy store operations",
		},
		[]string{"operation", "status"},
	)

	policyStoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "policy_store_operation_duration_seconds",
			Help:    "Duration of Redis policy store operations in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)
)

// RedisStore implements Store using Redis. Allow-lists are stored as JSON
// arrays under <prefix><tenantID>; an absent key means the tenant has no
// policy (allow all).
type RedisStore struct {
	client *redis.Client
	prefix string
	logger observability.Logger
}

// RedisConfig holds configuration for the Redis policy store.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewRedisStore creates a Redis-backed policy store.
func NewRedisStore(cfg RedisConfig, logger observability.Logger) (*RedisStore, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "authgate:policy:"
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	return &RedisStore{
		client: client,
		prefix: prefix,
		logger: logger,
	}, nil
}

// AllowList returns the tenant's allow-list. redis.Nil maps to a nil list.
func (s *RedisStore) AllowList(ctx context.Context, tenantID string) (AllowList, error) {
	start := time.Now()

	raw, err := s.client.Get(ctx, s.prefix+tenantID).Result()
	policyStoreOperationDuration.WithLabelValues("get").Observe(time.Since(start).Seconds())
	if err != nil {
		if err == redis.Nil {
			policyStoreOperationsTotal.WithLabelValues("get", "miss").Inc()
			return nil, nil
		}
		policyStoreOperationsTotal.WithLabelValues("get", "error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		// A corrupt policy denies rather than allows.
		policyStoreOperationsTotal.WithLabelValues("get", "corrupt").Inc()
		s.logger.Error("corrupt allow-list payload, denying all",
			observability.String("tenantID", tenantID),
			observability.Error(err),
		)
		return AllowList{}, nil
	}

	policyStoreOperationsTotal.WithLabelValues("get", "hit").Inc()
	if list == nil {
		// JSON "null" round-trips to a nil slice; keep the allow-all
		// meaning explicit.
		return nil, nil
	}
	return AllowList(list), nil
}

// Set stores the tenant's allow-list as JSON. A nil list deletes the key.
func (s *RedisStore) Set(ctx context.Context, tenantID string, list AllowList) error {
	start := time.Now()
	defer func() {
		policyStoreOperationDuration.WithLabelValues("set").Observe(time.Since(start).Seconds())
	}()

	if list == nil {
		if err := s.client.Del(ctx, s.prefix+tenantID).Err(); err != nil {
			policyStoreOperationsTotal.WithLabelValues("set", "error").Inc()
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		policyStoreOperationsTotal.WithLabelValues("set", "success").Inc()
		return nil
	}

	payload, err := json.Marshal([]string(list))
	if err != nil {
		return fmt.Errorf("failed to encode allow-list: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+tenantID, payload, 0).Err(); err != nil {
		policyStoreOperationsTotal.WithLabelValues("set", "error").Inc()
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	policyStoreOperationsTotal.WithLabelValues("set", "success").Inc()
	return nil
}

// Ping checks connectivity to Redis.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ensure RedisStore implements Store.
var _ Store = (*RedisStore)(nil)
