package license

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"github.com/vyrodovalexey/authgate/internal/observability"
)

// Prometheus metrics for Redis credential store operations
var (
	credentialStoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credential_store_operations_total",
			Help: "Total number of Redis credential store operations",
		},
		[]string{"operation", "status"},
	)

	credentialStoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "credential_store_operation_duration_seconds",
			Help:    "Duration of Redis credential store operations in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)
)

// decrementScript atomically consumes allowance with a floor check.
// KEYS[1] = balance key
// ARGV[1] = amount
// Returns -1 when the key is absent (unlimited allowance), -2 when the
// balance is insufficient, otherwise the new balance.
var decrementScript = redis.NewScript(`
	local bal = redis.call('GET', KEYS[1])
	if not bal then return -1 end
	bal = tonumber(bal)
	local amount = tonumber(ARGV[1])
	if bal < amount then return -2 end
	return redis.call('DECRBY', KEYS[1], amount)
`)

const (
	decrementUnlimited    = -1
	decrementInsufficient = -2
)

// RedisStore implements Store using Redis.
//
// Layout under the prefix: "rec:<id>" holds the credential record as
// JSON, "idx:<secret-form>" maps a persisted secret form (digest or
// plaintext) to the credential ID, and "bal:<id>" holds the remaining
// allowance as an integer. An absent balance key means unlimited.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger observability.Logger
}

// RedisConfig holds configuration for the Redis credential store.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewRedisStore creates a Redis-backed credential store.
func NewRedisStore(cfg RedisConfig, logger observability.Logger) (*RedisStore, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "authgate:cred:"
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

func (s *RedisStore) recordKey(id string) string  { return s.prefix + "rec:" + id }
func (s *RedisStore) indexKey(form string) string { return s.prefix + "idx:" + form }
func (s *RedisStore) balanceKey(id string) string { return s.prefix + "bal:" + id }

// Put persists a credential, indexing it by its stored secret form.
func (s *RedisStore) Put(ctx context.Context, cred *Credential) error {
	start := time.Now()
	defer func() {
		credentialStoreOperationDuration.WithLabelValues("put").Observe(time.Since(start).Seconds())
	}()

	payload, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to encode credential: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.recordKey(cred.ID), payload, 0)
	pipe.Set(ctx, s.indexKey(cred.Secret), cred.ID, 0)
	if cred.Remaining >= 0 {
		pipe.Set(ctx, s.balanceKey(cred.ID), cred.Remaining, 0)
	} else {
		pipe.Del(ctx, s.balanceKey(cred.ID))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		credentialStoreOperationsTotal.WithLabelValues("put", "error").Inc()
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	credentialStoreOperationsTotal.WithLabelValues("put", "success").Inc()
	return nil
}

// Fetch looks up a credential by either storage form of the secret:
// the digest index is consulted first, then the plaintext index.
func (s *RedisStore) Fetch(ctx context.Context, plaintext, digest string) (*Credential, error) {
	start := time.Now()
	defer func() {
		credentialStoreOperationDuration.WithLabelValues("fetch").Observe(time.Since(start).Seconds())
	}()

	id, err := s.lookupID(ctx, digest)
	if err != nil {
		return nil, err
	}
	if id == "" {
		if id, err = s.lookupID(ctx, plaintext); err != nil {
			return nil, err
		}
	}
	if id == "" {
		credentialStoreOperationsTotal.WithLabelValues("fetch", "not_found").Inc()
		return nil, ErrCredentialNotFound
	}

	raw, err := s.client.Get(ctx, s.recordKey(id)).Result()
	if err != nil {
		if err == redis.Nil {
			credentialStoreOperationsTotal.WithLabelValues("fetch", "not_found").Inc()
			return nil, ErrCredentialNotFound
		}
		credentialStoreOperationsTotal.WithLabelValues("fetch", "error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var cred Credential
	if err := json.Unmarshal([]byte(raw), &cred); err != nil {
		credentialStoreOperationsTotal.WithLabelValues("fetch", "corrupt").Inc()
		s.logger.Error("corrupt credential record",
			observability.String("credentialID", id),
			observability.Error(err),
		)
		return nil, ErrCredentialNotFound
	}

	cred.Remaining, err = s.remaining(ctx, id)
	if err != nil {
		credentialStoreOperationsTotal.WithLabelValues("fetch", "error").Inc()
		return nil, err
	}

	credentialStoreOperationsTotal.WithLabelValues("fetch", "success").Inc()
	return &cred, nil
}

// lookupID resolves a secret form to a credential ID, "" when absent.
func (s *RedisStore) lookupID(ctx context.Context, form string) (string, error) {
	if form == "" {
		return "", nil
	}
	id, err := s.client.Get(ctx, s.indexKey(form)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		credentialStoreOperationsTotal.WithLabelValues("fetch", "error").Inc()
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return id, nil
}

// remaining reads the balance key; absent means unlimited.
func (s *RedisStore) remaining(ctx context.Context, id string) (int64, error) {
	raw, err := s.client.Get(ctx, s.balanceKey(id)).Result()
	if err != nil {
		if err == redis.Nil {
			return -1, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	bal, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: corrupt balance for %s", ErrStoreUnavailable, id)
	}
	return bal, nil
}

// DecrementAllowance atomically consumes allowance for the credential.
// State checks run first so a disabled or expired credential surfaces its
// own error rather than draining balance.
func (s *RedisStore) DecrementAllowance(ctx context.Context, id string, amount int64) error {
	start := time.Now()
	defer func() {
		credentialStoreOperationDuration.WithLabelValues("decrement").Observe(time.Since(start).Seconds())
	}()

	raw, err := s.client.Get(ctx, s.recordKey(id)).Result()
	if err != nil {
		if err == redis.Nil {
			credentialStoreOperationsTotal.WithLabelValues("decrement", "invalid").Inc()
			return ErrCredentialInvalid
		}
		credentialStoreOperationsTotal.WithLabelValues("decrement", "error").Inc()
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var cred Credential
	if err := json.Unmarshal([]byte(raw), &cred); err != nil {
		credentialStoreOperationsTotal.WithLabelValues("decrement", "invalid").Inc()
		return ErrCredentialInvalid
	}
	if !cred.Active {
		credentialStoreOperationsTotal.WithLabelValues("decrement", "inactive").Inc()
		return ErrCredentialInactive
	}
	if cred.IsExpired() {
		credentialStoreOperationsTotal.WithLabelValues("decrement", "expired").Inc()
		return ErrCredentialExpired
	}

	result, err := decrementScript.Run(ctx, s.client, []string{s.balanceKey(id)}, amount).Int64()
	if err != nil {
		credentialStoreOperationsTotal.WithLabelValues("decrement", "error").Inc()
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if result == decrementInsufficient {
		credentialStoreOperationsTotal.WithLabelValues("decrement", "insufficient").Inc()
		return ErrInsufficientBalance
	}

	credentialStoreOperationsTotal.WithLabelValues("decrement", "success").Inc()
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
