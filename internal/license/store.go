package license

import (
	"context"
	"sync"
	"time"
)

// Credential is a stored license credential. Secret holds whatever form
// is persisted for the row: a sha256 digest, a bcrypt digest, or legacy
// plaintext. The presented plaintext key itself is never persisted once
// a row has been migrated to a digest.
type Credential struct {
	// ID is the unique identifier for the credential.
	ID string `json:"id"`

	// TenantID scopes the credential to a tenant.
	TenantID string `json:"tenant_id"`

	// Secret is the persisted value, digest or plaintext.
	Secret string `json:"secret"`

	// Active indicates whether the credential is enabled.
	Active bool `json:"active"`

	// ExpiresAt is when the credential expires. Nil means no expiry.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	// Remaining is the remaining usage allowance. Negative means
	// unlimited.
	Remaining int64 `json:"remaining"`

	// RateLimit is the per-credential request rate limit, if any.
	RateLimit *RateLimit `json:"rate_limit,omitempty"`
}

// RateLimit contains rate limit information for a credential.
type RateLimit struct {
	// RequestsPerSecond is the sustained rate limit.
	RequestsPerSecond int `json:"requests_per_second"`

	// Burst is the burst size.
	Burst int `json:"burst"`
}

// IsExpired returns true if the credential has expired.
func (c *Credential) IsExpired() bool {
	if c.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*c.ExpiresAt)
}

// Store provides credential lookup and atomic allowance accounting.
type Store interface {
	// Fetch looks up a credential by either storage form of the
	// presented secret. Returns ErrCredentialNotFound when no row
	// matches and ErrStoreUnavailable on transient failures.
	Fetch(ctx context.Context, plaintext, digest string) (*Credential, error)

	// DecrementAllowance atomically consumes allowance for the
	// credential. Returns one of ErrCredentialInvalid,
	// ErrCredentialInactive, ErrCredentialExpired,
	// ErrInsufficientBalance, or ErrStoreUnavailable.
	DecrementAllowance(ctx context.Context, id string, amount int64) error

	// Close releases store resources.
	Close() error
}

// MemoryStore is an in-memory implementation of the Store interface.
type MemoryStore struct {
	bySecret map[string]*Credential
	byID     map[string]*Credential
	mu       sync.Mutex
}

// NewMemoryStore creates a new in-memory credential store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bySecret: make(map[string]*Credential),
		byID:     make(map[string]*Credential),
	}
}

// Put stores a credential keyed by its persisted secret form.
func (s *MemoryStore) Put(cred *Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *cred
	s.bySecret[cred.Secret] = &copied
	s.byID[cred.ID] = &copied
}

// Fetch looks up a credential by digest first, then plaintext.
func (s *MemoryStore) Fetch(ctx context.Context, plaintext, digest string) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.bySecret[digest]
	if !ok {
		cred, ok = s.bySecret[plaintext]
	}
	if !ok {
		return nil, ErrCredentialNotFound
	}

	copied := *cred
	return &copied, nil
}

// DecrementAllowance atomically consumes allowance for the credential.
func (s *MemoryStore) DecrementAllowance(ctx context.Context, id string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.byID[id]
	if !ok {
		return ErrCredentialInvalid
	}
	if !cred.Active {
		return ErrCredentialInactive
	}
	if cred.IsExpired() {
		return ErrCredentialExpired
	}
	if cred.Remaining < 0 {
		// Unlimited allowance.
		return nil
	}
	if cred.Remaining < amount {
		return ErrInsufficientBalance
	}
	cred.Remaining -= amount
	return nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
