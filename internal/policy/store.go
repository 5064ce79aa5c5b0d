package policy

import (
	"context"
	"errors"
	"sync"
)

// ErrStoreUnavailable indicates a transient failure talking to the policy
// store. It is surfaced once per call; retrying is the caller's
// responsibility.
var ErrStoreUnavailable = errors.New("policy store unavailable")

// Store provides per-tenant allow-lists. A missing tenant policy is
// reported as a nil AllowList (allow all), not an error.
type Store interface {
	// AllowList returns the tenant's allow-list, preserving the
	// nil / empty / populated distinction.
	AllowList(ctx context.Context, tenantID string) (AllowList, error)

	// Close releases store resources.
	Close() error
}

// MemoryStore is an in-memory implementation of the Store interface,
// used in tests and single-node deployments.
type MemoryStore struct {
	policies map[string]AllowList
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory policy store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		policies: make(map[string]AllowList),
	}
}

// AllowList returns the tenant's allow-list, or nil when none is set.
func (s *MemoryStore) AllowList(ctx context.Context, tenantID string) (AllowList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list, ok := s.policies[tenantID]
	if !ok {
		return nil, nil
	}
	out := make(AllowList, len(list))
	copy(out, list)
	return out, nil
}

// Set stores the tenant's allow-list. A nil list removes the policy.
func (s *MemoryStore) Set(tenantID string, list AllowList) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if list == nil {
		delete(s.policies, tenantID)
		return
	}
	stored := make(AllowList, len(list))
	copy(stored, list)
	s.policies[tenantID] = stored
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
