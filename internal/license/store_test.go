package license

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreFetchByEitherForm(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()

	// A migrated row persisted as a digest.
	store.Put(&Credential{
		ID:        "cred-digest",
		TenantID:  "tenant-1",
		Secret:    Hash("secret-a"),
		Active:    true,
		Remaining: -1,
	})

	// A legacy row persisted as plaintext.
	store.Put(&Credential{
		ID:        "cred-plain",
		TenantID:  "tenant-2",
		Secret:    "secret-b",
		Active:    true,
		Remaining: -1,
	})

	cred, err := fetchByForms(ctx, store, "secret-a")
	require.NoError(t, err)
	assert.Equal(t, "cred-digest", cred.ID)

	cred, err = fetchByForms(ctx, store, "secret-b")
	require.NoError(t, err)
	assert.Equal(t, "cred-plain", cred.ID)

	_, err = fetchByForms(ctx, store, "secret-c")
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestMemoryStoreFetchReturnsCopy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	store.Put(&Credential{ID: "cred-1", Secret: "s", Active: true, Remaining: 5})

	cred, err := store.Fetch(ctx, "s", Hash("s"))
	require.NoError(t, err)
	cred.Remaining = 0
	cred.Active = false

	again, err := store.Fetch(ctx, "s", Hash("s"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), again.Remaining)
	assert.True(t, again.Active)
}

func TestMemoryStoreDecrementAllowance(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	expired := time.Now().Add(-time.Hour)

	tests := []struct {
		name     string
		cred     *Credential
		id       string
		amount   int64
		expected error
	}{
		{
			name:     "unknown credential",
			cred:     &Credential{ID: "cred-1", Secret: "s", Active: true, Remaining: 10},
			id:       "missing",
			amount:   1,
			expected: ErrCredentialInvalid,
		},
		{
			name:     "inactive credential",
			cred:     &Credential{ID: "cred-1", Secret: "s", Active: false, Remaining: 10},
			id:       "cred-1",
			amount:   1,
			expected: ErrCredentialInactive,
		},
		{
			name:     "expired credential",
			cred:     &Credential{ID: "cred-1", Secret: "s", Active: true, ExpiresAt: &expired, Remaining: 10},
			id:       "cred-1",
			amount:   1,
			expected: ErrCredentialExpired,
		},
		{
			name:     "insufficient balance",
			cred:     &Credential{ID: "cred-1", Secret: "s", Active: true, Remaining: 3},
			id:       "cred-1",
			amount:   5,
			expected: ErrInsufficientBalance,
		},
		{
			name:     "sufficient balance",
			cred:     &Credential{ID: "cred-1", Secret: "s", Active: true, Remaining: 5},
			id:       "cred-1",
			amount:   5,
			expected: nil,
		},
		{
			name:     "unlimited allowance",
			cred:     &Credential{ID: "cred-1", Secret: "s", Active: true, Remaining: -1},
			id:       "cred-1",
			amount:   1000,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := NewMemoryStore()
			store.Put(tt.cred)

			err := store.DecrementAllowance(ctx, tt.id, tt.amount)
			if tt.expected == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.expected)
			}
		})
	}
}

func TestMemoryStoreDecrementDrainsToZero(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	store.Put(&Credential{ID: "cred-1", Secret: "s", Active: true, Remaining: 2})

	require.NoError(t, store.DecrementAllowance(ctx, "cred-1", 1))
	require.NoError(t, store.DecrementAllowance(ctx, "cred-1", 1))
	assert.ErrorIs(t, store.DecrementAllowance(ctx, "cred-1", 1), ErrInsufficientBalance)

	cred, err := store.Fetch(ctx, "s", Hash("s"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), cred.Remaining)
}

func TestCredentialIsExpired(t *testing.T) {
	t.Parallel()

	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Minute)

	assert.False(t, (&Credential{}).IsExpired())
	assert.False(t, (&Credential{ExpiresAt: &future}).IsExpired())
	assert.True(t, (&Credential{ExpiresAt: &past}).IsExpired())
}
