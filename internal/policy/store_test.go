package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreAllowList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()

	// Unknown tenant: nil list, allow-all semantics.
	list, err := store.AllowList(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Nil(t, list)

	// Deny-all policy survives the nil/empty distinction.
	store.Set("tenant-1", AllowList{})
	list, err = store.AllowList(ctx, "tenant-1")
	require.NoError(t, err)
	require.NotNil(t, list)
	assert.Empty(t, list)

	// Populated list round-trips.
	store.Set("tenant-1", AllowList{"10.0.0.0/8", "2001:db8::1"})
	list, err = store.AllowList(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, AllowList{"10.0.0.0/8", "2001:db8::1"}, list)

	// Setting nil removes the policy.
	store.Set("tenant-1", nil)
	list, err = store.AllowList(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Nil(t, list)
}

func TestMemoryStoreReturnsCopy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	store.Set("tenant-1", AllowList{"10.0.0.0/8"})

	list, err := store.AllowList(ctx, "tenant-1")
	require.NoError(t, err)
	list[0] = "0.0.0.0/0"

	again, err := store.AllowList(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, AllowList{"10.0.0.0/8"}, again)
}
