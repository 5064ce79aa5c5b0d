package policy

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()

	mr := miniredis.RunT(t)
	store, err := NewRedisStore(RedisConfig{Address: mr.Addr(), Prefix: "test:policy:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNewRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := NewRedisStore(RedisConfig{Address: mr.Addr()}, nil)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	assert.Equal(t, "authgate:policy:", store.prefix)
	require.NoError(t, store.Ping(context.Background()))
}

func TestNewRedisStoreRequiresAddress(t *testing.T) {
	t.Parallel()

	_, err := NewRedisStore(RedisConfig{}, nil)
	assert.Error(t, err)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestRedisStore(t)

	// Absent key: nil list.
	list, err := store.AllowList(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Nil(t, list)

	// Populated list.
	require.NoError(t, store.Set(ctx, "tenant-1", AllowList{"10.0.0.0/8", "::1"}))
	list, err = store.AllowList(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, AllowList{"10.0.0.0/8", "::1"}, list)

	// Empty list stays empty, not nil.
	require.NoError(t, store.Set(ctx, "tenant-2", AllowList{}))
	list, err = store.AllowList(ctx, "tenant-2")
	require.NoError(t, err)
	require.NotNil(t, list)
	assert.Empty(t, list)

	// Nil deletes.
	require.NoError(t, store.Set(ctx, "tenant-1", nil))
	list, err = store.AllowList(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Nil(t, list)
}

func TestRedisStoreCorruptPayloadDeniesAll(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(RedisConfig{Address: mr.Addr(), Prefix: "test:policy:"}, nil)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	require.NoError(t, mr.Set("test:policy:tenant-1", "{not json"))

	list, err := store.AllowList(ctx, "tenant-1")
	require.NoError(t, err)
	require.NotNil(t, list, "corrupt policy must deny, not allow")
	assert.Empty(t, list)
}

func TestRedisStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(RedisConfig{Address: mr.Addr()}, nil)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	mr.Close()

	_, err = store.AllowList(ctx, "tenant-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
