package usercache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playguard/playguard/internal/domain"
	appredis "github.com/playguard/playguard/pkg/redis"
)

func setupCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := &appredis.Client{Client: goredis.NewClient(&goredis.Options{Addr: mr.Addr()})}
	t.Cleanup(func() { _ = client.Close() })

	return NewCache(client), mr
}

func TestCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	cache, _ := setupCache(t)

	user := &domain.User{
		ID:            "user-1",
		WalletAddress: "wallet-1",
		IsVerified:    true,
		IsActive:      true,
		CreatedAt:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	require.NoError(t, cache.Set(ctx, user.ID, user, 0))

	cached, err := cache.Get(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, "wallet-1", cached.WalletAddress)
	assert.True(t, cached.IsVerified)
}

func TestCache_MissReturnsNil(t *testing.T) {
	cache, _ := setupCache(t)

	cached, err := cache.Get(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	cache, _ := setupCache(t)

	user := &domain.User{ID: "user-1", IsActive: true}
	require.NoError(t, cache.Set(ctx, user.ID, user, 0))
	require.NoError(t, cache.Invalidate(ctx, "user-1"))

	cached, err := cache.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestCache_EntriesExpire(t *testing.T) {
	ctx := context.Background()
	cache, mr := setupCache(t)

	user := &domain.User{ID: "user-1"}
	require.NoError(t, cache.Set(ctx, user.ID, user, time.Minute))

	mr.FastForward(2 * time.Minute)

	cached, err := cache.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestCache_NilReceiverIsSafe(t *testing.T) {
	var cache *Cache

	cached, err := cache.Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Nil(t, cached)

	require.NoError(t, cache.Set(context.Background(), "user-1", &domain.User{ID: "user-1"}, 0))
	require.NoError(t, cache.Invalidate(context.Background(), "user-1"))
}
