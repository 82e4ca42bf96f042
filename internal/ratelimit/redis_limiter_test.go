package ratelimit

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limiterClient(t *testing.T) *redis.Client {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRedisLimiter_Check(t *testing.T) {
	limiter := NewRedisLimiter(limiterClient(t), testLogger())
	ctx := context.Background()

	t.Run("allows under the limit and counts down remaining", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			res, err := limiter.Check(ctx, "user:abc:transaction", 5, time.Minute)
			require.NoError(t, err)
			assert.True(t, res.Allowed)
			assert.Equal(t, 5-(i+1), res.Remaining)
		}
	})

	t.Run("denies once the window fills", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			res, err := limiter.Check(ctx, "user:abc:session_start", 2, time.Minute)
			require.NoError(t, err)
			assert.True(t, res.Allowed)
		}

		res, err := limiter.Check(ctx, "user:abc:session_start", 2, time.Minute)
		require.NoError(t, err)
		assert.False(t, res.Allowed)
		assert.Zero(t, res.Remaining)
	})

	t.Run("zero limit always denies", func(t *testing.T) {
		res, err := limiter.Check(ctx, "user:abc:blocked", 0, time.Minute)
		require.NoError(t, err)
		assert.False(t, res.Allowed)
	})
}

func TestRedisLimiter_WindowSlides(t *testing.T) {
	limiter := NewRedisLimiter(limiterClient(t), testLogger())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := limiter.Check(ctx, "ip:10.0.0.1:global", 2, time.Second)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}

	time.Sleep(1100 * time.Millisecond)

	res, err := limiter.Check(ctx, "ip:10.0.0.1:global", 2, time.Second)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestMemoryLimiter_FallsBackWhenRedisDown(t *testing.T) {
	mem := NewMemoryLimiter(testLogger())
	broken := NewRedisLimiter(nil, testLogger())
	limiter := NewAdaptiveLimiter(broken, mem, testLogger())
	ctx := context.Background()

	// Fallback halves the limit, so 4 becomes 2.
	for i := 0; i < 2; i++ {
		res, err := limiter.Check(ctx, "user:xyz:transaction", 4, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}

	res, err := limiter.Check(ctx, "user:xyz:transaction", 4, time.Minute)
	assert.ErrorIs(t, err, ErrLimitExceeded)
	assert.False(t, res.Allowed)
}
