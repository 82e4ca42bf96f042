package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:"

// RedisLimiter counts requests in a Redis sorted set per key, scored by
// millisecond timestamp, so the window slides smoothly across instances.
type RedisLimiter struct {
	client *redis.Client
	log    *slog.Logger
}

var _ Limiter = (*RedisLimiter)(nil)

func NewRedisLimiter(client *redis.Client, log *slog.Logger) Limiter {
	if log == nil {
		log = slog.Default()
	}

	return &RedisLimiter{client: client, log: log}
}

func (l *RedisLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	if l.client == nil {
		return nil, errors.New("rate limiter has no redis client")
	}

	now := time.Now()
	start := now.Add(-window)

	if limit <= 0 {
		return &Result{Allowed: false, ResetAt: now.Add(window)}, nil
	}

	cutoff := float64(start.UnixNano()) / float64(time.Millisecond)
	score := float64(now.UnixNano()) / float64(time.Millisecond)

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, keyPrefix+key, "-inf", fmt.Sprintf("(%f", cutoff))
	pipe.ZAdd(ctx, keyPrefix+key, redis.Z{Score: score, Member: uuid.NewString()})
	countCmd := pipe.ZCard(ctx, keyPrefix+key)
	pipe.Expire(ctx, keyPrefix+key, window*2)

	if _, err := pipe.Exec(ctx); err != nil {
		l.log.Error("rate limit pipeline failed", slog.String("key", key), slog.Any("error", err))
		return nil, err
	}

	count, err := countCmd.Result()
	if err != nil {
		l.log.Error("rate limit count read failed", slog.String("key", key), slog.Any("error", err))
		return nil, err
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return &Result{
		Allowed:   count <= int64(limit),
		Remaining: remaining,
		ResetAt:   start.Add(window),
	}, nil
}
