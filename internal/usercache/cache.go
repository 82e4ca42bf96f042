package usercache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/playguard/playguard/internal/domain"
)

const cacheTTL = 5 * time.Minute

// KV is the key-value surface the cache needs. Both the plain and the
// metrics-instrumented Redis client wrappers satisfy it.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Cache provides Redis-backed caching for user profiles.
type Cache struct {
	kv KV
}

// NewCache constructs a user cache backed by the provided store.
func NewCache(kv KV) *Cache {
	return &Cache{kv: kv}
}

// Get fetches a cached user profile if it exists.
func (c *Cache) Get(ctx context.Context, userID string) (*domain.User, error) {
	if c == nil || c.kv == nil {
		return nil, nil
	}

	data, err := c.kv.Get(ctx, cacheKey(userID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cached user: %w", err)
	}

	var user domain.User
	if err := json.Unmarshal([]byte(data), &user); err != nil {
		return nil, fmt.Errorf("decode cached user: %w", err)
	}

	return &user, nil
}

// Set stores the user profile in cache.
func (c *Cache) Set(ctx context.Context, userID string, user *domain.User, ttl time.Duration) error {
	if c == nil || c.kv == nil || user == nil {
		return nil
	}

	if ttl <= 0 {
		ttl = cacheTTL
	}

	payload, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user for cache: %w", err)
	}

	if err := c.kv.Set(ctx, cacheKey(userID), payload, ttl); err != nil {
		return fmt.Errorf("set cached user: %w", err)
	}

	return nil
}

// Invalidate removes the cached profile entry if it exists.
func (c *Cache) Invalidate(ctx context.Context, userID string) error {
	if c == nil || c.kv == nil {
		return nil
	}

	if err := c.kv.Delete(ctx, cacheKey(userID)); err != nil {
		return fmt.Errorf("delete cached user: %w", err)
	}

	return nil
}

func cacheKey(userID string) string {
	return fmt.Sprintf("user:%s", userID)
}
