package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/playguard/playguard/internal/errors"
)

const (
	userLockKeyPattern = "user:session:lock:%s"
	lockTTL            = 5 * time.Second
)

// userLocker serializes session mutations per user. With a Redis client it
// takes a SetNX lock so concurrent requests across instances are ordered;
// without one it degrades to no locking (single-instance tests), leaving
// the database's partial unique index as the final guard.
type userLocker struct {
	client *redis.Client
}

func (l *userLocker) lock(ctx context.Context, userID string) error {
	if l == nil || l.client == nil {
		return nil
	}

	key := fmt.Sprintf(userLockKeyPattern, userID)

	acquired, err := l.client.SetNX(ctx, key, "locked", lockTTL).Result()
	if err != nil {
		return fmt.Errorf("acquire user lock: %w", err)
	}

	if !acquired {
		return apperrors.NewStateError(fmt.Sprintf("user %s is locked by a concurrent operation", userID))
	}

	return nil
}

func (l *userLocker) unlock(ctx context.Context, userID string) {
	if l == nil || l.client == nil {
		return
	}

	key := fmt.Sprintf(userLockKeyPattern, userID)
	_ = l.client.Del(ctx, key).Err()
}
