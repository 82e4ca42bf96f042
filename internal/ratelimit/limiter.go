package ratelimit

import (
	"context"
	"errors"
	"time"
)

// Result is the outcome of a single limit check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter throttles request keys over sliding windows. Keys combine a
// route rule name with the caller identity (user id or client ip).
type Limiter interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

// ErrLimitExceeded is returned alongside a denying Result.
var ErrLimitExceeded = errors.New("rate limit exceeded")
