package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MemoryLimiter keeps per-key request timestamps in process memory. It is
// the degraded backend behind AdaptiveLimiter, not meant for multi-instance
// accuracy.
type MemoryLimiter struct {
	mu   sync.Mutex
	hits map[string][]time.Time
	log  *slog.Logger
}

var _ Limiter = (*MemoryLimiter)(nil)

func NewMemoryLimiter(log *slog.Logger) Limiter {
	if log == nil {
		log = slog.Default()
	}

	return &MemoryLimiter{hits: make(map[string][]time.Time), log: log}
}

func (m *MemoryLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	now := time.Now()
	start := now.Add(-window)

	m.mu.Lock()
	defer m.mu.Unlock()

	recent := pruneBefore(m.hits[key], start)

	allowed := len(recent) < limit
	if allowed {
		recent = append(recent, now)
	}
	m.hits[key] = recent

	remaining := limit - len(recent)
	if remaining < 0 {
		remaining = 0
	}

	res := &Result{
		Allowed:   allowed,
		Remaining: remaining,
		ResetAt:   start.Add(window),
	}

	if !allowed {
		return res, ErrLimitExceeded
	}

	return res, nil
}

// Cleanup drops keys whose newest hit is older than maxAge.
func (m *MemoryLimiter) Cleanup(maxAge time.Duration) {
	if maxAge <= 0 {
		return
	}

	cutoff := time.Now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	for key, hits := range m.hits {
		if len(hits) == 0 || hits[len(hits)-1].Before(cutoff) {
			delete(m.hits, key)
		}
	}
}

func pruneBefore(hits []time.Time, start time.Time) []time.Time {
	idx := 0
	for idx < len(hits) && hits[idx].Before(start) {
		idx++
	}

	switch {
	case idx == 0:
		return hits
	case idx >= len(hits):
		return hits[:0]
	default:
		copy(hits, hits[idx:])
		return hits[:len(hits)-idx]
	}
}
