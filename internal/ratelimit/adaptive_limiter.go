package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	checksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ratelimit_checks_total",
		Help: "Rate limit checks by backend and outcome",
	}, []string{"backend", "result"})

	rejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ratelimit_rejected_total",
		Help: "Requests rejected by the rate limiter per backend",
	}, []string{"backend"})

	redisErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ratelimit_redis_errors_total",
		Help: "Redis failures observed by the adaptive limiter",
	})
)

func init() {
	prometheus.MustRegister(checksTotal, rejectedTotal, redisErrorsTotal)
}

// AdaptiveLimiter prefers the Redis backend and degrades to the in-memory
// one when Redis is unreachable. The fallback halves the limit: memory
// counts are per-instance, so a full allowance on every instance would
// multiply the effective limit.
type AdaptiveLimiter struct {
	primary  Limiter
	fallback Limiter
	log      *slog.Logger
}

func NewAdaptiveLimiter(primary, fallback Limiter, log *slog.Logger) Limiter {
	if log == nil {
		log = slog.Default()
	}

	return &AdaptiveLimiter{primary: primary, fallback: fallback, log: log}
}

func (a *AdaptiveLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	res, err := a.primary.Check(ctx, key, limit, window)
	if err == nil {
		return a.record("redis", res), a.deny(res)
	}

	redisErrorsTotal.Inc()
	a.log.Warn("redis limiter unavailable, using in-memory fallback", "key", key, "error", err)

	reduced := limit / 2
	if reduced <= 0 {
		reduced = 1
	}

	res, err = a.fallback.Check(ctx, key, reduced, window)
	if err != nil && !errors.Is(err, ErrLimitExceeded) {
		return res, err
	}

	return a.record("fallback", res), a.deny(res)
}

func (a *AdaptiveLimiter) record(backend string, res *Result) *Result {
	outcome := "rejected"
	if res.Allowed {
		outcome = "allowed"
	}
	checksTotal.WithLabelValues(backend, outcome).Inc()
	if !res.Allowed {
		rejectedTotal.WithLabelValues(backend).Inc()
	}
	return res
}

func (a *AdaptiveLimiter) deny(res *Result) error {
	if !res.Allowed {
		return ErrLimitExceeded
	}
	return nil
}
