package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/playguard/playguard/internal/ratelimit"
)

// RateLimitMiddleware enforces per-user rate limits on API requests.
type RateLimitMiddleware struct {
	limiter ratelimit.Limiter
	rules   *ratelimit.Rules
	log     *slog.Logger
}

// NewRateLimitMiddleware constructs a rate-limit middleware component.
func NewRateLimitMiddleware(limiter ratelimit.Limiter, rules *ratelimit.Rules, log *slog.Logger) *RateLimitMiddleware {
	if log == nil {
		log = slog.Default()
	}

	return &RateLimitMiddleware{
		limiter: limiter,
		rules:   rules,
		log:     log,
	}
}

// PerUser limits requests per user identifier. The user ID is taken from
// the route parameter, falling back to the client IP for routes without
// one. Limiter outages fail open.
func (m *RateLimitMiddleware) PerUser() gin.HandlerFunc {
	return m.handle("user", func() (int, time.Duration, error) {
		return m.rules.GetPerUserLimit()
	})
}

// Route limits requests on a named sensitive route, independent of the
// per-user budget.
func (m *RateLimitMiddleware) Route(route string) gin.HandlerFunc {
	return m.handle(route, func() (int, time.Duration, error) {
		return m.rules.GetRouteLimit(route)
	})
}

func (m *RateLimitMiddleware) handle(scope string, ruleFn func() (int, time.Duration, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.limiter == nil || m.rules == nil {
			c.Next()
			return
		}

		subject := c.Param("user_id")
		if subject == "" {
			subject = c.ClientIP()
		}

		if m.rules.IsWhitelisted(subject) {
			c.Next()
			return
		}

		limit, window, err := ruleFn()
		if err != nil {
			m.log.Error("failed to load rate limit rule",
				slog.String("scope", scope),
				slog.Any("error", err),
			)
			c.Next()
			return
		}

		key := fmt.Sprintf("%s:%s", scope, subject)
		result, err := m.limiter.Check(c.Request.Context(), key, limit, window)
		if err != nil && !errors.Is(err, ratelimit.ErrLimitExceeded) {
			m.log.Error("rate limiter unavailable, failing open",
				slog.String("key", key),
				slog.Any("error", err),
			)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))

		if !result.Allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":    "rate limit exceeded",
				"reset_at": result.ResetAt,
			})
			return
		}

		c.Next()
	}
}
