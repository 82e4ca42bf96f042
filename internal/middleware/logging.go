// Package middleware provides gin middleware for the API server.
package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/playguard/playguard/pkg/logger"
)

const requestIDHeader = "X-Request-ID"

// Logging injects a correlation identifier into the request context and
// logs request and response details. An incoming X-Request-ID header is
// honored so identifiers survive proxy hops; otherwise a fresh one is
// minted and echoed back on the response.
func Logging(log *slog.Logger) gin.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}

	return func(c *gin.Context) {
		start := time.Now()

		correlationID := c.GetHeader(requestIDHeader)
		if correlationID == "" {
			correlationID = uuid.NewString()
		}
		c.Header(requestIDHeader, correlationID)
		c.Request = c.Request.WithContext(
			logger.WithCorrelationID(c.Request.Context(), correlationID),
		)

		c.Next()

		log.Info("handled http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("correlation_id", correlationID),
		)
	}
}

// RequestContext returns the request context carrying the correlation ID.
func RequestContext(c *gin.Context) context.Context {
	return c.Request.Context()
}
