package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/playguard/playguard/pkg/metrics"
)

// Metrics measures execution time and status for API handlers, reporting
// them to Prometheus.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		metrics.RecordRequest(
			route,
			c.Request.Method,
			strconv.Itoa(c.Writer.Status()),
			time.Since(start),
		)
	}
}
