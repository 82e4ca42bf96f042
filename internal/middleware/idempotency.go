package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/playguard/playguard/internal/idempotency"
)

const idempotencyKeyHeader = "Idempotency-Key"

// Idempotency replays the recorded response for repeated POST requests
// carrying the same Idempotency-Key header. Requests without the header
// pass through unchanged.
func Idempotency(manager idempotency.Manager, log *slog.Logger) gin.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}

	return func(c *gin.Context) {
		if manager == nil || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		headerKey := c.GetHeader(idempotencyKeyHeader)
		if headerKey == "" {
			c.Next()
			return
		}

		key := idempotency.GenerateKey(c.FullPath(), headerKey)

		writer := &bufferingWriter{ResponseWriter: c.Writer, status: http.StatusOK}
		c.Writer = writer

		result, err := manager.Execute(c.Request.Context(), key, 24*time.Hour, func(ctx context.Context) (interface{}, error) {
			c.Next()
			return &storedResponse{
				Status: writer.status,
				Body:   writer.body.Bytes(),
			}, nil
		})
		if err != nil {
			if errors.Is(err, idempotency.ErrRequestInProgress) {
				c.AbortWithStatusJSON(http.StatusConflict, gin.H{
					"error": "a request with this idempotency key is already in progress",
				})
				return
			}

			log.Error("idempotent request failed", slog.String("key", key), slog.Any("error", err))
			c.Abort()
			return
		}

		if !result.FromCache {
			return
		}

		// the stored response comes back as generic JSON, re-decode it
		raw, marshalErr := json.Marshal(result.Response)
		var stored storedResponse
		if marshalErr != nil || json.Unmarshal(raw, &stored) != nil || stored.Status == 0 {
			log.Error("failed to replay idempotent response", slog.String("key", key))
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		c.Data(stored.Status, "application/json", stored.Body)
		c.Abort()
	}
}

type storedResponse struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

type bufferingWriter struct {
	gin.ResponseWriter
	body   bytes.Buffer
	status int
}

func (w *bufferingWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *bufferingWriter) Write(data []byte) (int, error) {
	w.body.Write(data)
	return w.ResponseWriter.Write(data)
}
