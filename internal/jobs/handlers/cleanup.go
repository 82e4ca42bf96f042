package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/playguard/playguard/internal/jobs"
	"github.com/playguard/playguard/internal/repository"
)

// CleanupHandler purges delivered notifications past the retention
// cutoff. Sessions, transactions, exclusions and assessments are kept
// indefinitely for compliance review.
type CleanupHandler struct {
	notifications repository.NotificationRepository
	log           *slog.Logger
}

func NewCleanupHandler(notifications repository.NotificationRepository, log *slog.Logger) *CleanupHandler {
	return &CleanupHandler{
		notifications: notifications,
		log:           log,
	}
}

func (h *CleanupHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload jobs.CleanupDataPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		if h.log != nil {
			h.log.ErrorContext(ctx, "cleanup: failed to decode payload", slog.Any("error", err))
		}
		return err
	}

	cutoff := time.Now().UTC().Add(-payload.OlderThan)
	purged, err := h.notifications.DeleteSentBefore(ctx, cutoff)
	if err != nil {
		if h.log != nil {
			h.log.ErrorContext(ctx, "cleanup: purge failed", slog.Any("error", err))
		}
		return err
	}

	if h.log != nil {
		h.log.InfoContext(ctx, "cleanup completed",
			slog.Time("cutoff", cutoff),
			slog.Int64("purged_notifications", purged),
		)
	}

	return nil
}
