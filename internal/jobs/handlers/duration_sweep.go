package handlers

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/playguard/playguard/internal/repository"
	"github.com/playguard/playguard/internal/session"
)

// DurationSweepHandler walks every active session and applies the
// duration policy: reality checks on the configured cadence and forced
// termination past the maximum.
type DurationSweepHandler struct {
	sessions repository.SessionRepository
	service  *session.Service
	log      *slog.Logger
}

func NewDurationSweepHandler(sessions repository.SessionRepository, service *session.Service, log *slog.Logger) *DurationSweepHandler {
	return &DurationSweepHandler{
		sessions: sessions,
		service:  service,
		log:      log,
	}
}

func (h *DurationSweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	active, err := h.sessions.ListActive(ctx)
	if err != nil {
		if h.log != nil {
			h.log.ErrorContext(ctx, "duration sweep: failed to list active sessions", slog.Any("error", err))
		}
		return err
	}

	checked := 0
	forced := 0
	for _, sess := range active {
		result, err := h.service.CheckDuration(ctx, sess.SessionID)
		if err != nil {
			if h.log != nil {
				h.log.ErrorContext(ctx, "duration sweep: check failed",
					slog.String("session_id", sess.SessionID),
					slog.Any("error", err),
				)
			}
			continue
		}

		checked++
		if result.Exceeded {
			forced++
		}
	}

	if h.log != nil {
		h.log.InfoContext(ctx, "duration sweep completed",
			slog.Int("active", len(active)),
			slog.Int("checked", checked),
			slog.Int("forced_end", forced),
		)
	}

	return nil
}
