package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/playguard/playguard/internal/jobs"
	"github.com/playguard/playguard/internal/repository"
	"github.com/playguard/playguard/internal/risk"
)

// riskSweepLookback bounds which users the hourly sweep re-assesses.
const riskSweepLookback = 24 * time.Hour

// RiskSweepHandler enqueues a per-user assessment for everyone active in
// the lookback window. Keeping the fan-out in the queue lets a slow
// assessment retry without re-running the whole sweep.
type RiskSweepHandler struct {
	sessions repository.SessionRepository
	queue    jobs.Manager
	log      *slog.Logger
}

func NewRiskSweepHandler(sessions repository.SessionRepository, queue jobs.Manager, log *slog.Logger) *RiskSweepHandler {
	return &RiskSweepHandler{
		sessions: sessions,
		queue:    queue,
		log:      log,
	}
}

func (h *RiskSweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	userIDs, err := h.sessions.UsersWithSessionsSince(ctx, time.Now().UTC().Add(-riskSweepLookback))
	if err != nil {
		if h.log != nil {
			h.log.ErrorContext(ctx, "risk sweep: failed to list active users", slog.Any("error", err))
		}
		return err
	}

	enqueued := 0
	for _, userID := range userIDs {
		task, err := jobs.NewRiskAssessTask(userID)
		if err != nil {
			continue
		}
		if _, err := h.queue.Enqueue(ctx, task); err != nil {
			if h.log != nil {
				h.log.ErrorContext(ctx, "risk sweep: enqueue failed",
					slog.String("user_id", userID),
					slog.Any("error", err),
				)
			}
			continue
		}
		enqueued++
	}

	if h.log != nil {
		h.log.InfoContext(ctx, "risk sweep completed",
			slog.Int("users", len(userIDs)),
			slog.Int("enqueued", enqueued),
		)
	}

	return nil
}

// RiskAssessHandler runs a full assessment for one user.
type RiskAssessHandler struct {
	engine *risk.Engine
	log    *slog.Logger
}

func NewRiskAssessHandler(engine *risk.Engine, log *slog.Logger) *RiskAssessHandler {
	return &RiskAssessHandler{
		engine: engine,
		log:    log,
	}
}

func (h *RiskAssessHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload jobs.RiskAssessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		if h.log != nil {
			h.log.ErrorContext(ctx, "risk assess: failed to decode payload", slog.Any("error", err))
		}
		return err
	}

	assessment, err := h.engine.CalculateRiskScore(ctx, payload.UserID)
	if err != nil {
		if h.log != nil {
			h.log.ErrorContext(ctx, "risk assess: assessment failed",
				slog.String("user_id", payload.UserID),
				slog.Any("error", err),
			)
		}
		return err
	}

	if h.log != nil {
		h.log.InfoContext(ctx, "risk assessment stored",
			slog.String("user_id", payload.UserID),
			slog.Float64("score", assessment.Score),
			slog.String("level", string(assessment.Level)),
		)
	}

	return nil
}
