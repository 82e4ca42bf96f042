// Package exclusion implements the self-exclusion guard that gates all
// gambling operations.
package exclusion

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/playguard/playguard/internal/audit"
	"github.com/playguard/playguard/internal/domain"
	"github.com/playguard/playguard/internal/repository"
)

// Guard answers "may this user gamble right now" and manages exclusion
// intervals. Session and limit operations consult it before any state
// change.
type Guard struct {
	exclusions repository.SelfExclusionRepository
	users      repository.UserRepository
	auditor    Auditor
	log        *slog.Logger
	now        func() time.Time
}

// Auditor records guard actions on the audit trail.
type Auditor interface {
	Log(ctx context.Context, entry audit.Entry) (string, error)
}

// NewGuard constructs the guard.
func NewGuard(exclusions repository.SelfExclusionRepository, users repository.UserRepository, auditor Auditor, log *slog.Logger) *Guard {
	if log == nil {
		log = slog.Default()
	}

	return &Guard{
		exclusions: exclusions,
		users:      users,
		auditor:    auditor,
		log:        log,
		now:        time.Now,
	}
}

// IsExcluded reports whether the user is under an unexpired exclusion at
// this instant. The interval is half-open: at exactly the end time the
// user is no longer excluded.
func (g *Guard) IsExcluded(ctx context.Context, userID string) (bool, *domain.SelfExclusion, error) {
	exclusion, err := g.exclusions.FindUnexpired(ctx, userID, g.now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil, nil
		}
		return false, nil, fmt.Errorf("look up exclusion: %w", err)
	}

	return true, exclusion, nil
}

// AddResult reports the outcome of an Add call.
type AddResult struct {
	OK          bool                  `json:"ok"`
	Message     string                `json:"message"`
	Exclusion   *domain.SelfExclusion `json:"exclusion,omitempty"`
	ExistingEnd *time.Time            `json:"existing_end,omitempty"`
}

// Add creates a new exclusion interval of durationDays starting now. If an
// unexpired interval already exists, no second interval is created and the
// result carries the existing end time.
func (g *Guard) Add(ctx context.Context, userID string, durationDays int, reason string) (*AddResult, error) {
	if durationDays <= 0 {
		return nil, fmt.Errorf("exclusion duration must be positive, got %d", durationDays)
	}

	now := g.now().UTC()

	existing, err := g.exclusions.FindUnexpired(ctx, userID, now)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("look up existing exclusion: %w", err)
	}
	if existing != nil {
		end := existing.EndTime
		g.audit(ctx, "self_exclusion_add", userID, audit.ResultRejected, "exclusion already active", nil)
		return &AddResult{
			OK:          false,
			Message:     fmt.Sprintf("An exclusion is already active until %s", end.Format(time.RFC3339)),
			ExistingEnd: &end,
		}, nil
	}

	exclusion := &domain.SelfExclusion{
		ID:        uuid.NewString(),
		UserID:    userID,
		StartTime: now,
		EndTime:   now.AddDate(0, 0, durationDays),
		Reason:    reason,
		CreatedAt: now,
	}

	if err := g.exclusions.Create(ctx, exclusion); err != nil {
		return nil, fmt.Errorf("create exclusion: %w", err)
	}

	if err := g.users.SetSelfExcluded(ctx, userID, true); err != nil {
		// the exclusion row is authoritative; the user flag is a cache
		g.log.Warn("failed to update self-excluded flag", slog.String("user_id", userID), slog.Any("error", err))
	}

	g.audit(ctx, "self_exclusion_add", userID, audit.ResultSuccess, "", map[string]string{
		"end_time":      exclusion.EndTime.Format(time.RFC3339),
		"duration_days": fmt.Sprintf("%d", durationDays),
	})

	return &AddResult{
		OK:        true,
		Message:   fmt.Sprintf("Self-exclusion active until %s", exclusion.EndTime.Format(time.RFC3339)),
		Exclusion: exclusion,
	}, nil
}

// RemoveResult reports the outcome of a Remove call.
type RemoveResult struct {
	OK      bool   `json:"ok"`
	Removed int64  `json:"removed"`
	Message string `json:"message"`
}

// Remove is an administrative override that deactivates any unexpired
// exclusion for the user. Normal flows must never call it; exclusions
// otherwise run to their end time.
func (g *Guard) Remove(ctx context.Context, userID string) (*RemoveResult, error) {
	now := g.now().UTC()

	removed, err := g.exclusions.MarkRemoved(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("remove exclusion: %w", err)
	}

	if removed == 0 {
		g.audit(ctx, "self_exclusion_remove", userID, audit.ResultRejected, "no unexpired exclusion", nil)
		return &RemoveResult{
			OK:      false,
			Message: "No unexpired exclusion to remove",
		}, nil
	}

	if err := g.users.SetSelfExcluded(ctx, userID, false); err != nil {
		g.log.Warn("failed to update self-excluded flag", slog.String("user_id", userID), slog.Any("error", err))
	}

	g.audit(ctx, "self_exclusion_remove", userID, audit.ResultSuccess, "", map[string]string{
		"removed": fmt.Sprintf("%d", removed),
	})

	return &RemoveResult{
		OK:      true,
		Removed: removed,
		Message: "Exclusion removed by administrative override",
	}, nil
}

// History returns all exclusion intervals for the user, including expired
// and removed ones.
func (g *Guard) History(ctx context.Context, userID string) ([]*domain.SelfExclusion, error) {
	return g.exclusions.FindByUser(ctx, userID)
}

func (g *Guard) audit(ctx context.Context, action, userID, result, reason string, details map[string]string) {
	if g.auditor == nil {
		return
	}

	if _, err := g.auditor.Log(ctx, audit.Entry{
		ActionType: action,
		UserID:     userID,
		Details:    details,
		Result:     result,
		Reason:     reason,
	}); err != nil {
		g.log.Error("failed to audit guard action", slog.String("action", action), slog.Any("error", err))
	}
}
