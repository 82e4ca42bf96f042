package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/playguard/playguard/internal/domain"
)

// SelfExclusionRepository defines persistence operations for exclusion
// intervals. Rows are never deleted; expired and removed intervals remain
// as history.
type SelfExclusionRepository interface {
	FindUnexpired(ctx context.Context, userID string, now time.Time) (*domain.SelfExclusion, error)
	FindByUser(ctx context.Context, userID string) ([]*domain.SelfExclusion, error)
	Create(ctx context.Context, exclusion *domain.SelfExclusion) error
	MarkRemoved(ctx context.Context, userID string, now time.Time) (int64, error)
}

type selfExclusionRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewSelfExclusionRepository creates a new SQL-backed exclusion repository.
func NewSelfExclusionRepository(db *sql.DB, log *slog.Logger) SelfExclusionRepository {
	return &selfExclusionRepository{
		db:  db,
		log: log,
	}
}

// FindUnexpired returns the non-removed exclusion whose half-open interval
// [start_time, end_time) contains now, or sql.ErrNoRows.
func (r *selfExclusionRepository) FindUnexpired(ctx context.Context, userID string, now time.Time) (*domain.SelfExclusion, error) {
	const query = `
		SELECT id, user_id, start_time, end_time, reason, removed, created_at
		FROM self_exclusions
		WHERE user_id = $1 AND removed = FALSE AND start_time <= $2 AND end_time > $2
		ORDER BY end_time DESC
		LIMIT 1
	`

	row := r.db.QueryRowContext(ctx, query, userID, now)

	var exclusion domain.SelfExclusion
	if err := row.Scan(
		&exclusion.ID,
		&exclusion.UserID,
		&exclusion.StartTime,
		&exclusion.EndTime,
		&exclusion.Reason,
		&exclusion.Removed,
		&exclusion.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}

		if r.log != nil {
			r.log.Error("failed to fetch exclusion", slog.String("user_id", userID), slog.Any("error", err))
		}
		return nil, fmt.Errorf("select unexpired exclusion: %w", err)
	}

	return &exclusion, nil
}

// FindByUser returns the full exclusion history for a user, most recent first.
func (r *selfExclusionRepository) FindByUser(ctx context.Context, userID string) ([]*domain.SelfExclusion, error) {
	const query = `
		SELECT id, user_id, start_time, end_time, reason, removed, created_at
		FROM self_exclusions
		WHERE user_id = $1
		ORDER BY start_time DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to query exclusions", slog.String("user_id", userID), slog.Any("error", err))
		}
		return nil, fmt.Errorf("select exclusions: %w", err)
	}
	defer rows.Close()

	var exclusions []*domain.SelfExclusion
	for rows.Next() {
		var exclusion domain.SelfExclusion
		if err := rows.Scan(
			&exclusion.ID,
			&exclusion.UserID,
			&exclusion.StartTime,
			&exclusion.EndTime,
			&exclusion.Reason,
			&exclusion.Removed,
			&exclusion.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan exclusion row: %w", err)
		}
		exclusions = append(exclusions, &exclusion)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exclusion rows: %w", err)
	}

	return exclusions, nil
}

// Create persists a new exclusion interval.
func (r *selfExclusionRepository) Create(ctx context.Context, exclusion *domain.SelfExclusion) error {
	const query = `
		INSERT INTO self_exclusions (id, user_id, start_time, end_time, reason, removed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	if _, err := r.db.ExecContext(
		ctx,
		query,
		exclusion.ID,
		exclusion.UserID,
		exclusion.StartTime,
		exclusion.EndTime,
		exclusion.Reason,
		exclusion.Removed,
		exclusion.CreatedAt,
	); err != nil {
		if r.log != nil {
			r.log.Error("failed to create exclusion", slog.String("user_id", exclusion.UserID), slog.Any("error", err))
		}
		return fmt.Errorf("insert exclusion: %w", err)
	}

	return nil
}

// MarkRemoved deactivates every unexpired exclusion for the user and
// returns how many rows were affected.
func (r *selfExclusionRepository) MarkRemoved(ctx context.Context, userID string, now time.Time) (int64, error) {
	const query = `
		UPDATE self_exclusions
		SET removed = TRUE
		WHERE user_id = $1 AND removed = FALSE AND end_time > $2
	`

	result, err := r.db.ExecContext(ctx, query, userID, now)
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to remove exclusion", slog.String("user_id", userID), slog.Any("error", err))
		}
		return 0, fmt.Errorf("remove exclusion: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("remove exclusion rows affected: %w", err)
	}

	return affected, nil
}
