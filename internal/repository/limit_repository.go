package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/playguard/playguard/internal/domain"
)

// LimitRepository defines persistence operations for spending limits.
type LimitRepository interface {
	Find(ctx context.Context, userID string, kind domain.LimitKind) (*domain.Limit, error)
	Upsert(ctx context.Context, limit *domain.Limit) error
	Delete(ctx context.Context, userID string, kind domain.LimitKind) error
}

type limitRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewLimitRepository creates a new SQL-backed limit repository.
func NewLimitRepository(db *sql.DB, log *slog.Logger) LimitRepository {
	return &limitRepository{
		db:  db,
		log: log,
	}
}

// Find retrieves the limit for the given user and kind.
func (r *limitRepository) Find(ctx context.Context, userID string, kind domain.LimitKind) (*domain.Limit, error) {
	const query = `
		SELECT user_id, kind, amount, period_days, updated_at
		FROM limits
		WHERE user_id = $1 AND kind = $2
	`

	row := r.db.QueryRowContext(ctx, query, userID, kind)

	var limit domain.Limit
	if err := row.Scan(
		&limit.UserID,
		&limit.Kind,
		&limit.Amount,
		&limit.PeriodDays,
		&limit.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}

		if r.log != nil {
			r.log.Error("failed to fetch limit", slog.String("user_id", userID), slog.Any("error", err))
		}
		return nil, fmt.Errorf("select limit: %w", err)
	}

	return &limit, nil
}

// Upsert creates the limit or replaces amount and period for an existing
// (user, kind) pair.
func (r *limitRepository) Upsert(ctx context.Context, limit *domain.Limit) error {
	const query = `
		INSERT INTO limits (user_id, kind, amount, period_days, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, kind)
		DO UPDATE SET amount = EXCLUDED.amount, period_days = EXCLUDED.period_days, updated_at = EXCLUDED.updated_at
	`

	if _, err := r.db.ExecContext(
		ctx,
		query,
		limit.UserID,
		limit.Kind,
		limit.Amount,
		limit.PeriodDays,
		limit.UpdatedAt,
	); err != nil {
		if r.log != nil {
			r.log.Error("failed to upsert limit", slog.String("user_id", limit.UserID), slog.Any("error", err))
		}
		return fmt.Errorf("upsert limit: %w", err)
	}

	return nil
}

// Delete removes the limit for the given user and kind.
func (r *limitRepository) Delete(ctx context.Context, userID string, kind domain.LimitKind) error {
	const query = `
		DELETE FROM limits
		WHERE user_id = $1 AND kind = $2
	`

	result, err := r.db.ExecContext(ctx, query, userID, kind)
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to delete limit", slog.String("user_id", userID), slog.Any("error", err))
		}
		return fmt.Errorf("delete limit: %w", err)
	}

	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}
