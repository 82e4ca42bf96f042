package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/playguard/playguard/internal/domain"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	SetSelfExcluded(ctx context.Context, id string, excluded bool) error
}

type userRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewUserRepository creates a new SQL-backed user repository.
func NewUserRepository(db *sql.DB, log *slog.Logger) UserRepository {
	return &userRepository{
		db:  db,
		log: log,
	}
}

// FindByID retrieves a user from the database by their identifier.
func (r *userRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `
		SELECT id, wallet_address, is_verified, is_self_excluded, is_active, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	row := r.db.QueryRowContext(ctx, query, id)

	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.WalletAddress,
		&user.IsVerified,
		&user.IsSelfExcluded,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}

		if r.log != nil {
			r.log.Error("failed to fetch user", slog.String("user_id", id), slog.Any("error", err))
		}
		return nil, fmt.Errorf("select user: %w", err)
	}

	return &user, nil
}

// Create persists a new user record in the database.
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
		INSERT INTO users (id, wallet_address, is_verified, is_self_excluded, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	if _, err := r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.WalletAddress,
		user.IsVerified,
		user.IsSelfExcluded,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	); err != nil {
		if r.log != nil {
			r.log.Error("failed to create user", slog.String("user_id", user.ID), slog.Any("error", err))
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// Update saves mutable profile fields for an existing user.
func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
		UPDATE users
		SET wallet_address = $2, is_verified = $3, is_self_excluded = $4, is_active = $5, updated_at = $6
		WHERE id = $1
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.WalletAddress,
		user.IsVerified,
		user.IsSelfExcluded,
		user.IsActive,
		user.UpdatedAt,
	)
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to update user", slog.String("user_id", user.ID), slog.Any("error", err))
		}
		return fmt.Errorf("update user: %w", err)
	}

	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// SetSelfExcluded updates the denormalized exclusion flag on the user row.
func (r *userRepository) SetSelfExcluded(ctx context.Context, id string, excluded bool) error {
	const query = `
		UPDATE users
		SET is_self_excluded = $2, updated_at = NOW()
		WHERE id = $1
	`

	if _, err := r.db.ExecContext(ctx, query, id, excluded); err != nil {
		if r.log != nil {
			r.log.Error("failed to set self-excluded flag", slog.String("user_id", id), slog.Any("error", err))
		}
		return fmt.Errorf("update self-excluded flag: %w", err)
	}

	return nil
}
