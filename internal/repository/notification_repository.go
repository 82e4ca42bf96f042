package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/playguard/playguard/internal/domain"
)

// NotificationRepository defines persistence operations for notifications.
type NotificationRepository interface {
	Create(ctx context.Context, notification *domain.Notification) error
	UpdateStatus(ctx context.Context, notificationID string, status domain.NotificationStatus, sentAt *time.Time) error
	FindPending(ctx context.Context, limit int) ([]*domain.Notification, error)
	DeleteSentBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type notificationRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewNotificationRepository creates a new SQL-backed notification repository.
func NewNotificationRepository(db *sql.DB, log *slog.Logger) NotificationRepository {
	return &notificationRepository{
		db:  db,
		log: log,
	}
}

// Create persists a new notification row.
func (r *notificationRepository) Create(ctx context.Context, notification *domain.Notification) error {
	const query = `
		INSERT INTO notifications (notification_id, user_id, type, title, message, metadata, priority, status, created_at, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	metadata, err := json.Marshal(notification.Metadata)
	if err != nil {
		return fmt.Errorf("encode notification metadata: %w", err)
	}

	if _, err := r.db.ExecContext(
		ctx,
		query,
		notification.NotificationID,
		notification.UserID,
		notification.Type,
		notification.Title,
		notification.Message,
		metadata,
		notification.Priority,
		notification.Status,
		notification.CreatedAt,
		notification.SentAt,
	); err != nil {
		if r.log != nil {
			r.log.Error("failed to create notification", slog.String("user_id", notification.UserID), slog.Any("error", err))
		}
		return fmt.Errorf("insert notification: %w", err)
	}

	return nil
}

// UpdateStatus records the delivery outcome for a notification.
func (r *notificationRepository) UpdateStatus(ctx context.Context, notificationID string, status domain.NotificationStatus, sentAt *time.Time) error {
	const query = `
		UPDATE notifications
		SET status = $2, sent_at = $3
		WHERE notification_id = $1
	`

	if _, err := r.db.ExecContext(ctx, query, notificationID, status, sentAt); err != nil {
		if r.log != nil {
			r.log.Error("failed to update notification status", slog.String("notification_id", notificationID), slog.Any("error", err))
		}
		return fmt.Errorf("update notification status: %w", err)
	}

	return nil
}

// FindPending returns undelivered notifications, oldest first.
func (r *notificationRepository) FindPending(ctx context.Context, limit int) ([]*domain.Notification, error) {
	const query = `
		SELECT notification_id, user_id, type, title, message, metadata, priority, status, created_at, sent_at
		FROM notifications
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to query pending notifications", slog.Any("error", err))
		}
		return nil, fmt.Errorf("select pending notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*domain.Notification
	for rows.Next() {
		var (
			notification domain.Notification
			metadata     []byte
		)
		if err := rows.Scan(
			&notification.NotificationID,
			&notification.UserID,
			&notification.Type,
			&notification.Title,
			&notification.Message,
			&metadata,
			&notification.Priority,
			&notification.Status,
			&notification.CreatedAt,
			&notification.SentAt,
		); err != nil {
			return nil, fmt.Errorf("scan notification row: %w", err)
		}

		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &notification.Metadata); err != nil {
				return nil, fmt.Errorf("decode notification metadata: %w", err)
			}
		}

		notifications = append(notifications, &notification)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notification rows: %w", err)
	}

	return notifications, nil
}

// DeleteSentBefore purges delivered notifications created before the
// cutoff. Pending and failed rows are kept for retry and review.
func (r *notificationRepository) DeleteSentBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `
		DELETE FROM notifications
		WHERE status = 'sent' AND created_at < $1
	`

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to purge notifications", slog.Any("error", err))
		}
		return 0, fmt.Errorf("delete sent notifications: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}

	return affected, nil
}
