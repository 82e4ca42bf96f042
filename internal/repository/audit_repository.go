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

// AuditLogRepository defines persistence for the append-only audit trail.
type AuditLogRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
	FindInRange(ctx context.Context, from, to time.Time) ([]*domain.AuditLog, error)
}

type auditLogRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewAuditLogRepository creates a new SQL-backed audit log repository.
func NewAuditLogRepository(db *sql.DB, log *slog.Logger) AuditLogRepository {
	return &auditLogRepository{
		db:  db,
		log: log,
	}
}

// Create appends an audit entry.
func (r *auditLogRepository) Create(ctx context.Context, entry *domain.AuditLog) error {
	const query = `
		INSERT INTO audit_logs (log_id, timestamp, action_type, user_id, platform_id, details, result, reason, tx_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("encode audit details: %w", err)
	}

	if _, err := r.db.ExecContext(
		ctx,
		query,
		entry.LogID,
		entry.Timestamp,
		entry.ActionType,
		entry.UserID,
		entry.PlatformID,
		details,
		entry.Result,
		entry.Reason,
		entry.TxHash,
	); err != nil {
		if r.log != nil {
			r.log.Error("failed to create audit entry", slog.String("action_type", entry.ActionType), slog.Any("error", err))
		}
		return fmt.Errorf("insert audit entry: %w", err)
	}

	return nil
}

// FindInRange returns audit entries within [from, to), ordered by time.
func (r *auditLogRepository) FindInRange(ctx context.Context, from, to time.Time) ([]*domain.AuditLog, error) {
	const query = `
		SELECT log_id, timestamp, action_type, user_id, platform_id, details, result, reason, tx_hash
		FROM audit_logs
		WHERE timestamp >= $1 AND timestamp < $2
		ORDER BY timestamp ASC
	`

	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to query audit entries", slog.Any("error", err))
		}
		return nil, fmt.Errorf("select audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.AuditLog
	for rows.Next() {
		var (
			entry   domain.AuditLog
			details []byte
			userID  sql.NullString
		)
		if err := rows.Scan(
			&entry.LogID,
			&entry.Timestamp,
			&entry.ActionType,
			&userID,
			&entry.PlatformID,
			&details,
			&entry.Result,
			&entry.Reason,
			&entry.TxHash,
		); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}

		if userID.Valid {
			entry.UserID = userID.String
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &entry.Details); err != nil {
				return nil, fmt.Errorf("decode audit details: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit rows: %w", err)
	}

	return entries, nil
}
