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

// TransactionRepository defines persistence operations for ledger entries.
// The table is append-only; there is deliberately no update or delete.
type TransactionRepository interface {
	Create(ctx context.Context, tx *domain.Transaction) error
	SumAmountSince(ctx context.Context, userID string, since time.Time) (float64, error)
	FindByUserInRange(ctx context.Context, userID string, from, to time.Time) ([]*domain.Transaction, error)
}

type transactionRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewTransactionRepository creates a new SQL-backed transaction repository.
func NewTransactionRepository(db *sql.DB, log *slog.Logger) TransactionRepository {
	return &transactionRepository{
		db:  db,
		log: log,
	}
}

// Create appends a new ledger entry.
func (r *transactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	const query = `
		INSERT INTO transactions (transaction_id, user_id, amount, timestamp, metadata)
		VALUES ($1, $2, $3, $4, $5)
	`

	metadata, err := json.Marshal(tx.Metadata)
	if err != nil {
		return fmt.Errorf("encode transaction metadata: %w", err)
	}

	if _, err := r.db.ExecContext(
		ctx,
		query,
		tx.TransactionID,
		tx.UserID,
		tx.Amount,
		tx.Timestamp,
		metadata,
	); err != nil {
		if r.log != nil {
			r.log.Error("failed to create transaction", slog.String("user_id", tx.UserID), slog.Any("error", err))
		}
		return fmt.Errorf("insert transaction: %w", err)
	}

	return nil
}

// SumAmountSince returns the total amount spent by the user from the given
// instant onward. This is the rolling-window read the limit engine relies
// on; it is recomputed from the ledger on every call.
func (r *transactionRepository) SumAmountSince(ctx context.Context, userID string, since time.Time) (float64, error) {
	const query = `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE user_id = $1 AND timestamp >= $2
	`

	var total float64
	if err := r.db.QueryRowContext(ctx, query, userID, since).Scan(&total); err != nil {
		if r.log != nil {
			r.log.Error("failed to sum transactions", slog.String("user_id", userID), slog.Any("error", err))
		}
		return 0, fmt.Errorf("sum transactions: %w", err)
	}

	return total, nil
}

// FindByUserInRange returns the user's transactions within [from, to),
// ordered by timestamp ascending.
func (r *transactionRepository) FindByUserInRange(ctx context.Context, userID string, from, to time.Time) ([]*domain.Transaction, error) {
	const query = `
		SELECT transaction_id, user_id, amount, timestamp, metadata
		FROM transactions
		WHERE user_id = $1 AND timestamp >= $2 AND timestamp < $3
		ORDER BY timestamp ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID, from, to)
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to query transactions", slog.String("user_id", userID), slog.Any("error", err))
		}
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*domain.Transaction
	for rows.Next() {
		var (
			tx       domain.Transaction
			metadata []byte
		)
		if err := rows.Scan(&tx.TransactionID, &tx.UserID, &tx.Amount, &tx.Timestamp, &metadata); err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}

		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &tx.Metadata); err != nil {
				return nil, fmt.Errorf("decode transaction metadata: %w", err)
			}
		}

		transactions = append(transactions, &tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}

	return transactions, nil
}
