// Package ledger exposes read-only, time-ordered views over the
// transaction and session history for the API read endpoints. The risk
// and limit engines read the repositories directly.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/playguard/playguard/internal/domain"
	"github.com/playguard/playguard/internal/repository"
)

// Query bundles the read interfaces the analytical components consume.
type Query struct {
	transactions repository.TransactionRepository
	sessions     repository.SessionRepository
	now          func() time.Time
}

// NewQuery constructs a ledger query facade.
func NewQuery(transactions repository.TransactionRepository, sessions repository.SessionRepository) *Query {
	return &Query{
		transactions: transactions,
		sessions:     sessions,
		now:          time.Now,
	}
}

// TransactionsInWindow returns the user's transactions in the trailing
// window ending now, ordered by timestamp ascending.
func (q *Query) TransactionsInWindow(ctx context.Context, userID string, window time.Duration) ([]*domain.Transaction, error) {
	now := q.now().UTC()

	transactions, err := q.transactions.FindByUserInRange(ctx, userID, now.Add(-window), now)
	if err != nil {
		return nil, fmt.Errorf("query transactions in window: %w", err)
	}

	return transactions, nil
}

// SpendInWindow returns the summed transaction amount over the trailing
// window. Recomputed from the ledger on every call; nothing is cached.
func (q *Query) SpendInWindow(ctx context.Context, userID string, window time.Duration) (float64, error) {
	total, err := q.transactions.SumAmountSince(ctx, userID, q.now().UTC().Add(-window))
	if err != nil {
		return 0, fmt.Errorf("sum spend in window: %w", err)
	}

	return total, nil
}

// SessionsInWindow returns the user's sessions started in the trailing
// window, ordered by start time ascending.
func (q *Query) SessionsInWindow(ctx context.Context, userID string, window time.Duration) ([]*domain.Session, error) {
	sessions, err := q.sessions.FindByUserSince(ctx, userID, q.now().UTC().Add(-window))
	if err != nil {
		return nil, fmt.Errorf("query sessions in window: %w", err)
	}

	return sessions, nil
}
