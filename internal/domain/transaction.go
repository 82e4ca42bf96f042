package domain

import "time"

// Transaction is a single ledger entry. Rows are append-only and never
// mutated after creation.
type Transaction struct {
	TransactionID string            `json:"transaction_id"`
	UserID        string            `json:"user_id"`
	Amount        float64           `json:"amount"`
	Timestamp     time.Time         `json:"timestamp"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}
