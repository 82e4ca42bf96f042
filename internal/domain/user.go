package domain

import "time"

// User represents a registered player stored in the database.
type User struct {
	ID             string    `json:"user_id"`
	WalletAddress  string    `json:"wallet_address,omitempty"`
	IsVerified     bool      `json:"is_verified"`
	IsSelfExcluded bool      `json:"is_self_excluded"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
