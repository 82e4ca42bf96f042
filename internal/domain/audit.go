package domain

import "time"

// AuditLog is an append-only record of a state-changing operation.
type AuditLog struct {
	LogID      string            `json:"log_id"`
	Timestamp  time.Time         `json:"timestamp"`
	ActionType string            `json:"action_type"`
	UserID     string            `json:"user_id,omitempty"`
	PlatformID string            `json:"platform_id,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
	Result     string            `json:"result"`
	Reason     string            `json:"reason,omitempty"`
	TxHash     string            `json:"tx_hash,omitempty"`
}
