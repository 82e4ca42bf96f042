package domain

import "time"

// NotificationType identifies the kind of player notification.
type NotificationType string

const (
	NotificationSessionTimeWarning NotificationType = "session_time_warning"
	NotificationRealityCheck       NotificationType = "reality_check"
	NotificationBreakReminder      NotificationType = "break_reminder"
	NotificationRiskAlert          NotificationType = "risk_alert"
)

// NotificationStatus tracks delivery progress of a notification row.
type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

// Notification is a persisted message for a user. Delivery channels mark
// the row sent or failed after handing it off.
type Notification struct {
	NotificationID string             `json:"notification_id"`
	UserID         string             `json:"user_id"`
	Type           NotificationType   `json:"type"`
	Title          string             `json:"title"`
	Message        string             `json:"message"`
	Metadata       map[string]string  `json:"metadata,omitempty"`
	Priority       string             `json:"priority"`
	Status         NotificationStatus `json:"status"`
	CreatedAt      time.Time          `json:"created_at"`
	SentAt         *time.Time         `json:"sent_at,omitempty"`
}
