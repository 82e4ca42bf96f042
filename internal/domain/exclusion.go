package domain

import "time"

// SelfExclusion is an interval during which all gambling actions are
// blocked for the user. Expired rows stay in place as history; Removed is
// only set by an explicit administrative override.
type SelfExclusion struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Reason    string    `json:"reason,omitempty"`
	Removed   bool      `json:"removed"`
	CreatedAt time.Time `json:"created_at"`
}

// ActiveAt reports whether the exclusion blocks the user at the given
// instant. The window is half-open: a check at exactly EndTime passes.
func (e *SelfExclusion) ActiveAt(now time.Time) bool {
	if e.Removed {
		return false
	}
	return !now.Before(e.StartTime) && now.Before(e.EndTime)
}
