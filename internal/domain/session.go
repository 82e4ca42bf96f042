package domain

import "time"

// SessionStatus represents the lifecycle state of a gaming session.
type SessionStatus string

const (
	// SessionActive indicates an in-progress gaming session.
	SessionActive SessionStatus = "active"
	// SessionEnded indicates a terminated session. Ended sessions are immutable.
	SessionEnded SessionStatus = "ended"
)

// Session tracks a single gaming session for a user on a platform.
type Session struct {
	SessionID          string        `json:"session_id"`
	UserID             string        `json:"user_id"`
	PlatformID         string        `json:"platform_id"`
	StartTime          time.Time     `json:"start_time"`
	EndTime            *time.Time    `json:"end_time,omitempty"`
	TotalWagered       float64       `json:"total_wagered"`
	TotalWon           float64       `json:"total_won"`
	TotalLost          float64       `json:"total_lost"`
	RealityChecksShown int           `json:"reality_checks_shown"`
	Currency           string        `json:"currency"`
	Status             SessionStatus `json:"status"`
}

// DurationMinutes returns the session length in fractional minutes.
// For an ended session the interval is start to end, otherwise start to now.
func (s *Session) DurationMinutes(now time.Time) float64 {
	end := now
	if s.EndTime != nil {
		end = *s.EndTime
	}
	return end.Sub(s.StartTime).Minutes()
}

// NetResult returns the win/loss balance of the session.
func (s *Session) NetResult() float64 {
	return s.TotalWon - s.TotalWagered
}
