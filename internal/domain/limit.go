package domain

import "time"

// LimitKind identifies the rolling window a spending limit applies to.
type LimitKind string

const (
	LimitDaily   LimitKind = "daily"
	LimitWeekly  LimitKind = "weekly"
	LimitMonthly LimitKind = "monthly"
)

// DefaultPeriodDays returns the window length conventionally associated
// with the kind. Callers may override it when setting a limit.
func (k LimitKind) DefaultPeriodDays() int {
	switch k {
	case LimitDaily:
		return 1
	case LimitWeekly:
		return 7
	case LimitMonthly:
		return 30
	default:
		return 1
	}
}

// Valid reports whether the kind is one of the known limit kinds.
func (k LimitKind) Valid() bool {
	switch k {
	case LimitDaily, LimitWeekly, LimitMonthly:
		return true
	}
	return false
}

// Limit is a spending cap over a rolling window. At most one limit exists
// per (user, kind) pair; setting it again replaces amount and period.
type Limit struct {
	UserID     string    `json:"user_id"`
	Kind       LimitKind `json:"kind"`
	Amount     float64   `json:"amount"`
	PeriodDays int       `json:"period_days"`
	UpdatedAt  time.Time `json:"updated_at"`
}
