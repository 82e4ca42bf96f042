package risk

import (
	"time"

	"github.com/playguard/playguard/internal/domain"
	"github.com/playguard/playguard/pkg/config"
)

// SpendingPattern classifies a user's recent ledger activity.
type SpendingPattern string

const (
	// SpendingEscalating means the recent half of the window averages at
	// least 1.5x the earlier half.
	SpendingEscalating SpendingPattern = "escalating"
	// SpendingChasing means more than 30% of consecutive transactions jump
	// by 1.5x or more, the classic chasing-losses signature.
	SpendingChasing SpendingPattern = "chasing_losses"
	// SpendingStable means neither escalation nor chasing was detected.
	SpendingStable SpendingPattern = "stable"
	// SpendingInsufficient means too few transactions to classify.
	SpendingInsufficient SpendingPattern = "insufficient_data"
)

const (
	minTransactionsForPattern = 4
	escalationRatio           = 1.5
	chasingJumpRatio          = 1.5
	chasingShareThreshold     = 0.3
)

// AnalyzeSpendingPattern classifies the transaction list, which must be
// ordered oldest first. Escalation is checked before chasing; the two are
// mutually exclusive in the result.
func AnalyzeSpendingPattern(transactions []*domain.Transaction) SpendingPattern {
	if len(transactions) < minTransactionsForPattern {
		return SpendingInsufficient
	}

	mid := len(transactions) / 2
	firstAvg := averageAmount(transactions[:mid])
	secondAvg := averageAmount(transactions[mid:])
	if firstAvg > 0 && secondAvg >= escalationRatio*firstAvg {
		return SpendingEscalating
	}

	jumps := 0
	for i := 0; i < len(transactions)-1; i++ {
		prev := transactions[i].Amount
		if prev > 0 && transactions[i+1].Amount >= chasingJumpRatio*prev {
			jumps++
		}
	}
	if float64(jumps)/float64(len(transactions)-1) > chasingShareThreshold {
		return SpendingChasing
	}

	return SpendingStable
}

func averageAmount(transactions []*domain.Transaction) float64 {
	if len(transactions) == 0 {
		return 0
	}

	var total float64
	for _, tx := range transactions {
		total += tx.Amount
	}
	return total / float64(len(transactions))
}

// recentWindowDays bounds the frequency signal: only sessions started in
// the trailing week count towards it, regardless of how wide the analysis
// window is.
const recentWindowDays = 7

// TimePatterns summarizes the play-time behaviour over the analysis window.
type TimePatterns struct {
	SessionCount       int `json:"session_count"`
	RecentSessionCount int `json:"recent_session_count"`

	TotalMinutes   float64 `json:"total_minutes"`
	WeeklyMinutes  float64 `json:"weekly_minutes"`
	LateNightShare float64 `json:"late_night_share"`
	ExcessiveTime  bool    `json:"excessive_time"`
	LateNight      bool    `json:"late_night"`
}

// AnalyzeTimePatterns derives time-based signals from the user's sessions
// in the analysis window. Total minutes are normalized to a weekly rate so
// the excessive-time threshold is window-size independent.
func AnalyzeTimePatterns(sessions []*domain.Session, cfg config.RiskConfig, now time.Time) TimePatterns {
	patterns := TimePatterns{SessionCount: len(sessions)}
	if len(sessions) == 0 {
		return patterns
	}

	recentCutoff := now.AddDate(0, 0, -recentWindowDays)

	lateNight := 0
	for _, session := range sessions {
		patterns.TotalMinutes += session.DurationMinutes(now)
		if !session.StartTime.Before(recentCutoff) {
			patterns.RecentSessionCount++
		}
		if hourInRange(session.StartTime.Hour(), cfg.LateNightStartHour, cfg.LateNightEndHour) {
			lateNight++
		}
	}

	windowDays := cfg.AnalysisWindowDays
	if windowDays <= 0 {
		windowDays = 7
	}
	patterns.WeeklyMinutes = patterns.TotalMinutes / float64(windowDays) * 7
	patterns.LateNightShare = float64(lateNight) / float64(len(sessions))

	patterns.ExcessiveTime = patterns.WeeklyMinutes > cfg.ExcessiveWeeklyMinutes
	patterns.LateNight = patterns.LateNightShare > cfg.LateNightShareThreshold

	return patterns
}

// hourInRange handles ranges that wrap past midnight, e.g. 22..5.
func hourInRange(hour, start, end int) bool {
	if start <= end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}
