package domain

import "time"

// RiskLevel is the discrete tier derived from a numeric risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Score thresholds for the tier mapping.
const (
	RiskMediumThreshold   = 25.0
	RiskHighThreshold     = 50.0
	RiskCriticalThreshold = 75.0
)

// RiskLevelForScore maps a numeric score to its tier.
func RiskLevelForScore(score float64) RiskLevel {
	switch {
	case score < RiskMediumThreshold:
		return RiskLow
	case score < RiskHighThreshold:
		return RiskMedium
	case score < RiskCriticalThreshold:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// Trend values comparing an assessment against the previous one.
const (
	TrendImproving = "improving"
	TrendStable    = "stable"
	TrendWorsening = "worsening"
)

// RiskAssessment is an immutable snapshot of a user's computed risk.
// History is retained indefinitely so trends can be queried later.
type RiskAssessment struct {
	AssessmentID    string             `json:"assessment_id"`
	UserID          string             `json:"user_id"`
	Score           float64            `json:"risk_score"`
	Level           RiskLevel          `json:"risk_level"`
	Factors         map[string]float64 `json:"factors"`
	Recommendations []string           `json:"recommendations"`
	AssessedAt      time.Time          `json:"assessed_at"`
	PreviousScore   *float64           `json:"previous_score,omitempty"`
	Trend           string             `json:"trend,omitempty"`
}
