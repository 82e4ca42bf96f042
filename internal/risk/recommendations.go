package risk

import "github.com/playguard/playguard/internal/domain"

// Factor keys recorded on assessments. Each key contributes its weight to
// the composite score.
const (
	FactorEscalating        = "spending_escalating"
	FactorChasingLosses     = "chasing_losses"
	FactorStableSpending    = "spending_stable"
	FactorExcessiveTime     = "excessive_play_time"
	FactorLateNight         = "late_night_play"
	FactorHighFrequency     = "high_session_frequency"
	FactorModerateFrequency = "moderate_session_frequency"
	FactorLimitCompliance   = "limit_compliance"
)

var factorRecommendations = map[string]string{
	FactorEscalating:        "Your spending has been increasing. Consider setting a daily deposit limit.",
	FactorChasingLosses:     "Your recent transactions suggest chasing losses. Take a break and review your budget.",
	FactorExcessiveTime:     "You have been playing more than recommended. Try scheduling gaming-free days.",
	FactorLateNight:         "A large share of your sessions start late at night. Consider setting session reminders.",
	FactorHighFrequency:     "You are starting sessions very frequently. Spacing out play reduces risk.",
	FactorModerateFrequency: "Your session frequency is above average. Keep an eye on how often you play.",
}

const (
	counselingRecommendation    = "Your risk profile is elevated. We recommend speaking with a responsible gambling counselor."
	selfExclusionRecommendation = "Explore self-exclusion options if you need extended time away from play."
)

// Recommendations returns guidance matching the contributing factors.
// High and critical tiers always append a counseling referral and a
// self-exclusion suggestion. Factors with zero weight contribute nothing.
func Recommendations(factors map[string]float64, level domain.RiskLevel) []string {
	// fixed order so output is deterministic
	order := []string{
		FactorChasingLosses,
		FactorEscalating,
		FactorExcessiveTime,
		FactorHighFrequency,
		FactorLateNight,
		FactorModerateFrequency,
	}

	var recommendations []string
	for _, key := range order {
		if factors[key] <= 0 {
			continue
		}
		if text, ok := factorRecommendations[key]; ok {
			recommendations = append(recommendations, text)
		}
	}

	if level == domain.RiskHigh || level == domain.RiskCritical {
		recommendations = append(recommendations, counselingRecommendation, selfExclusionRecommendation)
	}

	if len(recommendations) == 0 {
		recommendations = append(recommendations, "Your gaming activity looks healthy. Keep it up.")
	}

	return recommendations
}
