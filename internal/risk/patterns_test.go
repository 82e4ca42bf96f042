package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/playguard/playguard/internal/domain"
	"github.com/playguard/playguard/pkg/config"
)

func txsWithAmounts(amounts ...float64) []*domain.Transaction {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	transactions := make([]*domain.Transaction, len(amounts))
	for i, amount := range amounts {
		transactions[i] = &domain.Transaction{
			TransactionID: "tx",
			UserID:        "user-1",
			Amount:        amount,
			Timestamp:     base.Add(time.Duration(i) * time.Hour),
		}
	}
	return transactions
}

func TestAnalyzeSpendingPattern(t *testing.T) {
	testCases := []struct {
		name    string
		amounts []float64
		expect  SpendingPattern
	}{
		{
			name:    "too few transactions",
			amounts: []float64{10, 20, 30},
			expect:  SpendingInsufficient,
		},
		{
			name:    "flat amounts are stable",
			amounts: []float64{50, 50, 50, 50, 50, 50},
			expect:  SpendingStable,
		},
		{
			name:    "doubling average escalates",
			amounts: []float64{10, 10, 10, 20, 20, 20},
			expect:  SpendingEscalating,
		},
		{
			name:    "repeated large jumps read as chasing",
			amounts: []float64{10, 20, 10, 20, 10, 20},
			expect:  SpendingChasing,
		},
		{
			name:    "escalation wins over chasing",
			amounts: []float64{10, 10, 10, 30, 30, 30},
			expect:  SpendingEscalating,
		},
		{
			name:    "gradual drift stays stable",
			amounts: []float64{50, 55, 60, 62, 65, 68},
			expect:  SpendingStable,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, AnalyzeSpendingPattern(txsWithAmounts(tc.amounts...)))
		})
	}
}

func testRiskConfig() config.RiskConfig {
	return config.RiskConfig{
		AnalysisWindowDays:       30,
		ExcessiveWeeklyMinutes:   1200,
		LateNightShareThreshold:  0.3,
		LateNightStartHour:       0,
		LateNightEndHour:         5,
		HighFrequencySessions:    20,
		ModerateFrequencySession: 10,
	}
}

func endedSession(start time.Time, minutes float64) *domain.Session {
	end := start.Add(time.Duration(minutes * float64(time.Minute)))
	return &domain.Session{
		SessionID: "session",
		UserID:    "user-1",
		StartTime: start,
		EndTime:   &end,
		Status:    domain.SessionEnded,
	}
}

func TestAnalyzeTimePatterns(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	cfg := testRiskConfig()

	t.Run("empty input", func(t *testing.T) {
		patterns := AnalyzeTimePatterns(nil, cfg, now)
		assert.Zero(t, patterns.SessionCount)
		assert.False(t, patterns.ExcessiveTime)
		assert.False(t, patterns.LateNight)
	})

	t.Run("normalizes total minutes to a weekly rate", func(t *testing.T) {
		// 6000 minutes over a 30 day window is 1400 per week
		var sessions []*domain.Session
		for i := 0; i < 10; i++ {
			sessions = append(sessions, endedSession(now.AddDate(0, 0, -i-1).Add(10*time.Hour), 600))
		}

		patterns := AnalyzeTimePatterns(sessions, cfg, now)
		assert.InDelta(t, 6000.0, patterns.TotalMinutes, 0.01)
		assert.InDelta(t, 1400.0, patterns.WeeklyMinutes, 0.01)
		assert.True(t, patterns.ExcessiveTime)
	})

	t.Run("counts only the trailing week as recent", func(t *testing.T) {
		sessions := []*domain.Session{
			endedSession(now.AddDate(0, 0, -1).Add(10*time.Hour), 30),
			endedSession(now.AddDate(0, 0, -6).Add(10*time.Hour), 30),
			endedSession(now.AddDate(0, 0, -10).Add(10*time.Hour), 30),
			endedSession(now.AddDate(0, 0, -25).Add(10*time.Hour), 30),
		}

		patterns := AnalyzeTimePatterns(sessions, cfg, now)
		assert.Equal(t, 4, patterns.SessionCount)
		assert.Equal(t, 2, patterns.RecentSessionCount)
	})

	t.Run("flags a late night habit", func(t *testing.T) {
		sessions := []*domain.Session{
			endedSession(time.Date(2026, 3, 8, 2, 0, 0, 0, time.UTC), 30),
			endedSession(time.Date(2026, 3, 8, 14, 0, 0, 0, time.UTC), 30),
			endedSession(time.Date(2026, 3, 9, 3, 30, 0, 0, time.UTC), 30),
		}

		patterns := AnalyzeTimePatterns(sessions, cfg, now)
		assert.InDelta(t, 2.0/3.0, patterns.LateNightShare, 0.001)
		assert.True(t, patterns.LateNight)
	})

	t.Run("daytime play is not late night", func(t *testing.T) {
		sessions := []*domain.Session{
			endedSession(time.Date(2026, 3, 8, 9, 0, 0, 0, time.UTC), 30),
			endedSession(time.Date(2026, 3, 8, 15, 0, 0, 0, time.UTC), 30),
			endedSession(time.Date(2026, 3, 9, 19, 0, 0, 0, time.UTC), 30),
		}

		patterns := AnalyzeTimePatterns(sessions, cfg, now)
		assert.Zero(t, patterns.LateNightShare)
		assert.False(t, patterns.LateNight)
	})
}

func TestHourInRange(t *testing.T) {
	testCases := []struct {
		name             string
		hour, start, end int
		expect           bool
	}{
		{"inside simple range", 3, 0, 5, true},
		{"end is exclusive", 5, 0, 5, false},
		{"before simple range", 23, 0, 5, false},
		{"wrapped range before midnight", 23, 22, 5, true},
		{"wrapped range after midnight", 2, 22, 5, true},
		{"outside wrapped range", 12, 22, 5, false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, hourInRange(tc.hour, tc.start, tc.end))
		})
	}
}
