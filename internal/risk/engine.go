// Package risk computes behavioural risk assessments from the session and
// transaction history.
package risk

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/playguard/playguard/internal/domain"
	"github.com/playguard/playguard/internal/repository"
	"github.com/playguard/playguard/pkg/config"
	"github.com/playguard/playguard/pkg/metrics"
)

// Factor weights. The composite score is the clamped sum of the
// triggered weights.
const (
	weightChasingLosses     = 30.0
	weightEscalating        = 25.0
	weightExcessiveTime     = 20.0
	weightHighFrequency     = 20.0
	weightLateNight         = 15.0
	weightModerateFrequency = 10.0
	weightStableSpending    = 5.0
	weightLimitCompliance   = 5.0
)

// trendTolerance is the score delta below which two assessments are
// considered stable.
const trendTolerance = 2.0

// Notifier delivers player-facing alerts.
type Notifier interface {
	Send(ctx context.Context, userID string, notificationType domain.NotificationType, message string, metadata map[string]string)
}

// Engine scores users and persists assessment snapshots.
type Engine struct {
	assessments  repository.RiskAssessmentRepository
	sessions     repository.SessionRepository
	transactions repository.TransactionRepository
	notifier     Notifier
	cfg          config.RiskConfig
	log          *slog.Logger
	now          func() time.Time
}

// NewEngine constructs the risk engine. notifier may be nil when alerting
// is disabled.
func NewEngine(
	assessments repository.RiskAssessmentRepository,
	sessions repository.SessionRepository,
	transactions repository.TransactionRepository,
	notifier Notifier,
	cfg config.RiskConfig,
	log *slog.Logger,
) *Engine {
	if log == nil {
		log = slog.Default()
	}

	return &Engine{
		assessments:  assessments,
		sessions:     sessions,
		transactions: transactions,
		notifier:     notifier,
		cfg:          cfg,
		log:          log,
		now:          time.Now,
	}
}

// CalculateRiskScore runs a full assessment over the analysis window,
// persists the snapshot and alerts on high and critical tiers. The
// returned assessment carries the contributing factors and the trend
// against the previous score.
func (e *Engine) CalculateRiskScore(ctx context.Context, userID string) (*domain.RiskAssessment, error) {
	now := e.now().UTC()
	windowStart := now.AddDate(0, 0, -e.cfg.AnalysisWindowDays)

	transactions, err := e.transactions.FindByUserInRange(ctx, userID, windowStart, now)
	if err != nil {
		return nil, fmt.Errorf("load transactions for assessment: %w", err)
	}

	sessions, err := e.sessions.FindByUserSince(ctx, userID, windowStart)
	if err != nil {
		return nil, fmt.Errorf("load sessions for assessment: %w", err)
	}

	factors := map[string]float64{}

	switch AnalyzeSpendingPattern(transactions) {
	case SpendingChasing:
		factors[FactorChasingLosses] = weightChasingLosses
	case SpendingEscalating:
		factors[FactorEscalating] = weightEscalating
	default:
		// insufficient data scores the same as stable spending
		factors[FactorStableSpending] = weightStableSpending
	}

	timePatterns := AnalyzeTimePatterns(sessions, e.cfg, now)
	if timePatterns.ExcessiveTime {
		factors[FactorExcessiveTime] = weightExcessiveTime
	}
	if timePatterns.LateNight {
		factors[FactorLateNight] = weightLateNight
	}

	// Frequency looks at the trailing week only, not the full window.
	switch {
	case timePatterns.RecentSessionCount > e.cfg.HighFrequencySessions:
		factors[FactorHighFrequency] = weightHighFrequency
	case timePatterns.RecentSessionCount > e.cfg.ModerateFrequencySession:
		factors[FactorModerateFrequency] = weightModerateFrequency
	}

	// Flat contribution until limit violation history feeds into scoring.
	factors[FactorLimitCompliance] = weightLimitCompliance

	var score float64
	for _, weight := range factors {
		score += weight
	}
	score = math.Min(math.Max(score, 0), 100)
	level := domain.RiskLevelForScore(score)

	assessment := &domain.RiskAssessment{
		AssessmentID:    uuid.NewString(),
		UserID:          userID,
		Score:           score,
		Level:           level,
		Factors:         factors,
		Recommendations: Recommendations(factors, level),
		AssessedAt:      now,
	}

	previous, err := e.assessments.FindLatest(ctx, userID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load previous assessment: %w", err)
	}
	if previous != nil {
		previousScore := previous.Score
		assessment.PreviousScore = &previousScore
		assessment.Trend = trendAgainst(score, previousScore)
	}

	if err := e.assessments.Create(ctx, assessment); err != nil {
		return nil, fmt.Errorf("save assessment: %w", err)
	}

	metrics.RecordRiskAssessment(string(level))

	e.log.Info("risk assessment completed",
		slog.String("user_id", userID),
		slog.Float64("score", score),
		slog.String("level", string(level)),
	)

	if e.notifier != nil && (level == domain.RiskHigh || level == domain.RiskCritical) {
		e.notifier.Send(ctx, userID, domain.NotificationRiskAlert,
			fmt.Sprintf("Your recent activity indicates %s risk (score %.0f). %s",
				level, score, counselingRecommendation),
			map[string]string{
				"assessment_id": assessment.AssessmentID,
				"risk_level":    string(level),
			},
		)
	}

	return assessment, nil
}

// Latest returns the most recent assessment, or nil when the user has
// never been assessed.
func (e *Engine) Latest(ctx context.Context, userID string) (*domain.RiskAssessment, error) {
	assessment, err := e.assessments.FindLatest(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load latest assessment: %w", err)
	}

	return assessment, nil
}

// History returns past assessments, newest first.
func (e *Engine) History(ctx context.Context, userID string, limit int) ([]*domain.RiskAssessment, error) {
	if limit <= 0 {
		limit = 20
	}

	return e.assessments.HistoryByUser(ctx, userID, limit)
}

// WellnessReport is a player-facing summary of recent behaviour.
type WellnessReport struct {
	UserID         string                 `json:"user_id"`
	WindowDays     int                    `json:"window_days"`
	SessionCount   int                    `json:"session_count"`
	TotalMinutes   float64                `json:"total_minutes"`
	TotalSpent     float64                `json:"total_spent"`
	LateNightShare float64                `json:"late_night_share"`
	Assessment     *domain.RiskAssessment `json:"assessment,omitempty"`
	GeneratedAt    time.Time              `json:"generated_at"`
}

// GenerateWellnessReport aggregates the window activity with the latest
// assessment into a single report.
func (e *Engine) GenerateWellnessReport(ctx context.Context, userID string) (*WellnessReport, error) {
	now := e.now().UTC()
	windowStart := now.AddDate(0, 0, -e.cfg.AnalysisWindowDays)

	sessions, err := e.sessions.FindByUserSince(ctx, userID, windowStart)
	if err != nil {
		return nil, fmt.Errorf("load sessions for report: %w", err)
	}

	totalSpent, err := e.transactions.SumAmountSince(ctx, userID, windowStart)
	if err != nil {
		return nil, fmt.Errorf("load spend for report: %w", err)
	}

	timePatterns := AnalyzeTimePatterns(sessions, e.cfg, now)

	assessment, err := e.Latest(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &WellnessReport{
		UserID:         userID,
		WindowDays:     e.cfg.AnalysisWindowDays,
		SessionCount:   timePatterns.SessionCount,
		TotalMinutes:   timePatterns.TotalMinutes,
		TotalSpent:     totalSpent,
		LateNightShare: timePatterns.LateNightShare,
		Assessment:     assessment,
		GeneratedAt:    now,
	}, nil
}

func trendAgainst(score, previous float64) string {
	switch {
	case score > previous+trendTolerance:
		return domain.TrendWorsening
	case score < previous-trendTolerance:
		return domain.TrendImproving
	default:
		return domain.TrendStable
	}
}
