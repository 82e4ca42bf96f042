package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/playguard/playguard/internal/domain"
)

// RiskAssessmentRepository defines persistence operations for risk
// assessments. Assessments are immutable once created, so there is no
// update operation.
type RiskAssessmentRepository interface {
	Create(ctx context.Context, assessment *domain.RiskAssessment) error
	FindLatest(ctx context.Context, userID string) (*domain.RiskAssessment, error)
	HistoryByUser(ctx context.Context, userID string, limit int) ([]*domain.RiskAssessment, error)
}

type riskAssessmentRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewRiskAssessmentRepository creates a new SQL-backed assessment repository.
func NewRiskAssessmentRepository(db *sql.DB, log *slog.Logger) RiskAssessmentRepository {
	return &riskAssessmentRepository{
		db:  db,
		log: log,
	}
}

// Create persists a new assessment row.
func (r *riskAssessmentRepository) Create(ctx context.Context, assessment *domain.RiskAssessment) error {
	const query = `
		INSERT INTO risk_assessments
			(assessment_id, user_id, risk_score, risk_level, factors, recommendations, assessed_at, previous_score, trend)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	factors, err := json.Marshal(assessment.Factors)
	if err != nil {
		return fmt.Errorf("encode assessment factors: %w", err)
	}

	recommendations, err := json.Marshal(assessment.Recommendations)
	if err != nil {
		return fmt.Errorf("encode assessment recommendations: %w", err)
	}

	if _, err := r.db.ExecContext(
		ctx,
		query,
		assessment.AssessmentID,
		assessment.UserID,
		assessment.Score,
		assessment.Level,
		factors,
		recommendations,
		assessment.AssessedAt,
		assessment.PreviousScore,
		assessment.Trend,
	); err != nil {
		if r.log != nil {
			r.log.Error("failed to create risk assessment", slog.String("user_id", assessment.UserID), slog.Any("error", err))
		}
		return fmt.Errorf("insert risk assessment: %w", err)
	}

	return nil
}

// FindLatest returns the most recent assessment for the user.
func (r *riskAssessmentRepository) FindLatest(ctx context.Context, userID string) (*domain.RiskAssessment, error) {
	const query = `
		SELECT assessment_id, user_id, risk_score, risk_level, factors, recommendations, assessed_at, previous_score, trend
		FROM risk_assessments
		WHERE user_id = $1
		ORDER BY assessed_at DESC
		LIMIT 1
	`

	assessment, err := scanAssessment(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}

		if r.log != nil {
			r.log.Error("failed to fetch latest assessment", slog.String("user_id", userID), slog.Any("error", err))
		}
		return nil, fmt.Errorf("select latest assessment: %w", err)
	}

	return assessment, nil
}

// HistoryByUser returns up to limit assessments, most recent first.
func (r *riskAssessmentRepository) HistoryByUser(ctx context.Context, userID string, limit int) ([]*domain.RiskAssessment, error) {
	const query = `
		SELECT assessment_id, user_id, risk_score, risk_level, factors, recommendations, assessed_at, previous_score, trend
		FROM risk_assessments
		WHERE user_id = $1
		ORDER BY assessed_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to query assessments", slog.String("user_id", userID), slog.Any("error", err))
		}
		return nil, fmt.Errorf("select assessments: %w", err)
	}
	defer rows.Close()

	var assessments []*domain.RiskAssessment
	for rows.Next() {
		assessment, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assessment row: %w", err)
		}
		assessments = append(assessments, assessment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assessment rows: %w", err)
	}

	return assessments, nil
}

func scanAssessment(row interface{ Scan(...any) error }) (*domain.RiskAssessment, error) {
	var (
		assessment      domain.RiskAssessment
		factors         []byte
		recommendations []byte
		previousScore   sql.NullFloat64
		trend           sql.NullString
	)

	if err := row.Scan(
		&assessment.AssessmentID,
		&assessment.UserID,
		&assessment.Score,
		&assessment.Level,
		&factors,
		&recommendations,
		&assessment.AssessedAt,
		&previousScore,
		&trend,
	); err != nil {
		return nil, err
	}

	if len(factors) > 0 {
		if err := json.Unmarshal(factors, &assessment.Factors); err != nil {
			return nil, fmt.Errorf("decode assessment factors: %w", err)
		}
	}
	if len(recommendations) > 0 {
		if err := json.Unmarshal(recommendations, &assessment.Recommendations); err != nil {
			return nil, fmt.Errorf("decode assessment recommendations: %w", err)
		}
	}
	if previousScore.Valid {
		score := previousScore.Float64
		assessment.PreviousScore = &score
	}
	if trend.Valid {
		assessment.Trend = trend.String
	}

	return &assessment, nil
}
