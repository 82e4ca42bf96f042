// Package audit maintains the append-only compliance audit trail.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/playguard/playguard/internal/domain"
	"github.com/playguard/playguard/internal/repository"
)

// Entry describes one auditable action. LogID and Timestamp are assigned
// by the service.
type Entry struct {
	ActionType string
	UserID     string
	PlatformID string
	Details    map[string]string
	Result     string
	Reason     string
	TxHash     string
}

// Results recorded on audit entries.
const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultDegraded = "degraded"
)

// Service writes audit entries. Entries are append-only; there is no way
// to modify or remove one after Log returns.
type Service struct {
	repo repository.AuditLogRepository
	log  *slog.Logger
	now  func() time.Time
}

// NewService constructs the audit service.
func NewService(repo repository.AuditLogRepository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		repo: repo,
		log:  log,
		now:  time.Now,
	}
}

// Log records the entry and returns the generated log identifier.
func (s *Service) Log(ctx context.Context, entry Entry) (string, error) {
	record := &domain.AuditLog{
		LogID:      uuid.NewString(),
		Timestamp:  s.now().UTC(),
		ActionType: entry.ActionType,
		UserID:     entry.UserID,
		PlatformID: entry.PlatformID,
		Details:    entry.Details,
		Result:     entry.Result,
		Reason:     entry.Reason,
		TxHash:     entry.TxHash,
	}

	if err := s.repo.Create(ctx, record); err != nil {
		s.log.Error("failed to write audit entry",
			slog.String("action_type", entry.ActionType),
			slog.Any("error", err),
		)
		return "", fmt.Errorf("write audit entry: %w", err)
	}

	return record.LogID, nil
}

// Report summarizes audit activity within [from, to) for regulators:
// entry counts grouped by action type and by result.
type Report struct {
	From        time.Time      `json:"from"`
	To          time.Time      `json:"to"`
	Total       int            `json:"total"`
	ByAction    map[string]int `json:"by_action"`
	ByResult    map[string]int `json:"by_result"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// GenerateReport builds a regulatory activity report for the period.
func (s *Service) GenerateReport(ctx context.Context, from, to time.Time) (*Report, error) {
	entries, err := s.repo.FindInRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("load audit entries: %w", err)
	}

	report := &Report{
		From:        from,
		To:          to,
		Total:       len(entries),
		ByAction:    make(map[string]int),
		ByResult:    make(map[string]int),
		GeneratedAt: s.now().UTC(),
	}

	for _, entry := range entries {
		report.ByAction[entry.ActionType]++
		report.ByResult[entry.Result]++
	}

	return report, nil
}
