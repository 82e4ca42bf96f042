// Package limits enforces rolling-window spending caps on the transaction
// ledger.
package limits

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/playguard/playguard/internal/audit"
	"github.com/playguard/playguard/internal/blockchain"
	"github.com/playguard/playguard/internal/domain"
	apperrors "github.com/playguard/playguard/internal/errors"
	"github.com/playguard/playguard/internal/repository"
	"github.com/playguard/playguard/pkg/metrics"
)

// ExclusionGuard is consulted before any state-changing operation.
type ExclusionGuard interface {
	IsExcluded(ctx context.Context, userID string) (bool, *domain.SelfExclusion, error)
}

// Auditor records limit operations on the audit trail.
type Auditor interface {
	Log(ctx context.Context, entry audit.Entry) (string, error)
}

// ChainLogger mirrors ledger entries to the blockchain bridge. The call
// degrades to a mock result when the bridge is unreachable; it never fails
// the transaction.
type ChainLogger interface {
	LogTransaction(ctx context.Context, data blockchain.TransactionData) blockchain.TxResult
}

// Engine evaluates prospective transactions against configured spending
// limits. Spending is recomputed from the ledger on every check; there is
// no cached counter to drift out of sync.
type Engine struct {
	limits       repository.LimitRepository
	transactions repository.TransactionRepository
	guard        ExclusionGuard
	auditor      Auditor
	chain        ChainLogger
	log          *slog.Logger
	now          func() time.Time
}

// NewEngine constructs the limit engine. chain may be nil when blockchain
// mirroring is disabled.
func NewEngine(
	limits repository.LimitRepository,
	transactions repository.TransactionRepository,
	guard ExclusionGuard,
	auditor Auditor,
	chain ChainLogger,
	log *slog.Logger,
) *Engine {
	if log == nil {
		log = slog.Default()
	}

	return &Engine{
		limits:       limits,
		transactions: transactions,
		guard:        guard,
		auditor:      auditor,
		chain:        chain,
		log:          log,
		now:          time.Now,
	}
}

// CheckResult carries everything a caller needs to render a precise
// allow/deny message.
type CheckResult struct {
	Allowed         bool             `json:"allowed"`
	Reason          apperrors.Reason `json:"reason,omitempty"`
	Message         string           `json:"message,omitempty"`
	Kind            domain.LimitKind `json:"kind,omitempty"`
	Limit           float64          `json:"limit,omitempty"`
	CurrentSpending float64          `json:"current_spending"`
	RequestedAmount float64          `json:"requested_amount"`
	WouldBeTotal    float64          `json:"would_be_total"`
	Remaining       float64          `json:"remaining,omitempty"`
	HasLimit        bool             `json:"has_limit"`
}

// Check evaluates the prospective amount against every limit configured
// for the user. The first violated limit denies; a user with no limits is
// always allowed.
func (e *Engine) Check(ctx context.Context, userID string, amount float64) (*CheckResult, error) {
	if amount < 0 {
		return nil, apperrors.NewValidationError("amount must be non-negative")
	}

	result := &CheckResult{
		Allowed:         true,
		RequestedAmount: amount,
		WouldBeTotal:    amount,
	}

	for _, kind := range []domain.LimitKind{domain.LimitDaily, domain.LimitWeekly, domain.LimitMonthly} {
		kindResult, err := e.CheckKind(ctx, userID, amount, kind)
		if err != nil {
			return nil, err
		}
		if !kindResult.HasLimit {
			continue
		}

		if !kindResult.Allowed {
			metrics.RecordLimitCheck(false)
			return kindResult, nil
		}

		// report the tightest configured limit on the allowed result
		if !result.HasLimit || kindResult.Remaining < result.Remaining {
			*result = *kindResult
		}
	}

	metrics.RecordLimitCheck(true)

	return result, nil
}

// CheckKind evaluates the amount against a single limit kind.
func (e *Engine) CheckKind(ctx context.Context, userID string, amount float64, kind domain.LimitKind) (*CheckResult, error) {
	limit, err := e.limits.Find(ctx, userID, kind)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &CheckResult{
				Allowed:         true,
				Kind:            kind,
				RequestedAmount: amount,
				WouldBeTotal:    amount,
				HasLimit:        false,
			}, nil
		}
		return nil, fmt.Errorf("load limit: %w", err)
	}

	windowStart := e.now().UTC().AddDate(0, 0, -limit.PeriodDays)
	currentSpending, err := e.transactions.SumAmountSince(ctx, userID, windowStart)
	if err != nil {
		return nil, fmt.Errorf("compute rolling spend: %w", err)
	}

	wouldBe := currentSpending + amount
	result := &CheckResult{
		Allowed:         wouldBe <= limit.Amount,
		Kind:            kind,
		Limit:           limit.Amount,
		CurrentSpending: currentSpending,
		RequestedAmount: amount,
		WouldBeTotal:    wouldBe,
		HasLimit:        true,
	}

	if result.Allowed {
		result.Remaining = limit.Amount - wouldBe
		return result, nil
	}

	result.Reason = apperrors.ReasonLimitExceeded
	result.Message = fmt.Sprintf(
		"Transaction of %.2f would bring %s spending to %.2f, exceeding the %.2f limit (current: %.2f)",
		amount, kind, wouldBe, limit.Amount, currentSpending,
	)

	return result, nil
}

// SetResult reports the outcome of a Set call.
type SetResult struct {
	OK      bool             `json:"ok"`
	Reason  apperrors.Reason `json:"reason,omitempty"`
	Message string           `json:"message,omitempty"`
	Limit   *domain.Limit    `json:"limit,omitempty"`
}

// Set creates or replaces the limit for (user, kind). A repeated call
// updates amount and period instead of creating a duplicate row.
func (e *Engine) Set(ctx context.Context, userID string, amount float64, kind domain.LimitKind, periodDays int) (*SetResult, error) {
	if amount <= 0 {
		return nil, apperrors.NewValidationError("limit amount must be positive")
	}
	if !kind.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown limit kind %q", kind))
	}
	if periodDays <= 0 {
		periodDays = kind.DefaultPeriodDays()
	}

	excluded, exclusion, err := e.guard.IsExcluded(ctx, userID)
	if err != nil {
		return nil, err
	}
	if excluded {
		e.audit(ctx, "limit_set", userID, audit.ResultRejected, string(apperrors.ReasonExclusionActive), nil)
		return &SetResult{
			OK:      false,
			Reason:  apperrors.ReasonExclusionActive,
			Message: fmt.Sprintf("Self-exclusion active until %s", exclusion.EndTime.Format(time.RFC3339)),
		}, nil
	}

	limit := &domain.Limit{
		UserID:     userID,
		Kind:       kind,
		Amount:     amount,
		PeriodDays: periodDays,
		UpdatedAt:  e.now().UTC(),
	}

	if err := e.limits.Upsert(ctx, limit); err != nil {
		return nil, fmt.Errorf("save limit: %w", err)
	}

	e.audit(ctx, "limit_set", userID, audit.ResultSuccess, "", map[string]string{
		"kind":        string(kind),
		"amount":      fmt.Sprintf("%.2f", amount),
		"period_days": fmt.Sprintf("%d", periodDays),
	})

	return &SetResult{OK: true, Limit: limit}, nil
}

// Get returns the limit configured for (user, kind), or nil when absent.
func (e *Engine) Get(ctx context.Context, userID string, kind domain.LimitKind) (*domain.Limit, error) {
	limit, err := e.limits.Find(ctx, userID, kind)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load limit: %w", err)
	}

	return limit, nil
}

// Remove deletes the limit for (user, kind).
func (e *Engine) Remove(ctx context.Context, userID string, kind domain.LimitKind) (*SetResult, error) {
	excluded, _, err := e.guard.IsExcluded(ctx, userID)
	if err != nil {
		return nil, err
	}
	if excluded {
		e.audit(ctx, "limit_remove", userID, audit.ResultRejected, string(apperrors.ReasonExclusionActive), nil)
		return &SetResult{
			OK:      false,
			Reason:  apperrors.ReasonExclusionActive,
			Message: "Self-exclusion active; limits cannot be removed",
		}, nil
	}

	if err := e.limits.Delete(ctx, userID, kind); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &SetResult{
				OK:      false,
				Reason:  apperrors.ReasonNotFound,
				Message: fmt.Sprintf("No %s limit configured", kind),
			}, nil
		}
		return nil, fmt.Errorf("delete limit: %w", err)
	}

	e.audit(ctx, "limit_remove", userID, audit.ResultSuccess, "", map[string]string{"kind": string(kind)})

	return &SetResult{OK: true}, nil
}

// RecordResult reports the outcome of a RecordTransaction call.
type RecordResult struct {
	OK          bool                `json:"ok"`
	Reason      apperrors.Reason    `json:"reason,omitempty"`
	Message     string              `json:"message,omitempty"`
	Check       *CheckResult        `json:"check,omitempty"`
	Transaction *domain.Transaction `json:"transaction,omitempty"`
	TxHash      string              `json:"tx_hash,omitempty"`
	OnChain     bool                `json:"on_chain"`
	ChainMocked bool                `json:"chain_mocked"`
}

// RecordTransaction runs the full gated write path: exclusion guard, limit
// check, ledger append, blockchain mirror and audit. The blockchain step
// never blocks the outcome; when the bridge is down the entry is recorded
// locally and flagged as mocked.
func (e *Engine) RecordTransaction(ctx context.Context, userID string, amount float64, metadata map[string]string) (*RecordResult, error) {
	if amount < 0 {
		return nil, apperrors.NewValidationError("amount must be non-negative")
	}

	excluded, exclusion, err := e.guard.IsExcluded(ctx, userID)
	if err != nil {
		return nil, err
	}
	if excluded {
		e.audit(ctx, "transaction_record", userID, audit.ResultRejected, string(apperrors.ReasonExclusionActive), nil)
		return &RecordResult{
			OK:      false,
			Reason:  apperrors.ReasonExclusionActive,
			Message: fmt.Sprintf("Self-exclusion active until %s", exclusion.EndTime.Format(time.RFC3339)),
		}, nil
	}

	check, err := e.Check(ctx, userID, amount)
	if err != nil {
		return nil, err
	}
	if !check.Allowed {
		e.audit(ctx, "transaction_record", userID, audit.ResultRejected, string(apperrors.ReasonLimitExceeded), map[string]string{
			"amount":        fmt.Sprintf("%.2f", amount),
			"limit":         fmt.Sprintf("%.2f", check.Limit),
			"would_be":      fmt.Sprintf("%.2f", check.WouldBeTotal),
			"current_spend": fmt.Sprintf("%.2f", check.CurrentSpending),
		})
		return &RecordResult{
			OK:      false,
			Reason:  apperrors.ReasonLimitExceeded,
			Message: check.Message,
			Check:   check,
		}, nil
	}

	transaction := &domain.Transaction{
		TransactionID: uuid.NewString(),
		UserID:        userID,
		Amount:        amount,
		Timestamp:     e.now().UTC(),
		Metadata:      metadata,
	}

	if err := e.transactions.Create(ctx, transaction); err != nil {
		return nil, fmt.Errorf("append transaction: %w", err)
	}

	result := &RecordResult{
		OK:          true,
		Check:       check,
		Transaction: transaction,
	}

	auditResult := audit.ResultSuccess
	if e.chain != nil {
		chainResult := e.chain.LogTransaction(ctx, blockchain.TransactionData{
			TransactionID: transaction.TransactionID,
			UserID:        userID,
			Amount:        amount,
			Timestamp:     transaction.Timestamp,
		})
		result.TxHash = chainResult.TxHash
		result.OnChain = chainResult.OnChain
		result.ChainMocked = chainResult.Mock
		if chainResult.Mock {
			auditResult = audit.ResultDegraded
		}
	}

	if e.auditor != nil {
		if _, err := e.auditor.Log(ctx, audit.Entry{
			ActionType: "transaction_record",
			UserID:     userID,
			Details: map[string]string{
				"transaction_id": transaction.TransactionID,
				"amount":         fmt.Sprintf("%.2f", amount),
			},
			Result: auditResult,
			TxHash: result.TxHash,
		}); err != nil {
			e.log.Error("failed to audit transaction", slog.Any("error", err))
		}
	}

	return result, nil
}

func (e *Engine) audit(ctx context.Context, action, userID, result, reason string, details map[string]string) {
	if e.auditor == nil {
		return
	}

	if _, err := e.auditor.Log(ctx, audit.Entry{
		ActionType: action,
		UserID:     userID,
		Details:    details,
		Result:     result,
		Reason:     reason,
	}); err != nil {
		e.log.Error("failed to audit limit action", slog.String("action", action), slog.Any("error", err))
	}
}
