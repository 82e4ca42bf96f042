package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/playguard/playguard/internal/audit"
	"github.com/playguard/playguard/internal/domain"
	apperrors "github.com/playguard/playguard/internal/errors"
	"github.com/playguard/playguard/internal/repository"
)

// DefaultCurrency is used when a start request does not name one.
const DefaultCurrency = "CCD"

// Config holds the session lifecycle thresholds in fractional minutes.
type Config struct {
	MaxSessionMinutes           float64
	RealityCheckIntervalMinutes float64
	MandatoryBreakMinutes       float64
}

// ExclusionGuard is consulted before any state-changing operation.
type ExclusionGuard interface {
	IsExcluded(ctx context.Context, userID string) (bool, *domain.SelfExclusion, error)
}

// Notifier delivers player notifications. Calls are fire-and-forget.
type Notifier interface {
	Send(ctx context.Context, userID string, notificationType domain.NotificationType, message string, metadata map[string]string)
}

// Auditor records session operations on the audit trail.
type Auditor interface {
	Log(ctx context.Context, entry audit.Entry) (string, error)
}

// Service is the session state machine controller. All mutations for one
// user are serialized through a per-user lock; the database enforces the
// one-active-session invariant as the final backstop.
type Service struct {
	sessions repository.SessionRepository
	guard    ExclusionGuard
	notifier Notifier
	auditor  Auditor
	cfg      Config
	locker   *userLocker
	log      *slog.Logger
	now      func() time.Time
}

// NewService constructs the session service. redisClient may be nil, in
// which case per-user locking degrades to the database constraint alone.
func NewService(
	sessions repository.SessionRepository,
	guard ExclusionGuard,
	notifier Notifier,
	auditor Auditor,
	cfg Config,
	redisClient *redis.Client,
	log *slog.Logger,
) *Service {
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		sessions: sessions,
		guard:    guard,
		notifier: notifier,
		auditor:  auditor,
		cfg:      cfg,
		locker:   &userLocker{client: redisClient},
		log:      log,
		now:      time.Now,
	}
}

// StartResult reports the outcome of a Start call. When the user already
// has an active session its identifier is returned; when the mandatory
// break has not elapsed the remaining fractional minutes are reported.
type StartResult struct {
	OK               bool             `json:"ok"`
	Reason           apperrors.Reason `json:"reason,omitempty"`
	Message          string           `json:"message"`
	Session          *domain.Session  `json:"session,omitempty"`
	SessionID        string           `json:"session_id,omitempty"`
	RemainingMinutes float64          `json:"remaining_minutes,omitempty"`
}

// Start begins a new session for the user.
func (s *Service) Start(ctx context.Context, userID, platformID, currency string) (*StartResult, error) {
	if userID == "" || platformID == "" {
		return nil, apperrors.NewValidationError("user_id and platform_id are required")
	}
	if currency == "" {
		currency = DefaultCurrency
	}

	if err := s.locker.lock(ctx, userID); err != nil {
		return nil, err
	}
	defer s.locker.unlock(ctx, userID)

	excluded, exclusion, err := s.guard.IsExcluded(ctx, userID)
	if err != nil {
		return nil, err
	}
	if excluded {
		s.audit(ctx, "session_start", userID, platformID, audit.ResultRejected, string(apperrors.ReasonExclusionActive), nil)
		return &StartResult{
			OK:      false,
			Reason:  apperrors.ReasonExclusionActive,
			Message: fmt.Sprintf("Self-exclusion active until %s", exclusion.EndTime.Format(time.RFC3339)),
		}, nil
	}

	active, err := s.sessions.FindActiveByUser(ctx, userID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("look up active session: %w", err)
	}
	if active != nil {
		s.audit(ctx, "session_start", userID, platformID, audit.ResultRejected, string(apperrors.ReasonAlreadyActive), nil)
		return &StartResult{
			OK:        false,
			Reason:    apperrors.ReasonAlreadyActive,
			Message:   "User already has an active session",
			SessionID: active.SessionID,
		}, nil
	}

	now := s.now().UTC()

	last, err := s.sessions.FindLastEnded(ctx, userID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("look up last session: %w", err)
	}
	if last != nil && last.EndTime != nil {
		elapsed := now.Sub(*last.EndTime).Minutes()
		if elapsed < s.cfg.MandatoryBreakMinutes {
			remaining := s.cfg.MandatoryBreakMinutes - elapsed
			s.audit(ctx, "session_start", userID, platformID, audit.ResultRejected, string(apperrors.ReasonOnCooldown), map[string]string{
				"remaining_minutes": fmt.Sprintf("%.2f", remaining),
			})
			return &StartResult{
				OK:               false,
				Reason:           apperrors.ReasonOnCooldown,
				Message:          fmt.Sprintf("Mandatory break period. Please wait %.0f more minutes", remaining),
				RemainingMinutes: remaining,
			}, nil
		}
	}

	session := &domain.Session{
		SessionID:  uuid.NewString(),
		UserID:     userID,
		PlatformID: platformID,
		StartTime:  now,
		Currency:   currency,
		Status:     domain.SessionActive,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		if errors.Is(err, repository.ErrActiveSessionExists) {
			// lost a race with a concurrent start for the same user
			return &StartResult{
				OK:      false,
				Reason:  apperrors.ReasonAlreadyActive,
				Message: "User already has an active session",
			}, nil
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.audit(ctx, "session_start", userID, platformID, audit.ResultSuccess, "", map[string]string{
		"session_id": session.SessionID,
		"currency":   currency,
	})

	return &StartResult{
		OK:      true,
		Message: "Session started successfully",
		Session: session,
	}, nil
}

// EndResult reports the outcome of an End call.
type EndResult struct {
	OK      bool             `json:"ok"`
	Reason  apperrors.Reason `json:"reason,omitempty"`
	Message string           `json:"message"`
	Session *domain.Session  `json:"session,omitempty"`
}

// End terminates the session. Calling End on an already ended session
// reports already_ended and leaves every field untouched.
func (s *Service) End(ctx context.Context, sessionID string) (*EndResult, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &EndResult{
				OK:      false,
				Reason:  apperrors.ReasonNotFound,
				Message: "Session not found",
			}, nil
		}
		return nil, fmt.Errorf("look up session: %w", err)
	}

	if err := s.locker.lock(ctx, session.UserID); err != nil {
		return nil, err
	}
	defer s.locker.unlock(ctx, session.UserID)

	return s.endLocked(ctx, session)
}

// endLocked performs the actual transition. The caller holds the user lock.
func (s *Service) endLocked(ctx context.Context, session *domain.Session) (*EndResult, error) {
	if !IsTransitionAllowed(session.Status, domain.SessionEnded) {
		return &EndResult{
			OK:      false,
			Reason:  apperrors.ReasonAlreadyEnded,
			Message: "Session already ended",
			Session: session,
		}, nil
	}

	now := s.now().UTC()
	session.EndTime = &now
	transitionRecorder(string(session.Status), string(domain.SessionEnded))
	session.Status = domain.SessionEnded

	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("end session: %w", err)
	}

	s.audit(ctx, "session_end", session.UserID, session.PlatformID, audit.ResultSuccess, "", map[string]string{
		"session_id":       session.SessionID,
		"duration_minutes": fmt.Sprintf("%.2f", session.DurationMinutes(now)),
	})

	return &EndResult{
		OK:      true,
		Message: "Session ended successfully",
		Session: session,
	}, nil
}

// StatsResult reports the outcome of an UpdateStats call.
type StatsResult struct {
	OK      bool             `json:"ok"`
	Reason  apperrors.Reason `json:"reason,omitempty"`
	Message string           `json:"message,omitempty"`
	Session *domain.Session  `json:"session,omitempty"`
}

// UpdateStats accumulates wagered and won amounts on an active session.
// Lost is always recomputed as wagered minus won, so the invariant
// total_lost == total_wagered - total_won holds after every call. No cap is
// enforced here; spending caps are the limit engine's job on the
// transaction itself.
func (s *Service) UpdateStats(ctx context.Context, sessionID string, wagered, won float64) (*StatsResult, error) {
	if wagered < 0 || won < 0 {
		return nil, apperrors.NewValidationError("wagered and won must be non-negative")
	}

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &StatsResult{OK: false, Reason: apperrors.ReasonNotFound, Message: "Session not found"}, nil
		}
		return nil, fmt.Errorf("look up session: %w", err)
	}

	if session.Status == domain.SessionEnded {
		return &StatsResult{OK: false, Reason: apperrors.ReasonAlreadyEnded, Message: "Session already ended"}, nil
	}

	if err := s.locker.lock(ctx, session.UserID); err != nil {
		return nil, err
	}
	defer s.locker.unlock(ctx, session.UserID)

	session.TotalWagered += wagered
	session.TotalWon += won
	session.TotalLost = session.TotalWagered - session.TotalWon

	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("update session stats: %w", err)
	}

	return &StatsResult{OK: true, Session: session}, nil
}

// DurationResult reports the outcome of a CheckDuration call.
type DurationResult struct {
	OK               bool             `json:"ok"`
	Reason           apperrors.Reason `json:"reason,omitempty"`
	Exceeded         bool             `json:"exceeded"`
	Message          string           `json:"message,omitempty"`
	DurationMinutes  float64          `json:"duration_minutes"`
	RemainingMinutes float64          `json:"remaining_minutes,omitempty"`
}

// CheckDuration evaluates elapsed play time for the session. At or past
// the maximum duration an active session is force-ended and the user is
// notified. Otherwise a reality check fires whenever elapsed time lands
// within one minute past a multiple of the check interval; the tolerance
// absorbs pollers that do not hit boundaries exactly.
func (s *Service) CheckDuration(ctx context.Context, sessionID string) (*DurationResult, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &DurationResult{OK: false, Reason: apperrors.ReasonNotFound, Message: "Session not found"}, nil
		}
		return nil, fmt.Errorf("look up session: %w", err)
	}

	now := s.now().UTC()
	elapsed := session.DurationMinutes(now)

	if elapsed >= s.cfg.MaxSessionMinutes {
		if session.Status == domain.SessionActive {
			if err := s.locker.lock(ctx, session.UserID); err != nil {
				return nil, err
			}

			_, endErr := s.endLocked(ctx, session)
			s.locker.unlock(ctx, session.UserID)
			if endErr != nil {
				return nil, endErr
			}

			s.notifier.Send(ctx, session.UserID, domain.NotificationSessionTimeWarning,
				fmt.Sprintf("Your session has been ended after %.0f minutes for your wellbeing", s.cfg.MaxSessionMinutes),
				map[string]string{
					"session_id":       session.SessionID,
					"duration_minutes": fmt.Sprintf("%.2f", elapsed),
				},
			)
		}

		return &DurationResult{
			OK:              true,
			Exceeded:        true,
			Message:         "Maximum session duration exceeded",
			DurationMinutes: elapsed,
		}, nil
	}

	if session.Status == domain.SessionActive && elapsed >= 1 && math.Mod(elapsed, s.cfg.RealityCheckIntervalMinutes) < 1 {
		session.RealityChecksShown++
		if err := s.sessions.Update(ctx, session); err != nil {
			return nil, fmt.Errorf("record reality check: %w", err)
		}

		s.notifier.Send(ctx, session.UserID, domain.NotificationRealityCheck,
			fmt.Sprintf("Reality check: You have been playing for %.0f minutes", elapsed),
			map[string]string{
				"session_id":       session.SessionID,
				"duration_minutes": fmt.Sprintf("%.2f", elapsed),
				"total_wagered":    fmt.Sprintf("%.2f", session.TotalWagered),
				"net_result":       fmt.Sprintf("%.2f", session.NetResult()),
			},
		)
	}

	return &DurationResult{
		OK:               true,
		Exceeded:         false,
		DurationMinutes:  elapsed,
		RemainingMinutes: s.cfg.MaxSessionMinutes - elapsed,
	}, nil
}

// BreakResult reports the outcome of an EnforceBreak call.
type BreakResult struct {
	OK              bool    `json:"ok"`
	Message         string  `json:"message"`
	DurationMinutes float64 `json:"duration_minutes"`
	EndedSessionID  string  `json:"ended_session_id,omitempty"`
}

// EnforceBreak is an administrative operation: it ends the user's active
// session if one exists and notifies the user of the break. The cooldown
// itself is derived from the ended session's end time, so no separate
// cooldown row is written and repeated calls are harmless.
func (s *Service) EnforceBreak(ctx context.Context, userID string, durationMinutes float64) (*BreakResult, error) {
	if durationMinutes <= 0 {
		durationMinutes = s.cfg.MandatoryBreakMinutes
	}

	if err := s.locker.lock(ctx, userID); err != nil {
		return nil, err
	}
	defer s.locker.unlock(ctx, userID)

	var endedSessionID string

	active, err := s.sessions.FindActiveByUser(ctx, userID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("look up active session: %w", err)
	}
	if active != nil {
		if _, err := s.endLocked(ctx, active); err != nil {
			return nil, err
		}
		endedSessionID = active.SessionID
	}

	s.notifier.Send(ctx, userID, domain.NotificationBreakReminder,
		fmt.Sprintf("Taking a %.0f minute break for responsible gaming", durationMinutes),
		map[string]string{
			"duration_minutes": fmt.Sprintf("%.2f", durationMinutes),
		},
	)

	s.audit(ctx, "enforce_break", userID, "", audit.ResultSuccess, "", map[string]string{
		"duration_minutes": fmt.Sprintf("%.2f", durationMinutes),
		"ended_session_id": endedSessionID,
	})

	return &BreakResult{
		OK:              true,
		Message:         fmt.Sprintf("Break enforced for %.0f minutes", durationMinutes),
		DurationMinutes: durationMinutes,
		EndedSessionID:  endedSessionID,
	}, nil
}

// Summary describes the current state of one session.
type Summary struct {
	SessionID          string               `json:"session_id"`
	DurationMinutes    float64              `json:"duration_minutes"`
	TotalWagered       float64              `json:"total_wagered"`
	TotalWon           float64              `json:"total_won"`
	NetResult          float64              `json:"net_result"`
	RealityChecksShown int                  `json:"reality_checks_shown"`
	Status             domain.SessionStatus `json:"status"`
}

// GetSummary returns current stats for the session.
func (s *Service) GetSummary(ctx context.Context, sessionID string) (*Summary, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("Session", sessionID)
		}
		return nil, fmt.Errorf("look up session: %w", err)
	}

	return &Summary{
		SessionID:          session.SessionID,
		DurationMinutes:    session.DurationMinutes(s.now().UTC()),
		TotalWagered:       session.TotalWagered,
		TotalWon:           session.TotalWon,
		NetResult:          session.NetResult(),
		RealityChecksShown: session.RealityChecksShown,
		Status:             session.Status,
	}, nil
}

// RecentSessions returns up to limit of the user's most recent sessions.
func (s *Service) RecentSessions(ctx context.Context, userID string, limit int) ([]*domain.Session, error) {
	if limit <= 0 {
		limit = 10
	}

	return s.sessions.RecentByUser(ctx, userID, limit)
}

func (s *Service) audit(ctx context.Context, action, userID, platformID, result, reason string, details map[string]string) {
	if s.auditor == nil {
		return
	}

	if _, err := s.auditor.Log(ctx, audit.Entry{
		ActionType: action,
		UserID:     userID,
		PlatformID: platformID,
		Details:    details,
		Result:     result,
		Reason:     reason,
	}); err != nil {
		s.log.Error("failed to audit session action", slog.String("action", action), slog.Any("error", err))
	}
}
