package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/playguard/playguard/internal/domain"
)

// ErrActiveSessionExists signals that the one-active-session-per-user
// constraint rejected an insert.
var ErrActiveSessionExists = errors.New("user already has an active session")

const uniqueViolationCode = "23505"

// SessionRepository defines persistence operations for gaming sessions.
type SessionRepository interface {
	FindByID(ctx context.Context, sessionID string) (*domain.Session, error)
	FindActiveByUser(ctx context.Context, userID string) (*domain.Session, error)
	FindLastEnded(ctx context.Context, userID string) (*domain.Session, error)
	FindByUserSince(ctx context.Context, userID string, since time.Time) ([]*domain.Session, error)
	RecentByUser(ctx context.Context, userID string, limit int) ([]*domain.Session, error)
	ListActive(ctx context.Context) ([]*domain.Session, error)
	CountActive(ctx context.Context) (int, error)
	UsersWithSessionsSince(ctx context.Context, since time.Time) ([]string, error)
	Create(ctx context.Context, session *domain.Session) error
	Update(ctx context.Context, session *domain.Session) error
}

type sessionRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewSessionRepository creates a new SQL-backed session repository.
func NewSessionRepository(db *sql.DB, log *slog.Logger) SessionRepository {
	return &sessionRepository{
		db:  db,
		log: log,
	}
}

const sessionColumns = `
	session_id, user_id, platform_id, start_time, end_time,
	total_wagered, total_won, total_lost, reality_checks_shown, currency, status
`

func scanSession(row interface{ Scan(...any) error }) (*domain.Session, error) {
	var session domain.Session
	if err := row.Scan(
		&session.SessionID,
		&session.UserID,
		&session.PlatformID,
		&session.StartTime,
		&session.EndTime,
		&session.TotalWagered,
		&session.TotalWon,
		&session.TotalLost,
		&session.RealityChecksShown,
		&session.Currency,
		&session.Status,
	); err != nil {
		return nil, err
	}

	return &session, nil
}

// FindByID retrieves a session by its identifier.
func (r *sessionRepository) FindByID(ctx context.Context, sessionID string) (*domain.Session, error) {
	const query = `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE session_id = $1
	`

	session, err := scanSession(r.db.QueryRowContext(ctx, query, sessionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}

		if r.log != nil {
			r.log.Error("failed to fetch session", slog.String("session_id", sessionID), slog.Any("error", err))
		}
		return nil, fmt.Errorf("select session: %w", err)
	}

	return session, nil
}

// FindActiveByUser returns the user's active session, or sql.ErrNoRows.
func (r *sessionRepository) FindActiveByUser(ctx context.Context, userID string) (*domain.Session, error) {
	const query = `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1 AND status = 'active'
	`

	session, err := scanSession(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}

		if r.log != nil {
			r.log.Error("failed to fetch active session", slog.String("user_id", userID), slog.Any("error", err))
		}
		return nil, fmt.Errorf("select active session: %w", err)
	}

	return session, nil
}

// FindLastEnded returns the most recently ended session for the user.
func (r *sessionRepository) FindLastEnded(ctx context.Context, userID string) (*domain.Session, error) {
	const query = `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1 AND status = 'ended'
		ORDER BY end_time DESC
		LIMIT 1
	`

	session, err := scanSession(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}

		if r.log != nil {
			r.log.Error("failed to fetch last ended session", slog.String("user_id", userID), slog.Any("error", err))
		}
		return nil, fmt.Errorf("select last ended session: %w", err)
	}

	return session, nil
}

// FindByUserSince returns every session started at or after the given
// instant, ordered by start time.
func (r *sessionRepository) FindByUserSince(ctx context.Context, userID string, since time.Time) ([]*domain.Session, error) {
	const query = `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1 AND start_time >= $2
		ORDER BY start_time ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID, since)
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to query sessions", slog.String("user_id", userID), slog.Any("error", err))
		}
		return nil, fmt.Errorf("select sessions since: %w", err)
	}
	defer rows.Close()

	return collectSessions(rows)
}

// RecentByUser returns up to limit sessions ordered by most recent start.
func (r *sessionRepository) RecentByUser(ctx context.Context, userID string, limit int) ([]*domain.Session, error) {
	const query = `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1
		ORDER BY start_time DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to query recent sessions", slog.String("user_id", userID), slog.Any("error", err))
		}
		return nil, fmt.Errorf("select recent sessions: %w", err)
	}
	defer rows.Close()

	return collectSessions(rows)
}

// ListActive returns every active session across all users, oldest first.
// Used by the duration sweep.
func (r *sessionRepository) ListActive(ctx context.Context) ([]*domain.Session, error) {
	const query = `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE status = 'active'
		ORDER BY start_time ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to query active sessions", slog.Any("error", err))
		}
		return nil, fmt.Errorf("select active sessions: %w", err)
	}
	defer rows.Close()

	return collectSessions(rows)
}

// CountActive returns the number of active sessions across all users.
func (r *sessionRepository) CountActive(ctx context.Context) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM sessions
		WHERE status = 'active'
	`

	var count int
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		if r.log != nil {
			r.log.Error("failed to count active sessions", slog.Any("error", err))
		}
		return 0, fmt.Errorf("count active sessions: %w", err)
	}

	return count, nil
}

// UsersWithSessionsSince returns the distinct users that started a
// session at or after the given instant. Used by the risk sweep.
func (r *sessionRepository) UsersWithSessionsSince(ctx context.Context, since time.Time) ([]string, error) {
	const query = `
		SELECT DISTINCT user_id
		FROM sessions
		WHERE start_time >= $1
	`

	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to query recently active users", slog.Any("error", err))
		}
		return nil, fmt.Errorf("select recently active users: %w", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		userIDs = append(userIDs, userID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user rows: %w", err)
	}

	return userIDs, nil
}

func collectSessions(rows *sql.Rows) ([]*domain.Session, error) {
	var sessions []*domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}

	return sessions, nil
}

// Create persists a new session. The sessions table carries a partial
// unique index on (user_id) WHERE status = 'active', so a concurrent start
// for the same user fails here with ErrActiveSessionExists.
func (r *sessionRepository) Create(ctx context.Context, session *domain.Session) error {
	const query = `
		INSERT INTO sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	if _, err := r.db.ExecContext(
		ctx,
		query,
		session.SessionID,
		session.UserID,
		session.PlatformID,
		session.StartTime,
		session.EndTime,
		session.TotalWagered,
		session.TotalWon,
		session.TotalLost,
		session.RealityChecksShown,
		session.Currency,
		session.Status,
	); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolationCode {
			return ErrActiveSessionExists
		}

		if r.log != nil {
			r.log.Error("failed to create session", slog.String("user_id", session.UserID), slog.Any("error", err))
		}
		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

// Update saves mutable fields of an existing session.
func (r *sessionRepository) Update(ctx context.Context, session *domain.Session) error {
	const query = `
		UPDATE sessions
		SET end_time = $2, total_wagered = $3, total_won = $4, total_lost = $5,
		    reality_checks_shown = $6, status = $7
		WHERE session_id = $1
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		session.SessionID,
		session.EndTime,
		session.TotalWagered,
		session.TotalWon,
		session.TotalLost,
		session.RealityChecksShown,
		session.Status,
	)
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to update session", slog.String("session_id", session.SessionID), slog.Any("error", err))
		}
		return fmt.Errorf("update session: %w", err)
	}

	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}
