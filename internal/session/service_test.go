package session

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/playguard/playguard/internal/domain"
	apperrors "github.com/playguard/playguard/internal/errors"
	"github.com/playguard/playguard/internal/repository"
)

type mockSessionRepo struct {
	mock.Mock
}

func (m *mockSessionRepo) FindByID(ctx context.Context, sessionID string) (*domain.Session, error) {
	args := m.Called(ctx, sessionID)
	session, _ := args.Get(0).(*domain.Session)
	return session, args.Error(1)
}

func (m *mockSessionRepo) FindActiveByUser(ctx context.Context, userID string) (*domain.Session, error) {
	args := m.Called(ctx, userID)
	session, _ := args.Get(0).(*domain.Session)
	return session, args.Error(1)
}

func (m *mockSessionRepo) FindLastEnded(ctx context.Context, userID string) (*domain.Session, error) {
	args := m.Called(ctx, userID)
	session, _ := args.Get(0).(*domain.Session)
	return session, args.Error(1)
}

func (m *mockSessionRepo) FindByUserSince(ctx context.Context, userID string, since time.Time) ([]*domain.Session, error) {
	args := m.Called(ctx, userID, since)
	sessions, _ := args.Get(0).([]*domain.Session)
	return sessions, args.Error(1)
}

func (m *mockSessionRepo) RecentByUser(ctx context.Context, userID string, limit int) ([]*domain.Session, error) {
	args := m.Called(ctx, userID, limit)
	sessions, _ := args.Get(0).([]*domain.Session)
	return sessions, args.Error(1)
}

func (m *mockSessionRepo) ListActive(ctx context.Context) ([]*domain.Session, error) {
	args := m.Called(ctx)
	sessions, _ := args.Get(0).([]*domain.Session)
	return sessions, args.Error(1)
}

func (m *mockSessionRepo) CountActive(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockSessionRepo) UsersWithSessionsSince(ctx context.Context, since time.Time) ([]string, error) {
	args := m.Called(ctx, since)
	userIDs, _ := args.Get(0).([]string)
	return userIDs, args.Error(1)
}

func (m *mockSessionRepo) Create(ctx context.Context, session *domain.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *mockSessionRepo) Update(ctx context.Context, session *domain.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

type mockGuard struct {
	mock.Mock
}

func (m *mockGuard) IsExcluded(ctx context.Context, userID string) (bool, *domain.SelfExclusion, error) {
	args := m.Called(ctx, userID)
	exclusion, _ := args.Get(1).(*domain.SelfExclusion)
	return args.Bool(0), exclusion, args.Error(2)
}

type sentNotification struct {
	userID   string
	kind     domain.NotificationType
	message  string
	metadata map[string]string
}

type captureNotifier struct {
	sent []sentNotification
}

func (c *captureNotifier) Send(ctx context.Context, userID string, kind domain.NotificationType, message string, metadata map[string]string) {
	c.sent = append(c.sent, sentNotification{userID: userID, kind: kind, message: message, metadata: metadata})
}

func testConfig() Config {
	return Config{
		MaxSessionMinutes:           120,
		RealityCheckIntervalMinutes: 30,
		MandatoryBreakMinutes:       15,
	}
}

func testService(repo *mockSessionRepo, guard *mockGuard, notifier *captureNotifier) *Service {
	svc := NewService(repo, guard, notifier, nil, testConfig(), nil, testLogger())
	svc.now = func() time.Time {
		return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	}
	return svc
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestService_Start(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		name           string
		setupMocks     func(repo *mockSessionRepo, guard *mockGuard)
		expectOK       bool
		expectReason   apperrors.Reason
		checkRemaining func(t *testing.T, result *StartResult)
	}{
		{
			name: "starts when no session exists",
			setupMocks: func(repo *mockSessionRepo, guard *mockGuard) {
				guard.On("IsExcluded", mock.Anything, "user-1").Return(false, nil, nil).Once()
				repo.On("FindActiveByUser", mock.Anything, "user-1").Return(nil, sql.ErrNoRows).Once()
				repo.On("FindLastEnded", mock.Anything, "user-1").Return(nil, sql.ErrNoRows).Once()
				repo.On("Create", mock.Anything, mock.MatchedBy(func(s *domain.Session) bool {
					return s.UserID == "user-1" && s.Status == domain.SessionActive && s.Currency == DefaultCurrency
				})).Return(nil).Once()
			},
			expectOK: true,
		},
		{
			name: "rejects when session already active",
			setupMocks: func(repo *mockSessionRepo, guard *mockGuard) {
				guard.On("IsExcluded", mock.Anything, "user-1").Return(false, nil, nil).Once()
				repo.On("FindActiveByUser", mock.Anything, "user-1").Return(&domain.Session{
					SessionID: "existing-session",
					UserID:    "user-1",
					Status:    domain.SessionActive,
				}, nil).Once()
			},
			expectOK:     false,
			expectReason: apperrors.ReasonAlreadyActive,
		},
		{
			name: "rejects during self-exclusion",
			setupMocks: func(repo *mockSessionRepo, guard *mockGuard) {
				guard.On("IsExcluded", mock.Anything, "user-1").Return(true, &domain.SelfExclusion{
					UserID:  "user-1",
					EndTime: now.AddDate(0, 0, 30),
				}, nil).Once()
			},
			expectOK:     false,
			expectReason: apperrors.ReasonExclusionActive,
		},
		{
			name: "rejects during mandatory break",
			setupMocks: func(repo *mockSessionRepo, guard *mockGuard) {
				guard.On("IsExcluded", mock.Anything, "user-1").Return(false, nil, nil).Once()
				repo.On("FindActiveByUser", mock.Anything, "user-1").Return(nil, sql.ErrNoRows).Once()
				endedAt := now.Add(-10 * time.Minute)
				repo.On("FindLastEnded", mock.Anything, "user-1").Return(&domain.Session{
					SessionID: "ended-session",
					UserID:    "user-1",
					Status:    domain.SessionEnded,
					EndTime:   &endedAt,
				}, nil).Once()
			},
			expectOK:     false,
			expectReason: apperrors.ReasonOnCooldown,
			checkRemaining: func(t *testing.T, result *StartResult) {
				assert.InDelta(t, 5.0, result.RemainingMinutes, 0.01)
			},
		},
		{
			name: "starts at exact end of mandatory break",
			setupMocks: func(repo *mockSessionRepo, guard *mockGuard) {
				guard.On("IsExcluded", mock.Anything, "user-1").Return(false, nil, nil).Once()
				repo.On("FindActiveByUser", mock.Anything, "user-1").Return(nil, sql.ErrNoRows).Once()
				endedAt := now.Add(-15 * time.Minute)
				repo.On("FindLastEnded", mock.Anything, "user-1").Return(&domain.Session{
					SessionID: "ended-session",
					UserID:    "user-1",
					Status:    domain.SessionEnded,
					EndTime:   &endedAt,
				}, nil).Once()
				repo.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
			},
			expectOK: true,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			repo := &mockSessionRepo{}
			guard := &mockGuard{}
			tc.setupMocks(repo, guard)

			svc := testService(repo, guard, &captureNotifier{})

			result, err := svc.Start(ctx, "user-1", "platform-1", "")
			require.NoError(t, err)
			assert.Equal(t, tc.expectOK, result.OK)
			assert.Equal(t, tc.expectReason, result.Reason)
			if tc.checkRemaining != nil {
				tc.checkRemaining(t, result)
			}

			repo.AssertExpectations(t)
			guard.AssertExpectations(t)
		})
	}
}

func TestService_Start_LosesCreateRace(t *testing.T) {
	repo := &mockSessionRepo{}
	guard := &mockGuard{}
	guard.On("IsExcluded", mock.Anything, "user-1").Return(false, nil, nil).Once()
	repo.On("FindActiveByUser", mock.Anything, "user-1").Return(nil, sql.ErrNoRows).Once()
	repo.On("FindLastEnded", mock.Anything, "user-1").Return(nil, sql.ErrNoRows).Once()
	repo.On("Create", mock.Anything, mock.Anything).Return(repository.ErrActiveSessionExists).Once()

	svc := testService(repo, guard, &captureNotifier{})

	result, err := svc.Start(context.Background(), "user-1", "platform-1", "")
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Equal(t, apperrors.ReasonAlreadyActive, result.Reason)
	repo.AssertExpectations(t)
}

func TestService_Start_ValidatesInput(t *testing.T) {
	svc := testService(&mockSessionRepo{}, &mockGuard{}, &captureNotifier{})

	_, err := svc.Start(context.Background(), "", "platform-1", "")
	require.Error(t, err)

	_, err = svc.Start(context.Background(), "user-1", "", "")
	require.Error(t, err)
}

func TestService_End(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("ends an active session", func(t *testing.T) {
		repo := &mockSessionRepo{}
		repo.On("FindByID", mock.Anything, "session-1").Return(&domain.Session{
			SessionID: "session-1",
			UserID:    "user-1",
			StartTime: now.Add(-45 * time.Minute),
			Status:    domain.SessionActive,
		}, nil).Once()
		repo.On("Update", mock.Anything, mock.MatchedBy(func(s *domain.Session) bool {
			return s.Status == domain.SessionEnded && s.EndTime != nil && s.EndTime.Equal(now)
		})).Return(nil).Once()

		svc := testService(repo, &mockGuard{}, &captureNotifier{})

		result, err := svc.End(ctx, "session-1")
		require.NoError(t, err)
		assert.True(t, result.OK)
		assert.Equal(t, domain.SessionEnded, result.Session.Status)
		repo.AssertExpectations(t)
	})

	t.Run("ending twice reports already ended", func(t *testing.T) {
		endedAt := now.Add(-5 * time.Minute)
		repo := &mockSessionRepo{}
		repo.On("FindByID", mock.Anything, "session-1").Return(&domain.Session{
			SessionID: "session-1",
			UserID:    "user-1",
			StartTime: now.Add(-45 * time.Minute),
			EndTime:   &endedAt,
			Status:    domain.SessionEnded,
		}, nil).Once()

		svc := testService(repo, &mockGuard{}, &captureNotifier{})

		result, err := svc.End(ctx, "session-1")
		require.NoError(t, err)
		assert.False(t, result.OK)
		assert.Equal(t, apperrors.ReasonAlreadyEnded, result.Reason)
		assert.True(t, result.Session.EndTime.Equal(endedAt), "end time must stay untouched")
		repo.AssertExpectations(t)
	})

	t.Run("unknown session reports not found", func(t *testing.T) {
		repo := &mockSessionRepo{}
		repo.On("FindByID", mock.Anything, "missing").Return(nil, sql.ErrNoRows).Once()

		svc := testService(repo, &mockGuard{}, &captureNotifier{})

		result, err := svc.End(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, result.OK)
		assert.Equal(t, apperrors.ReasonNotFound, result.Reason)
	})
}

func TestService_UpdateStats(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("accumulates and recomputes lost", func(t *testing.T) {
		repo := &mockSessionRepo{}
		repo.On("FindByID", mock.Anything, "session-1").Return(&domain.Session{
			SessionID:    "session-1",
			UserID:       "user-1",
			StartTime:    now.Add(-10 * time.Minute),
			TotalWagered: 100,
			TotalWon:     40,
			TotalLost:    60,
			Status:       domain.SessionActive,
		}, nil).Once()
		repo.On("Update", mock.Anything, mock.MatchedBy(func(s *domain.Session) bool {
			return s.TotalWagered == 150 && s.TotalWon == 60 && s.TotalLost == 90
		})).Return(nil).Once()

		svc := testService(repo, &mockGuard{}, &captureNotifier{})

		result, err := svc.UpdateStats(ctx, "session-1", 50, 20)
		require.NoError(t, err)
		assert.True(t, result.OK)
		assert.Equal(t, result.Session.TotalWagered-result.Session.TotalWon, result.Session.TotalLost)
		repo.AssertExpectations(t)
	})

	t.Run("rejects ended session", func(t *testing.T) {
		repo := &mockSessionRepo{}
		repo.On("FindByID", mock.Anything, "session-1").Return(&domain.Session{
			SessionID: "session-1",
			UserID:    "user-1",
			Status:    domain.SessionEnded,
		}, nil).Once()

		svc := testService(repo, &mockGuard{}, &captureNotifier{})

		result, err := svc.UpdateStats(ctx, "session-1", 50, 20)
		require.NoError(t, err)
		assert.False(t, result.OK)
		assert.Equal(t, apperrors.ReasonAlreadyEnded, result.Reason)
	})

	t.Run("rejects negative amounts", func(t *testing.T) {
		svc := testService(&mockSessionRepo{}, &mockGuard{}, &captureNotifier{})

		_, err := svc.UpdateStats(ctx, "session-1", -1, 0)
		require.Error(t, err)
	})
}

func TestService_CheckDuration(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("force ends at exact maximum duration", func(t *testing.T) {
		repo := &mockSessionRepo{}
		repo.On("FindByID", mock.Anything, "session-1").Return(&domain.Session{
			SessionID: "session-1",
			UserID:    "user-1",
			StartTime: now.Add(-120 * time.Minute),
			Status:    domain.SessionActive,
		}, nil).Once()
		repo.On("Update", mock.Anything, mock.MatchedBy(func(s *domain.Session) bool {
			return s.Status == domain.SessionEnded
		})).Return(nil).Once()

		notifier := &captureNotifier{}
		svc := testService(repo, &mockGuard{}, notifier)

		result, err := svc.CheckDuration(ctx, "session-1")
		require.NoError(t, err)
		assert.True(t, result.Exceeded)
		assert.InDelta(t, 120.0, result.DurationMinutes, 0.01)

		require.Len(t, notifier.sent, 1)
		assert.Equal(t, domain.NotificationSessionTimeWarning, notifier.sent[0].kind)
		repo.AssertExpectations(t)
	})

	t.Run("already ended session reports exceeded without re-ending", func(t *testing.T) {
		endedAt := now.Add(-5 * time.Minute)
		repo := &mockSessionRepo{}
		repo.On("FindByID", mock.Anything, "session-1").Return(&domain.Session{
			SessionID: "session-1",
			UserID:    "user-1",
			StartTime: now.Add(-130 * time.Minute),
			EndTime:   &endedAt,
			Status:    domain.SessionEnded,
		}, nil).Once()

		notifier := &captureNotifier{}
		svc := testService(repo, &mockGuard{}, notifier)

		result, err := svc.CheckDuration(ctx, "session-1")
		require.NoError(t, err)
		assert.True(t, result.Exceeded)
		assert.Empty(t, notifier.sent)
		repo.AssertExpectations(t)
	})

	t.Run("fires reality check on interval boundary", func(t *testing.T) {
		repo := &mockSessionRepo{}
		repo.On("FindByID", mock.Anything, "session-1").Return(&domain.Session{
			SessionID: "session-1",
			UserID:    "user-1",
			StartTime: now.Add(-30 * time.Minute),
			Status:    domain.SessionActive,
		}, nil).Once()
		repo.On("Update", mock.Anything, mock.MatchedBy(func(s *domain.Session) bool {
			return s.RealityChecksShown == 1
		})).Return(nil).Once()

		notifier := &captureNotifier{}
		svc := testService(repo, &mockGuard{}, notifier)

		result, err := svc.CheckDuration(ctx, "session-1")
		require.NoError(t, err)
		assert.False(t, result.Exceeded)
		assert.InDelta(t, 90.0, result.RemainingMinutes, 0.01)

		require.Len(t, notifier.sent, 1)
		assert.Equal(t, domain.NotificationRealityCheck, notifier.sent[0].kind)
		repo.AssertExpectations(t)
	})

	t.Run("no reality check between intervals", func(t *testing.T) {
		repo := &mockSessionRepo{}
		repo.On("FindByID", mock.Anything, "session-1").Return(&domain.Session{
			SessionID: "session-1",
			UserID:    "user-1",
			StartTime: now.Add(-20 * time.Minute),
			Status:    domain.SessionActive,
		}, nil).Once()

		notifier := &captureNotifier{}
		svc := testService(repo, &mockGuard{}, notifier)

		result, err := svc.CheckDuration(ctx, "session-1")
		require.NoError(t, err)
		assert.False(t, result.Exceeded)
		assert.Empty(t, notifier.sent)
		repo.AssertExpectations(t)
	})

	t.Run("no reality check in the first minute", func(t *testing.T) {
		repo := &mockSessionRepo{}
		repo.On("FindByID", mock.Anything, "session-1").Return(&domain.Session{
			SessionID: "session-1",
			UserID:    "user-1",
			StartTime: now.Add(-30 * time.Second),
			Status:    domain.SessionActive,
		}, nil).Once()

		notifier := &captureNotifier{}
		svc := testService(repo, &mockGuard{}, notifier)

		result, err := svc.CheckDuration(ctx, "session-1")
		require.NoError(t, err)
		assert.False(t, result.Exceeded)
		assert.Empty(t, notifier.sent)
	})
}

func TestService_EnforceBreak(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("ends active session and notifies", func(t *testing.T) {
		repo := &mockSessionRepo{}
		repo.On("FindActiveByUser", mock.Anything, "user-1").Return(&domain.Session{
			SessionID: "session-1",
			UserID:    "user-1",
			StartTime: now.Add(-10 * time.Minute),
			Status:    domain.SessionActive,
		}, nil).Once()
		repo.On("Update", mock.Anything, mock.MatchedBy(func(s *domain.Session) bool {
			return s.Status == domain.SessionEnded
		})).Return(nil).Once()

		notifier := &captureNotifier{}
		svc := testService(repo, &mockGuard{}, notifier)

		result, err := svc.EnforceBreak(ctx, "user-1", 0)
		require.NoError(t, err)
		assert.True(t, result.OK)
		assert.Equal(t, "session-1", result.EndedSessionID)
		assert.InDelta(t, 15.0, result.DurationMinutes, 0.01)

		require.Len(t, notifier.sent, 1)
		assert.Equal(t, domain.NotificationBreakReminder, notifier.sent[0].kind)
		repo.AssertExpectations(t)
	})

	t.Run("harmless without an active session", func(t *testing.T) {
		repo := &mockSessionRepo{}
		repo.On("FindActiveByUser", mock.Anything, "user-1").Return(nil, sql.ErrNoRows).Once()

		notifier := &captureNotifier{}
		svc := testService(repo, &mockGuard{}, notifier)

		result, err := svc.EnforceBreak(ctx, "user-1", 30)
		require.NoError(t, err)
		assert.True(t, result.OK)
		assert.Empty(t, result.EndedSessionID)
		assert.InDelta(t, 30.0, result.DurationMinutes, 0.01)
	})
}
