package exclusion

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
)

type mockExclusionRepo struct {
	mock.Mock
}

func (m *mockExclusionRepo) FindUnexpired(ctx context.Context, userID string, now time.Time) (*domain.SelfExclusion, error) {
	args := m.Called(ctx, userID, now)
	exclusion, _ := args.Get(0).(*domain.SelfExclusion)
	return exclusion, args.Error(1)
}

func (m *mockExclusionRepo) FindByUser(ctx context.Context, userID string) ([]*domain.SelfExclusion, error) {
	args := m.Called(ctx, userID)
	exclusions, _ := args.Get(0).([]*domain.SelfExclusion)
	return exclusions, args.Error(1)
}

func (m *mockExclusionRepo) Create(ctx context.Context, exclusion *domain.SelfExclusion) error {
	args := m.Called(ctx, exclusion)
	return args.Error(0)
}

func (m *mockExclusionRepo) MarkRemoved(ctx context.Context, userID string, now time.Time) (int64, error) {
	args := m.Called(ctx, userID, now)
	return args.Get(0).(int64), args.Error(1)
}

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func (m *mockUserRepo) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepo) Update(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepo) SetSelfExcluded(ctx context.Context, id string, excluded bool) error {
	args := m.Called(ctx, id, excluded)
	return args.Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testGuard(exclusions *mockExclusionRepo, users *mockUserRepo) *Guard {
	guard := NewGuard(exclusions, users, nil, testLogger())
	guard.now = func() time.Time {
		return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	}
	return guard
}

func TestGuard_IsExcluded(t *testing.T) {
	ctx := context.Background()

	t.Run("not excluded without an unexpired row", func(t *testing.T) {
		exclusions := &mockExclusionRepo{}
		exclusions.On("FindUnexpired", mock.Anything, "user-1", mock.Anything).
			Return(nil, sql.ErrNoRows).Once()

		excluded, exclusion, err := testGuard(exclusions, &mockUserRepo{}).IsExcluded(ctx, "user-1")
		require.NoError(t, err)
		assert.False(t, excluded)
		assert.Nil(t, exclusion)
	})

	t.Run("excluded when a row is unexpired", func(t *testing.T) {
		active := &domain.SelfExclusion{
			ID:      "exclusion-1",
			UserID:  "user-1",
			EndTime: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		}
		exclusions := &mockExclusionRepo{}
		exclusions.On("FindUnexpired", mock.Anything, "user-1", mock.Anything).
			Return(active, nil).Once()

		excluded, exclusion, err := testGuard(exclusions, &mockUserRepo{}).IsExcluded(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, excluded)
		assert.Equal(t, "exclusion-1", exclusion.ID)
	})
}

func TestGuard_Add(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("creates the interval and flags the user", func(t *testing.T) {
		exclusions := &mockExclusionRepo{}
		users := &mockUserRepo{}
		exclusions.On("FindUnexpired", mock.Anything, "user-1", mock.Anything).
			Return(nil, sql.ErrNoRows).Once()
		exclusions.On("Create", mock.Anything, mock.MatchedBy(func(e *domain.SelfExclusion) bool {
			return e.UserID == "user-1" && e.EndTime.Equal(now.AddDate(0, 0, 30)) && !e.Removed
		})).Return(nil).Once()
		users.On("SetSelfExcluded", mock.Anything, "user-1", true).Return(nil).Once()

		result, err := testGuard(exclusions, users).Add(ctx, "user-1", 30, "voluntary")
		require.NoError(t, err)
		assert.True(t, result.OK)
		require.NotNil(t, result.Exclusion)
		assert.Equal(t, "voluntary", result.Exclusion.Reason)
		exclusions.AssertExpectations(t)
		users.AssertExpectations(t)
	})

	t.Run("does not stack a second interval", func(t *testing.T) {
		existingEnd := now.AddDate(0, 0, 10)
		exclusions := &mockExclusionRepo{}
		exclusions.On("FindUnexpired", mock.Anything, "user-1", mock.Anything).
			Return(&domain.SelfExclusion{ID: "exclusion-1", UserID: "user-1", EndTime: existingEnd}, nil).Once()

		result, err := testGuard(exclusions, &mockUserRepo{}).Add(ctx, "user-1", 30, "")
		require.NoError(t, err)
		assert.False(t, result.OK)
		require.NotNil(t, result.ExistingEnd)
		assert.True(t, result.ExistingEnd.Equal(existingEnd))
		exclusions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("rejects non positive duration", func(t *testing.T) {
		_, err := testGuard(&mockExclusionRepo{}, &mockUserRepo{}).Add(ctx, "user-1", 0, "")
		require.Error(t, err)
	})
}

func TestGuard_Remove(t *testing.T) {
	ctx := context.Background()

	t.Run("deactivates and clears the flag", func(t *testing.T) {
		exclusions := &mockExclusionRepo{}
		users := &mockUserRepo{}
		exclusions.On("MarkRemoved", mock.Anything, "user-1", mock.Anything).Return(int64(1), nil).Once()
		users.On("SetSelfExcluded", mock.Anything, "user-1", false).Return(nil).Once()

		result, err := testGuard(exclusions, users).Remove(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, result.OK)
		assert.Equal(t, int64(1), result.Removed)
		users.AssertExpectations(t)
	})

	t.Run("nothing to remove", func(t *testing.T) {
		exclusions := &mockExclusionRepo{}
		users := &mockUserRepo{}
		exclusions.On("MarkRemoved", mock.Anything, "user-1", mock.Anything).Return(int64(0), nil).Once()

		result, err := testGuard(exclusions, users).Remove(ctx, "user-1")
		require.NoError(t, err)
		assert.False(t, result.OK)
		users.AssertNotCalled(t, "SetSelfExcluded", mock.Anything, mock.Anything, mock.Anything)
	})
}
