package user

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

	"github.com/playguard/playguard/internal/blockchain"
	"github.com/playguard/playguard/internal/domain"
)

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

type stubVerifier struct {
	result blockchain.VerifyResult
	calls  int
}

func (s *stubVerifier) VerifyIdentity(ctx context.Context, wallet string) blockchain.VerifyResult {
	s.calls++
	return s.result
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testService(repo *mockUserRepo, verifier Verifier) *Service {
	svc := NewService(repo, nil, verifier, testLogger())
	svc.now = func() time.Time {
		return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	}
	return svc
}

func TestService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("verifies the wallet through the bridge", func(t *testing.T) {
		repo := &mockUserRepo{}
		repo.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
			return u.WalletAddress == "wallet-1" && u.IsVerified && u.IsActive && u.ID != ""
		})).Return(nil).Once()

		verifier := &stubVerifier{result: blockchain.VerifyResult{Verified: true}}

		result, err := testService(repo, verifier).Register(ctx, "wallet-1")
		require.NoError(t, err)
		assert.True(t, result.User.IsVerified)
		assert.False(t, result.VerificationMock)
		assert.Equal(t, 1, verifier.calls)
		repo.AssertExpectations(t)
	})

	t.Run("bridge outage degrades to a mock verification", func(t *testing.T) {
		repo := &mockUserRepo{}
		repo.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

		verifier := &stubVerifier{result: blockchain.VerifyResult{Verified: true, Mock: true}}

		result, err := testService(repo, verifier).Register(ctx, "wallet-1")
		require.NoError(t, err)
		assert.True(t, result.VerificationMock)
	})

	t.Run("registers without a wallet", func(t *testing.T) {
		repo := &mockUserRepo{}
		repo.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
			return u.WalletAddress == "" && !u.IsVerified
		})).Return(nil).Once()

		verifier := &stubVerifier{}

		result, err := testService(repo, verifier).Register(ctx, "")
		require.NoError(t, err)
		assert.False(t, result.User.IsVerified)
		assert.Zero(t, verifier.calls)
	})
}

func TestService_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("loads from the repository", func(t *testing.T) {
		repo := &mockUserRepo{}
		repo.On("FindByID", mock.Anything, "user-1").Return(&domain.User{
			ID:       "user-1",
			IsActive: true,
		}, nil).Once()

		user, err := testService(repo, nil).Get(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, "user-1", user.ID)
	})

	t.Run("maps a missing row to not found", func(t *testing.T) {
		repo := &mockUserRepo{}
		repo.On("FindByID", mock.Anything, "missing").Return(nil, sql.ErrNoRows).Once()

		_, err := testService(repo, nil).Get(ctx, "missing")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing")
	})
}

func TestService_UpdateWallet(t *testing.T) {
	ctx := context.Background()

	t.Run("re-verifies the new wallet", func(t *testing.T) {
		repo := &mockUserRepo{}
		repo.On("FindByID", mock.Anything, "user-1").Return(&domain.User{
			ID:            "user-1",
			WalletAddress: "old-wallet",
			IsVerified:    true,
			IsActive:      true,
		}, nil).Once()
		repo.On("Update", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
			return u.WalletAddress == "new-wallet" && !u.IsVerified
		})).Return(nil).Once()

		verifier := &stubVerifier{result: blockchain.VerifyResult{Verified: false}}

		user, err := testService(repo, verifier).UpdateWallet(ctx, "user-1", "new-wallet")
		require.NoError(t, err)
		assert.Equal(t, "new-wallet", user.WalletAddress)
		assert.False(t, user.IsVerified)
		repo.AssertExpectations(t)
	})

	t.Run("rejects an empty wallet", func(t *testing.T) {
		_, err := testService(&mockUserRepo{}, nil).UpdateWallet(ctx, "user-1", "")
		require.Error(t, err)
	})
}

func TestService_Deactivate(t *testing.T) {
	ctx := context.Background()

	t.Run("flips the active flag", func(t *testing.T) {
		repo := &mockUserRepo{}
		repo.On("FindByID", mock.Anything, "user-1").Return(&domain.User{
			ID:       "user-1",
			IsActive: true,
		}, nil).Once()
		repo.On("Update", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
			return !u.IsActive
		})).Return(nil).Once()

		require.NoError(t, testService(repo, nil).Deactivate(ctx, "user-1"))
		repo.AssertExpectations(t)
	})

	t.Run("no write when already inactive", func(t *testing.T) {
		repo := &mockUserRepo{}
		repo.On("FindByID", mock.Anything, "user-1").Return(&domain.User{
			ID:       "user-1",
			IsActive: false,
		}, nil).Once()

		require.NoError(t, testService(repo, nil).Deactivate(ctx, "user-1"))
		repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})
}
