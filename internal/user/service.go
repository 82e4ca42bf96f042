// Package user manages player registration and profile state.
package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/playguard/playguard/internal/blockchain"
	"github.com/playguard/playguard/internal/domain"
	apperrors "github.com/playguard/playguard/internal/errors"
	"github.com/playguard/playguard/internal/repository"
	"github.com/playguard/playguard/internal/usercache"
)

const cacheTTL = 5 * time.Minute

// Verifier checks wallet ownership against the blockchain bridge.
type Verifier interface {
	VerifyIdentity(ctx context.Context, wallet string) blockchain.VerifyResult
}

// Service provides business operations over users.
type Service struct {
	repo     repository.UserRepository
	cache    *usercache.Cache
	verifier Verifier
	log      *slog.Logger
	now      func() time.Time
}

// NewService constructs a new Service instance. cache and verifier may be
// nil; the service then skips caching and marks new users unverified.
func NewService(repo repository.UserRepository, cache *usercache.Cache, verifier Verifier, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		repo:     repo,
		cache:    cache,
		verifier: verifier,
		log:      log,
		now:      time.Now,
	}
}

// RegisterResult reports the outcome of a registration.
type RegisterResult struct {
	User             *domain.User `json:"user"`
	VerificationMock bool         `json:"verification_mock"`
}

// Register creates a new player profile. When a wallet address is given
// the identity is verified through the bridge; a bridge outage degrades
// to a mock-verified profile rather than blocking registration.
func (s *Service) Register(ctx context.Context, walletAddress string) (*RegisterResult, error) {
	now := s.now().UTC()
	user := &domain.User{
		ID:            uuid.NewString(),
		WalletAddress: walletAddress,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	result := &RegisterResult{User: user}
	if walletAddress != "" && s.verifier != nil {
		verification := s.verifier.VerifyIdentity(ctx, walletAddress)
		user.IsVerified = verification.Verified
		result.VerificationMock = verification.Mock
	}

	if err := s.repo.Create(ctx, user); err != nil {
		s.logError("register", user.ID, err)
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Info("user registered",
		slog.String("user_id", user.ID),
		slog.Bool("verified", user.IsVerified),
	)

	return result, nil
}

// Get fetches a user, consulting the cache first.
func (s *Service) Get(ctx context.Context, userID string) (*domain.User, error) {
	if cached, err := s.cache.Get(ctx, userID); err == nil && cached != nil {
		return cached, nil
	} else if err != nil {
		s.log.Warn("user cache read failed", slog.String("user_id", userID), slog.Any("error", err))
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("user", userID)
		}
		s.logError("get", userID, err)
		return nil, fmt.Errorf("get user: %w", err)
	}

	if err := s.cache.Set(ctx, userID, user, cacheTTL); err != nil {
		s.log.Warn("user cache write failed", slog.String("user_id", userID), slog.Any("error", err))
	}

	return user, nil
}

// UpdateWallet attaches a new wallet address and re-verifies it.
func (s *Service) UpdateWallet(ctx context.Context, userID, walletAddress string) (*domain.User, error) {
	if walletAddress == "" {
		return nil, apperrors.NewValidationError("wallet address must not be empty")
	}

	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.WalletAddress = walletAddress
	user.IsVerified = false
	if s.verifier != nil {
		user.IsVerified = s.verifier.VerifyIdentity(ctx, walletAddress).Verified
	}
	user.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, user); err != nil {
		s.logError("update_wallet", userID, err)
		return nil, fmt.Errorf("update user: %w", err)
	}

	s.invalidate(ctx, userID)

	return user, nil
}

// Deactivate disables the account. Deactivated users keep their history
// but cannot start sessions or record transactions.
func (s *Service) Deactivate(ctx context.Context, userID string) error {
	return s.setActive(ctx, userID, false)
}

// Reactivate re-enables a previously deactivated account.
func (s *Service) Reactivate(ctx context.Context, userID string) error {
	return s.setActive(ctx, userID, true)
}

func (s *Service) setActive(ctx context.Context, userID string, active bool) error {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}

	if user.IsActive == active {
		return nil
	}

	user.IsActive = active
	user.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, user); err != nil {
		s.logError("set_active", userID, err)
		return fmt.Errorf("update user: %w", err)
	}

	s.invalidate(ctx, userID)

	return nil
}

func (s *Service) invalidate(ctx context.Context, userID string) {
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.log.Warn("user cache invalidation failed", slog.String("user_id", userID), slog.Any("error", err))
	}
}

func (s *Service) logError(operation, userID string, err error) {
	if s == nil || s.log == nil || err == nil {
		return
	}

	s.log.Error("user service operation failed",
		slog.String("operation", operation),
		slog.String("user_id", userID),
		slog.Any("error", err),
	)
}
