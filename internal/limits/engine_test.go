package limits

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
	apperrors "github.com/playguard/playguard/internal/errors"
)

type mockLimitRepo struct {
	mock.Mock
}

func (m *mockLimitRepo) Find(ctx context.Context, userID string, kind domain.LimitKind) (*domain.Limit, error) {
	args := m.Called(ctx, userID, kind)
	limit, _ := args.Get(0).(*domain.Limit)
	return limit, args.Error(1)
}

func (m *mockLimitRepo) Upsert(ctx context.Context, limit *domain.Limit) error {
	args := m.Called(ctx, limit)
	return args.Error(0)
}

func (m *mockLimitRepo) Delete(ctx context.Context, userID string, kind domain.LimitKind) error {
	args := m.Called(ctx, userID, kind)
	return args.Error(0)
}

type mockTransactionRepo struct {
	mock.Mock
}

func (m *mockTransactionRepo) Create(ctx context.Context, tx *domain.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *mockTransactionRepo) SumAmountSince(ctx context.Context, userID string, since time.Time) (float64, error) {
	args := m.Called(ctx, userID, since)
	return args.Get(0).(float64), args.Error(1)
}

func (m *mockTransactionRepo) FindByUserInRange(ctx context.Context, userID string, from, to time.Time) ([]*domain.Transaction, error) {
	args := m.Called(ctx, userID, from, to)
	transactions, _ := args.Get(0).([]*domain.Transaction)
	return transactions, args.Error(1)
}

type mockGuard struct {
	mock.Mock
}

func (m *mockGuard) IsExcluded(ctx context.Context, userID string) (bool, *domain.SelfExclusion, error) {
	args := m.Called(ctx, userID)
	exclusion, _ := args.Get(1).(*domain.SelfExclusion)
	return args.Bool(0), exclusion, args.Error(2)
}

type mockChain struct {
	mock.Mock
}

func (m *mockChain) LogTransaction(ctx context.Context, data blockchain.TransactionData) blockchain.TxResult {
	args := m.Called(ctx, data)
	return args.Get(0).(blockchain.TxResult)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noLimits(repo *mockLimitRepo, userID string) {
	for _, kind := range []domain.LimitKind{domain.LimitDaily, domain.LimitWeekly, domain.LimitMonthly} {
		repo.On("Find", mock.Anything, userID, kind).Return(nil, sql.ErrNoRows)
	}
}

func testEngine(limits *mockLimitRepo, transactions *mockTransactionRepo, guard *mockGuard, chain ChainLogger) *Engine {
	engine := NewEngine(limits, transactions, guard, nil, chain, testLogger())
	engine.now = func() time.Time {
		return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	}
	return engine
}

func TestEngine_Check(t *testing.T) {
	ctx := context.Background()
	dailyLimit := &domain.Limit{UserID: "user-1", Kind: domain.LimitDaily, Amount: 500, PeriodDays: 1}

	testCases := []struct {
		name         string
		amount       float64
		setupMocks   func(limits *mockLimitRepo, transactions *mockTransactionRepo)
		expectAllow  bool
		expectReason apperrors.Reason
		checkResult  func(t *testing.T, result *CheckResult)
	}{
		{
			name:   "no limits configured allows anything",
			amount: 1_000_000,
			setupMocks: func(limits *mockLimitRepo, transactions *mockTransactionRepo) {
				noLimits(limits, "user-1")
			},
			expectAllow: true,
			checkResult: func(t *testing.T, result *CheckResult) {
				assert.False(t, result.HasLimit)
			},
		},
		{
			name:   "spending exactly at the cap is allowed",
			amount: 100,
			setupMocks: func(limits *mockLimitRepo, transactions *mockTransactionRepo) {
				limits.On("Find", mock.Anything, "user-1", domain.LimitDaily).Return(dailyLimit, nil)
				limits.On("Find", mock.Anything, "user-1", domain.LimitWeekly).Return(nil, sql.ErrNoRows)
				limits.On("Find", mock.Anything, "user-1", domain.LimitMonthly).Return(nil, sql.ErrNoRows)
				transactions.On("SumAmountSince", mock.Anything, "user-1", mock.Anything).Return(400.0, nil)
			},
			expectAllow: true,
			checkResult: func(t *testing.T, result *CheckResult) {
				assert.True(t, result.HasLimit)
				assert.Equal(t, 0.0, result.Remaining)
			},
		},
		{
			name:   "a cent over the cap denies",
			amount: 100.01,
			setupMocks: func(limits *mockLimitRepo, transactions *mockTransactionRepo) {
				limits.On("Find", mock.Anything, "user-1", domain.LimitDaily).Return(dailyLimit, nil)
				transactions.On("SumAmountSince", mock.Anything, "user-1", mock.Anything).Return(400.0, nil)
			},
			expectAllow:  false,
			expectReason: apperrors.ReasonLimitExceeded,
			checkResult: func(t *testing.T, result *CheckResult) {
				assert.Equal(t, domain.LimitDaily, result.Kind)
				assert.InDelta(t, 500.01, result.WouldBeTotal, 0.001)
			},
		},
		{
			name:   "tightest limit is reported on allow",
			amount: 50,
			setupMocks: func(limits *mockLimitRepo, transactions *mockTransactionRepo) {
				limits.On("Find", mock.Anything, "user-1", domain.LimitDaily).Return(dailyLimit, nil)
				limits.On("Find", mock.Anything, "user-1", domain.LimitWeekly).Return(&domain.Limit{
					UserID: "user-1", Kind: domain.LimitWeekly, Amount: 460, PeriodDays: 7,
				}, nil)
				limits.On("Find", mock.Anything, "user-1", domain.LimitMonthly).Return(nil, sql.ErrNoRows)
				transactions.On("SumAmountSince", mock.Anything, "user-1", mock.Anything).Return(400.0, nil)
			},
			expectAllow: true,
			checkResult: func(t *testing.T, result *CheckResult) {
				assert.Equal(t, domain.LimitWeekly, result.Kind)
				assert.InDelta(t, 10.0, result.Remaining, 0.001)
			},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			limits := &mockLimitRepo{}
			transactions := &mockTransactionRepo{}
			tc.setupMocks(limits, transactions)

			engine := testEngine(limits, transactions, &mockGuard{}, nil)

			result, err := engine.Check(ctx, "user-1", tc.amount)
			require.NoError(t, err)
			assert.Equal(t, tc.expectAllow, result.Allowed)
			assert.Equal(t, tc.expectReason, result.Reason)
			if tc.checkResult != nil {
				tc.checkResult(t, result)
			}
		})
	}
}

func TestEngine_Check_RejectsNegativeAmount(t *testing.T) {
	engine := testEngine(&mockLimitRepo{}, &mockTransactionRepo{}, &mockGuard{}, nil)

	_, err := engine.Check(context.Background(), "user-1", -10)
	require.Error(t, err)
}

func TestEngine_Set(t *testing.T) {
	ctx := context.Background()

	t.Run("persists with default period", func(t *testing.T) {
		limits := &mockLimitRepo{}
		guard := &mockGuard{}
		guard.On("IsExcluded", mock.Anything, "user-1").Return(false, nil, nil).Once()
		limits.On("Upsert", mock.Anything, mock.MatchedBy(func(l *domain.Limit) bool {
			return l.Kind == domain.LimitWeekly && l.Amount == 200 && l.PeriodDays == 7
		})).Return(nil).Once()

		engine := testEngine(limits, &mockTransactionRepo{}, guard, nil)

		result, err := engine.Set(ctx, "user-1", 200, domain.LimitWeekly, 0)
		require.NoError(t, err)
		assert.True(t, result.OK)
		limits.AssertExpectations(t)
	})

	t.Run("rejected while excluded", func(t *testing.T) {
		guard := &mockGuard{}
		guard.On("IsExcluded", mock.Anything, "user-1").Return(true, &domain.SelfExclusion{
			UserID:  "user-1",
			EndTime: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		}, nil).Once()

		engine := testEngine(&mockLimitRepo{}, &mockTransactionRepo{}, guard, nil)

		result, err := engine.Set(ctx, "user-1", 200, domain.LimitDaily, 0)
		require.NoError(t, err)
		assert.False(t, result.OK)
		assert.Equal(t, apperrors.ReasonExclusionActive, result.Reason)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		engine := testEngine(&mockLimitRepo{}, &mockTransactionRepo{}, &mockGuard{}, nil)

		_, err := engine.Set(ctx, "user-1", 0, domain.LimitDaily, 0)
		require.Error(t, err)

		_, err = engine.Set(ctx, "user-1", 100, domain.LimitKind("yearly"), 0)
		require.Error(t, err)
	})
}

func TestEngine_Remove(t *testing.T) {
	ctx := context.Background()

	t.Run("removes an existing limit", func(t *testing.T) {
		limits := &mockLimitRepo{}
		guard := &mockGuard{}
		guard.On("IsExcluded", mock.Anything, "user-1").Return(false, nil, nil).Once()
		limits.On("Delete", mock.Anything, "user-1", domain.LimitDaily).Return(nil).Once()

		engine := testEngine(limits, &mockTransactionRepo{}, guard, nil)

		result, err := engine.Remove(ctx, "user-1", domain.LimitDaily)
		require.NoError(t, err)
		assert.True(t, result.OK)
	})

	t.Run("reports missing limit", func(t *testing.T) {
		limits := &mockLimitRepo{}
		guard := &mockGuard{}
		guard.On("IsExcluded", mock.Anything, "user-1").Return(false, nil, nil).Once()
		limits.On("Delete", mock.Anything, "user-1", domain.LimitDaily).Return(sql.ErrNoRows).Once()

		engine := testEngine(limits, &mockTransactionRepo{}, guard, nil)

		result, err := engine.Remove(ctx, "user-1", domain.LimitDaily)
		require.NoError(t, err)
		assert.False(t, result.OK)
		assert.Equal(t, apperrors.ReasonNotFound, result.Reason)
	})
}

func TestEngine_RecordTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("exclusion guard runs before the limit check", func(t *testing.T) {
		limits := &mockLimitRepo{}
		transactions := &mockTransactionRepo{}
		guard := &mockGuard{}
		guard.On("IsExcluded", mock.Anything, "user-1").Return(true, &domain.SelfExclusion{
			UserID:  "user-1",
			EndTime: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		}, nil).Once()

		engine := testEngine(limits, transactions, guard, nil)

		result, err := engine.RecordTransaction(ctx, "user-1", 100, nil)
		require.NoError(t, err)
		assert.False(t, result.OK)
		assert.Equal(t, apperrors.ReasonExclusionActive, result.Reason)
		limits.AssertNotCalled(t, "Find", mock.Anything, mock.Anything, mock.Anything)
		transactions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("denied transaction is never appended", func(t *testing.T) {
		limits := &mockLimitRepo{}
		transactions := &mockTransactionRepo{}
		guard := &mockGuard{}
		guard.On("IsExcluded", mock.Anything, "user-1").Return(false, nil, nil).Once()
		limits.On("Find", mock.Anything, "user-1", domain.LimitDaily).Return(&domain.Limit{
			UserID: "user-1", Kind: domain.LimitDaily, Amount: 100, PeriodDays: 1,
		}, nil)
		transactions.On("SumAmountSince", mock.Anything, "user-1", mock.Anything).Return(80.0, nil)

		engine := testEngine(limits, transactions, guard, nil)

		result, err := engine.RecordTransaction(ctx, "user-1", 50, nil)
		require.NoError(t, err)
		assert.False(t, result.OK)
		assert.Equal(t, apperrors.ReasonLimitExceeded, result.Reason)
		transactions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("allowed transaction is mirrored to the chain", func(t *testing.T) {
		limits := &mockLimitRepo{}
		transactions := &mockTransactionRepo{}
		guard := &mockGuard{}
		chain := &mockChain{}
		guard.On("IsExcluded", mock.Anything, "user-1").Return(false, nil, nil).Once()
		noLimits(limits, "user-1")
		transactions.On("Create", mock.Anything, mock.MatchedBy(func(tx *domain.Transaction) bool {
			return tx.UserID == "user-1" && tx.Amount == 50 && tx.TransactionID != ""
		})).Return(nil).Once()
		chain.On("LogTransaction", mock.Anything, mock.Anything).Return(blockchain.TxResult{
			TxHash:  "0xabc",
			OnChain: true,
		}).Once()

		engine := testEngine(limits, transactions, guard, chain)

		result, err := engine.RecordTransaction(ctx, "user-1", 50, map[string]string{"game": "slots"})
		require.NoError(t, err)
		assert.True(t, result.OK)
		assert.Equal(t, "0xabc", result.TxHash)
		assert.True(t, result.OnChain)
		assert.False(t, result.ChainMocked)
		transactions.AssertExpectations(t)
		chain.AssertExpectations(t)
	})

	t.Run("chain outage degrades to a mocked hash", func(t *testing.T) {
		limits := &mockLimitRepo{}
		transactions := &mockTransactionRepo{}
		guard := &mockGuard{}
		chain := &mockChain{}
		guard.On("IsExcluded", mock.Anything, "user-1").Return(false, nil, nil).Once()
		noLimits(limits, "user-1")
		transactions.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
		chain.On("LogTransaction", mock.Anything, mock.Anything).Return(blockchain.TxResult{
			TxHash: "mock-123",
			Mock:   true,
		}).Once()

		engine := testEngine(limits, transactions, guard, chain)

		result, err := engine.RecordTransaction(ctx, "user-1", 50, nil)
		require.NoError(t, err)
		assert.True(t, result.OK, "chain outage must not block the transaction")
		assert.True(t, result.ChainMocked)
		assert.False(t, result.OnChain)
	})
}
