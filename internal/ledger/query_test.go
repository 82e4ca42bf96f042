package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/playguard/playguard/internal/domain"
)

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

func testQuery(transactions *mockTransactionRepo, sessions *mockSessionRepo) *Query {
	query := NewQuery(transactions, sessions)
	query.now = func() time.Time {
		return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	}
	return query
}

func TestQuery_TransactionsInWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	transactions := &mockTransactionRepo{}
	transactions.On("FindByUserInRange", mock.Anything, "user-1", now.Add(-24*time.Hour), now).
		Return([]*domain.Transaction{{TransactionID: "tx-1", UserID: "user-1", Amount: 10}}, nil).Once()

	result, err := testQuery(transactions, &mockSessionRepo{}).TransactionsInWindow(context.Background(), "user-1", 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "tx-1", result[0].TransactionID)
	transactions.AssertExpectations(t)
}

func TestQuery_SpendInWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	transactions := &mockTransactionRepo{}
	transactions.On("SumAmountSince", mock.Anything, "user-1", now.Add(-7*24*time.Hour)).
		Return(321.5, nil).Once()

	total, err := testQuery(transactions, &mockSessionRepo{}).SpendInWindow(context.Background(), "user-1", 7*24*time.Hour)
	require.NoError(t, err)
	assert.InDelta(t, 321.5, total, 0.001)
	transactions.AssertExpectations(t)
}

func TestQuery_SessionsInWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	sessions := &mockSessionRepo{}
	sessions.On("FindByUserSince", mock.Anything, "user-1", now.Add(-48*time.Hour)).
		Return([]*domain.Session{{SessionID: "session-1", UserID: "user-1"}}, nil).Once()

	result, err := testQuery(&mockTransactionRepo{}, sessions).SessionsInWindow(context.Background(), "user-1", 48*time.Hour)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "session-1", result[0].SessionID)
	sessions.AssertExpectations(t)
}
