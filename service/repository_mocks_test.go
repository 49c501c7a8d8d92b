package service

import (
	"context"

	"nationbank/events"
	"nationbank/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockAccountRepository is a mock implementation of AccountRepository
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) GetByUserID(ctx context.Context, userID string) (*models.Account, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) GetForUpdate(ctx context.Context, userID string) (*models.Account, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) LockAccounts(ctx context.Context, userIDs []string) ([]*models.Account, error) {
	args := m.Called(ctx, userIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Account), args.Error(1)
}

func (m *MockAccountRepository) EnsureAccount(ctx context.Context, userID, username string) error {
	args := m.Called(ctx, userID, username)
	return args.Error(0)
}

func (m *MockAccountRepository) Credit(ctx context.Context, userID, username string, amount decimal.Decimal) (decimal.Decimal, error) {
	args := m.Called(ctx, userID, username, amount)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockAccountRepository) Debit(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	args := m.Called(ctx, userID, amount)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockAccountRepository) SetBalance(ctx context.Context, userID, username string, amount decimal.Decimal) error {
	args := m.Called(ctx, userID, username, amount)
	return args.Error(0)
}

func (m *MockAccountRepository) UpdateProfile(ctx context.Context, userID string, profile models.UserProfile) error {
	args := m.Called(ctx, userID, profile)
	return args.Error(0)
}

func (m *MockAccountRepository) SumBalances(ctx context.Context) (decimal.Decimal, error) {
	args := m.Called(ctx)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// MockTransactionRepository is a mock implementation of TransactionRepository
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Record(ctx context.Context, tx *models.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetRecent(ctx context.Context, limit int, txType *models.TransactionType) ([]*models.Transaction, error) {
	args := m.Called(ctx, limit, txType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetByUser(ctx context.Context, userID string, limit int) ([]*models.Transaction, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Transaction), args.Error(1)
}

// MockDepositRequestRepository is a mock implementation of DepositRequestRepository
type MockDepositRequestRepository struct {
	mock.Mock
}

func (m *MockDepositRequestRepository) Create(ctx context.Context, request *models.DepositRequest) error {
	args := m.Called(ctx, request)
	return args.Error(0)
}

func (m *MockDepositRequestRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.DepositRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DepositRequest), args.Error(1)
}

func (m *MockDepositRequestRepository) FindPendingForUpdate(ctx context.Context, userID string, amount decimal.Decimal) (*models.DepositRequest, error) {
	args := m.Called(ctx, userID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DepositRequest), args.Error(1)
}

func (m *MockDepositRequestRepository) UpdateStatus(ctx context.Context, id int64, status models.RequestStatus, decidedBy string) error {
	args := m.Called(ctx, id, status, decidedBy)
	return args.Error(0)
}

func (m *MockDepositRequestRepository) GetPending(ctx context.Context) ([]*models.DepositRequest, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.DepositRequest), args.Error(1)
}

func (m *MockDepositRequestRepository) GetLatestApproved(ctx context.Context, userID string) (*models.DepositRequest, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DepositRequest), args.Error(1)
}

func (m *MockDepositRequestRepository) SumApproved(ctx context.Context) (decimal.Decimal, error) {
	args := m.Called(ctx)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// MockEscrowRepository is a mock implementation of EscrowRepository
type MockEscrowRepository struct {
	mock.Mock
}

func (m *MockEscrowRepository) Create(ctx context.Context, hold *models.Withdrawal) error {
	args := m.Called(ctx, hold)
	return args.Error(0)
}

func (m *MockEscrowRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Withdrawal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Withdrawal), args.Error(1)
}

func (m *MockEscrowRepository) FindPendingForUpdate(ctx context.Context, userID string, amount decimal.Decimal) (*models.Withdrawal, error) {
	args := m.Called(ctx, userID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Withdrawal), args.Error(1)
}

func (m *MockEscrowRepository) FindReleasableForUpdate(ctx context.Context, userID string, amount decimal.Decimal) (*models.Withdrawal, error) {
	args := m.Called(ctx, userID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Withdrawal), args.Error(1)
}

func (m *MockEscrowRepository) UpdateStatus(ctx context.Context, id int64, status models.RequestStatus, decidedBy string) error {
	args := m.Called(ctx, id, status, decidedBy)
	return args.Error(0)
}

func (m *MockEscrowRepository) MarkReleased(ctx context.Context, id int64, releasedBy string) error {
	args := m.Called(ctx, id, releasedBy)
	return args.Error(0)
}

func (m *MockEscrowRepository) GetPending(ctx context.Context) ([]*models.Withdrawal, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Withdrawal), args.Error(1)
}

func (m *MockEscrowRepository) SumApproved(ctx context.Context) (decimal.Decimal, error) {
	args := m.Called(ctx)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockEscrowRepository) SumHeld(ctx context.Context) (decimal.Decimal, error) {
	args := m.Called(ctx)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockEscrowRepository) SumHeldByUser(ctx context.Context, userID string) (decimal.Decimal, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// MockAdminLogRepository is a mock implementation of AdminLogRepository
type MockAdminLogRepository struct {
	mock.Mock
}

func (m *MockAdminLogRepository) Record(ctx context.Context, entry *models.AdminLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAdminLogRepository) GetRecent(ctx context.Context, limit int) ([]*models.AdminLog, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AdminLog), args.Error(1)
}

// MockReconciliationRepository is a mock implementation of ReconciliationRepository
type MockReconciliationRepository struct {
	mock.Mock
}

func (m *MockReconciliationRepository) Snapshot(ctx context.Context) (*models.LedgerTotals, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LedgerTotals), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// MockUnitOfWork is a mock implementation of UnitOfWork. Repository getters
// return whatever SetRepositories installed.
type MockUnitOfWork struct {
	mock.Mock
	accountRepo        AccountRepository
	transactionRepo    TransactionRepository
	depositRequestRepo DepositRequestRepository
	escrowRepo         EscrowRepository
	adminLogRepo       AdminLogRepository
	reconciliationRepo ReconciliationRepository
	eventBus           EventPublisher
}

// mockRepositories groups the repositories a MockUnitOfWork hands out
type mockRepositories struct {
	Accounts       AccountRepository
	Transactions   TransactionRepository
	Deposits       DepositRequestRepository
	Escrow         EscrowRepository
	AdminLogs      AdminLogRepository
	Reconciliation ReconciliationRepository
	Events         EventPublisher
}

func (m *MockUnitOfWork) SetRepositories(repos mockRepositories) {
	m.accountRepo = repos.Accounts
	m.transactionRepo = repos.Transactions
	m.depositRequestRepo = repos.Deposits
	m.escrowRepo = repos.Escrow
	m.adminLogRepo = repos.AdminLogs
	m.reconciliationRepo = repos.Reconciliation
	m.eventBus = repos.Events
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) AccountRepository() AccountRepository               { return m.accountRepo }
func (m *MockUnitOfWork) TransactionRepository() TransactionRepository       { return m.transactionRepo }
func (m *MockUnitOfWork) DepositRequestRepository() DepositRequestRepository { return m.depositRequestRepo }
func (m *MockUnitOfWork) EscrowRepository() EscrowRepository                 { return m.escrowRepo }
func (m *MockUnitOfWork) AdminLogRepository() AdminLogRepository             { return m.adminLogRepo }
func (m *MockUnitOfWork) ReconciliationRepository() ReconciliationRepository { return m.reconciliationRepo }
func (m *MockUnitOfWork) EventBus() EventPublisher                           { return m.eventBus }

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}

// amountEq matches a decimal argument by value rather than representation
func amountEq(raw string) any {
	expected := decimal.RequireFromString(raw)
	return mock.MatchedBy(func(actual decimal.Decimal) bool {
		return actual.Equal(expected)
	})
}
