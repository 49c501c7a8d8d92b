package service

import (
	"context"
	"time"

	"nationbank/events"
	"nationbank/models"

	"github.com/shopspring/decimal"
)

// AccountRepository defines the interface for balance row access
type AccountRepository interface {
	// GetByUserID returns the account or nil when the user has no row
	GetByUserID(ctx context.Context, userID string) (*models.Account, error)

	// GetForUpdate returns the account locked for the rest of the transaction, or nil when absent
	GetForUpdate(ctx context.Context, userID string) (*models.Account, error)

	// LockAccounts locks the existing rows of the given users in ascending user id order
	LockAccounts(ctx context.Context, userIDs []string) ([]*models.Account, error)

	// EnsureAccount creates a zero balance row when the user has none
	EnsureAccount(ctx context.Context, userID, username string) error

	// Credit adds amount to the balance, creating the row if needed, and returns the new balance
	Credit(ctx context.Context, userID, username string, amount decimal.Decimal) (decimal.Decimal, error)

	// Debit removes amount from the balance and returns the new balance.
	// It fails without writing when the balance is lower than amount.
	Debit(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error)

	// SetBalance overwrites the balance, creating the row if needed
	SetBalance(ctx context.Context, userID, username string, amount decimal.Decimal) error

	// UpdateProfile upserts the profile fields without touching the balance
	UpdateProfile(ctx context.Context, userID string, profile models.UserProfile) error

	// SumBalances returns the sum of every balance
	SumBalances(ctx context.Context) (decimal.Decimal, error)
}

// TransactionRepository defines the interface for the transaction audit log
type TransactionRepository interface {
	// Record appends a transaction row
	Record(ctx context.Context, tx *models.Transaction) error

	// GetRecent returns the newest transactions first, optionally restricted to one type
	GetRecent(ctx context.Context, limit int, txType *models.TransactionType) ([]*models.Transaction, error)

	// GetByUser returns the newest transactions in which the user is either party
	GetByUser(ctx context.Context, userID string, limit int) ([]*models.Transaction, error)
}

// DepositRequestRepository defines the interface for deposit request access
type DepositRequestRepository interface {
	Create(ctx context.Context, request *models.DepositRequest) error
	GetByIDForUpdate(ctx context.Context, id int64) (*models.DepositRequest, error)

	// FindPendingForUpdate locks the oldest pending request of the user for exactly amount
	FindPendingForUpdate(ctx context.Context, userID string, amount decimal.Decimal) (*models.DepositRequest, error)

	UpdateStatus(ctx context.Context, id int64, status models.RequestStatus, decidedBy string) error
	GetPending(ctx context.Context) ([]*models.DepositRequest, error)

	// GetLatestApproved returns the user's most recently approved request or nil
	GetLatestApproved(ctx context.Context, userID string) (*models.DepositRequest, error)

	SumApproved(ctx context.Context) (decimal.Decimal, error)
}

// EscrowRepository defines the interface for escrow hold access
type EscrowRepository interface {
	Create(ctx context.Context, hold *models.Withdrawal) error
	GetByIDForUpdate(ctx context.Context, id int64) (*models.Withdrawal, error)

	// FindPendingForUpdate locks the oldest pending hold of the user for exactly amount
	FindPendingForUpdate(ctx context.Context, userID string, amount decimal.Decimal) (*models.Withdrawal, error)

	// FindReleasableForUpdate locks the oldest held (pending or rejected, unreleased) hold for exactly amount
	FindReleasableForUpdate(ctx context.Context, userID string, amount decimal.Decimal) (*models.Withdrawal, error)

	UpdateStatus(ctx context.Context, id int64, status models.RequestStatus, decidedBy string) error

	// MarkReleased stamps released_at; a pending hold becomes rejected by releasedBy
	MarkReleased(ctx context.Context, id int64, releasedBy string) error

	GetPending(ctx context.Context) ([]*models.Withdrawal, error)
	SumApproved(ctx context.Context) (decimal.Decimal, error)
	SumHeld(ctx context.Context) (decimal.Decimal, error)
	SumHeldByUser(ctx context.Context, userID string) (decimal.Decimal, error)
}

// AdminLogRepository defines the interface for admin action records
type AdminLogRepository interface {
	Record(ctx context.Context, entry *models.AdminLog) error
	GetRecent(ctx context.Context, limit int) ([]*models.AdminLog, error)
}

// ReconciliationRepository reads the totals compared by reconciliation
type ReconciliationRepository interface {
	// Snapshot reads every total in a single statement so they share one snapshot
	Snapshot(ctx context.Context) (*models.LedgerTotals, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork binds every repository to one database transaction
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	AccountRepository() AccountRepository
	TransactionRepository() TransactionRepository
	DepositRequestRepository() DepositRequestRepository
	EscrowRepository() EscrowRepository
	AdminLogRepository() AdminLogRepository
	ReconciliationRepository() ReconciliationRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory creates new units of work
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// TransferRequest describes a peer-to-peer transfer
type TransferRequest struct {
	FromUserID   string
	FromUsername string
	ToUserID     string
	ToUsername   string
	Amount       decimal.Decimal
}

// DepositRequestInput is what a user submits when claiming an external deposit
type DepositRequestInput struct {
	UserID          string
	DiscordUsername string
	NationUsername  string
	Amount          decimal.Decimal
	ReceiptURL      string
}

// DepositDecision selects a deposit request for approval or rejection.
// RequestID wins when set; otherwise the oldest pending request matching
// UserID and Amount is used.
type DepositDecision struct {
	RequestID     int64
	UserID        string
	Username      string
	Amount        decimal.Decimal
	AdminID       string
	AdminUsername string
}

// WithdrawalDecision selects an escrow hold for approval or rejection, matched like DepositDecision
type WithdrawalDecision struct {
	WithdrawalID  int64
	UserID        string
	Username      string
	Amount        decimal.Decimal
	AdminID       string
	AdminUsername string
}

// WithdrawalRef selects an escrow hold to release
type WithdrawalRef = WithdrawalDecision

// WithdrawalOutcome is the result of a withdrawal decision
type WithdrawalOutcome struct {
	Withdrawal *models.Withdrawal
	Released   bool // held funds went back to the balance
	NewBalance decimal.Decimal
}

// TransactionLogFilter narrows the recent transaction listing
type TransactionLogFilter struct {
	Limit int
	Type  *models.TransactionType
}

// BalanceService defines balance and transfer operations
type BalanceService interface {
	GetBalance(ctx context.Context, userID string) (decimal.Decimal, error)
	SetBalance(ctx context.Context, userID, username string, amount decimal.Decimal) error
	AddBalance(ctx context.Context, userID, username string, amount decimal.Decimal) (decimal.Decimal, error)
	SubtractBalance(ctx context.Context, userID, username string, amount decimal.Decimal) (decimal.Decimal, error)
	TransferFunds(ctx context.Context, req TransferRequest) (*models.TransferResult, error)
}

// DepositService defines the deposit approval workflow
type DepositService interface {
	RequestDeposit(ctx context.Context, input DepositRequestInput) (*models.DepositRequest, error)
	ApproveDeposit(ctx context.Context, decision DepositDecision) (*models.DepositRequest, error)
	RejectDeposit(ctx context.Context, decision DepositDecision) (*models.DepositRequest, error)
	GetPendingDeposits(ctx context.Context) ([]*models.DepositRequest, error)
}

// WithdrawalService defines the escrow and withdrawal workflow
type WithdrawalService interface {
	PlaceInEscrow(ctx context.Context, userID, username, nationName string, amount decimal.Decimal) (*models.Withdrawal, error)
	GetPendingWithdrawals(ctx context.Context) ([]*models.Withdrawal, error)
	GetEscrowBalance(ctx context.Context, userID string) (decimal.Decimal, error)
	ApproveWithdrawal(ctx context.Context, decision WithdrawalDecision) (*WithdrawalOutcome, error)
	RejectWithdrawal(ctx context.Context, decision WithdrawalDecision) (*WithdrawalOutcome, error)
	ReleaseEscrow(ctx context.Context, ref WithdrawalRef) (*WithdrawalOutcome, error)
}

// ReconciliationService checks the ledger's conservation invariant
type ReconciliationService interface {
	VerifyLedger(ctx context.Context) (*models.LedgerReport, error)
	GetMasterAccountBalance(ctx context.Context) (decimal.Decimal, error)
	StartReconciliationWorker(ctx context.Context, interval time.Duration) func()
}

// ReportingService exposes read-only ledger history
type ReportingService interface {
	GetTransactions(ctx context.Context, limit int) ([]*models.Transaction, error)
	GetTransactionLogs(ctx context.Context, filter TransactionLogFilter) ([]*models.Transaction, error)
	GetTransactionsByUser(ctx context.Context, userID string, limit int) ([]*models.Transaction, error)
	GetAdminLogs(ctx context.Context, limit int) ([]*models.AdminLog, error)
}

// ProfileService manages account holder profile data
type ProfileService interface {
	UpdateUserInfo(ctx context.Context, userID string, profile models.UserProfile) error
	LookupUserInfo(ctx context.Context, userID string) (*models.UserInfo, error)
}

// AuditService records administrative actions
type AuditService interface {
	LogAdminAction(ctx context.Context, adminID, adminUsername, action, details string) error
}
