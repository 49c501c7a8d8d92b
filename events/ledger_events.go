package events

import (
	"time"

	"nationbank/models"

	"github.com/shopspring/decimal"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBalanceChange       EventType = "balance_change"
	EventTypeDepositRequested    EventType = "deposit_requested"
	EventTypeDepositDecided      EventType = "deposit_decided"
	EventTypeWithdrawalRequested EventType = "withdrawal_requested"
	EventTypeWithdrawalDecided   EventType = "withdrawal_decided"
	EventTypeEscrowReleased      EventType = "escrow_released"
	EventTypeLedgerMismatch      EventType = "ledger_mismatch"
)

// AllEventTypes lists every event type the ledger raises
func AllEventTypes() []EventType {
	return []EventType{
		EventTypeBalanceChange,
		EventTypeDepositRequested,
		EventTypeDepositDecided,
		EventTypeWithdrawalRequested,
		EventTypeWithdrawalDecided,
		EventTypeEscrowReleased,
		EventTypeLedgerMismatch,
	}
}

// BalanceChangeEvent is raised for every committed balance mutation
type BalanceChangeEvent struct {
	UserID          string                 `json:"user_id"`
	Username        string                 `json:"username"`
	OldBalance      decimal.Decimal        `json:"old_balance"`
	NewBalance      decimal.Decimal        `json:"new_balance"`
	TransactionType models.TransactionType `json:"transaction_type"`
	TransactionID   string                 `json:"transaction_id"`
	ChangeAmount    decimal.Decimal        `json:"change_amount"` // signed
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

// DepositRequestedEvent is raised when a deposit request enters the admin queue
type DepositRequestedEvent struct {
	RequestID      int64           `json:"request_id"`
	UserID         string          `json:"user_id"`
	NationUsername string          `json:"nation_username"`
	Amount         decimal.Decimal `json:"amount"`
	ReceiptURL     string          `json:"receipt_url"`
}

func (e DepositRequestedEvent) Type() EventType {
	return EventTypeDepositRequested
}

// DepositDecidedEvent is raised when an admin approves or rejects a deposit request
type DepositDecidedEvent struct {
	RequestID int64                `json:"request_id"`
	UserID    string               `json:"user_id"`
	Amount    decimal.Decimal      `json:"amount"`
	Status    models.RequestStatus `json:"status"`
	AdminID   string               `json:"admin_id"`
}

func (e DepositDecidedEvent) Type() EventType {
	return EventTypeDepositDecided
}

// WithdrawalRequestedEvent is raised when funds are placed in escrow
type WithdrawalRequestedEvent struct {
	WithdrawalID int64           `json:"withdrawal_id"`
	UserID       string          `json:"user_id"`
	NationName   string          `json:"nation_name"`
	Amount       decimal.Decimal `json:"amount"`
}

func (e WithdrawalRequestedEvent) Type() EventType {
	return EventTypeWithdrawalRequested
}

// WithdrawalDecidedEvent is raised when an admin approves or rejects a withdrawal
type WithdrawalDecidedEvent struct {
	WithdrawalID int64                `json:"withdrawal_id"`
	UserID       string               `json:"user_id"`
	Amount       decimal.Decimal      `json:"amount"`
	Status       models.RequestStatus `json:"status"`
	AdminID      string               `json:"admin_id"`
	Released     bool                 `json:"released"`
}

func (e WithdrawalDecidedEvent) Type() EventType {
	return EventTypeWithdrawalDecided
}

// EscrowReleasedEvent is raised when held funds return to the balance
type EscrowReleasedEvent struct {
	WithdrawalID int64           `json:"withdrawal_id"`
	UserID       string          `json:"user_id"`
	Amount       decimal.Decimal `json:"amount"`
}

func (e EscrowReleasedEvent) Type() EventType {
	return EventTypeEscrowReleased
}

// LedgerMismatchEvent is raised when reconciliation finds the books out of balance
type LedgerMismatchEvent struct {
	ApprovedDeposits    decimal.Decimal `json:"approved_deposits"`
	ApprovedWithdrawals decimal.Decimal `json:"approved_withdrawals"`
	HeldEscrow          decimal.Decimal `json:"held_escrow"`
	TotalBalances       decimal.Decimal `json:"total_balances"`
	Difference          decimal.Decimal `json:"difference"`
	CheckedAt           time.Time       `json:"checked_at"`
}

func (e LedgerMismatchEvent) Type() EventType {
	return EventTypeLedgerMismatch
}
