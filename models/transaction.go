package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType represents the kind of ledger movement a transaction row records
type TransactionType string

const (
	TransactionTypeDeposit                TransactionType = "deposit"
	TransactionTypeWithdrawal             TransactionType = "withdrawal"
	TransactionTypeTransfer               TransactionType = "transfer"
	TransactionTypeAdminSetBalance        TransactionType = "admin_setbalance"
	TransactionTypeAdminApprove           TransactionType = "admin_approve"
	TransactionTypeAdminReject            TransactionType = "admin_reject"
	TransactionTypeAdminWithdrawalApprove TransactionType = "admin_withdrawal_approve"
	TransactionTypeAdminWithdrawalReject  TransactionType = "admin_withdrawal_reject"
	TransactionTypeEscrowHold             TransactionType = "escrow_hold"
	TransactionTypeEscrowRelease          TransactionType = "escrow_release"
)

// Sentinel identities used on the system side of a transaction
const (
	SystemActorID       = "SYSTEM"
	SystemActorUsername = "Bank"
	AdminActorID        = "ADMIN"
	AdminActorUsername  = "Admin"
)

// Valid reports whether t is one of the known transaction types
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeWithdrawal, TransactionTypeTransfer,
		TransactionTypeAdminSetBalance, TransactionTypeAdminApprove, TransactionTypeAdminReject,
		TransactionTypeAdminWithdrawalApprove, TransactionTypeAdminWithdrawalReject,
		TransactionTypeEscrowHold, TransactionTypeEscrowRelease:
		return true
	}
	return false
}

// Transaction is an immutable row of the ledger's audit log
type Transaction struct {
	ID           uuid.UUID       `db:"id"`
	Type         TransactionType `db:"type"`
	FromUserID   *string         `db:"from_user_id"`
	FromUsername *string         `db:"from_username"`
	ToUserID     *string         `db:"to_user_id"`
	ToUsername   *string         `db:"to_username"`
	Amount       decimal.Decimal `db:"amount"`
	RelatedID    *int64          `db:"related_id"` // deposit request or escrow hold id
	CreatedAt    time.Time       `db:"created_at"`
}

// TransactionParty identifies one side of a transaction
type TransactionParty struct {
	UserID   string
	Username string
}

// SystemParty is the bank itself
func SystemParty() TransactionParty {
	return TransactionParty{UserID: SystemActorID, Username: SystemActorUsername}
}

// AdminParty is the anonymous administrator used when no admin identity is supplied
func AdminParty() TransactionParty {
	return TransactionParty{UserID: AdminActorID, Username: AdminActorUsername}
}

// NewTransaction builds a transaction row with a fresh id
func NewTransaction(txType TransactionType, from, to TransactionParty, amount decimal.Decimal) *Transaction {
	return &Transaction{
		ID:           uuid.New(),
		Type:         txType,
		FromUserID:   optional(from.UserID),
		FromUsername: optional(from.Username),
		ToUserID:     optional(to.UserID),
		ToUsername:   optional(to.Username),
		Amount:       amount,
	}
}

// WithRelated ties the transaction to a deposit request or escrow hold
func (t *Transaction) WithRelated(id int64) *Transaction {
	t.RelatedID = &id
	return t
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
