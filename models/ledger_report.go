package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerTotals are the aggregate sums reconciliation compares, read from one snapshot
type LedgerTotals struct {
	ApprovedDeposits    decimal.Decimal
	ApprovedWithdrawals decimal.Decimal
	HeldEscrow          decimal.Decimal
	TotalBalances       decimal.Decimal
}

// LedgerReport is the outcome of a reconciliation run
type LedgerReport struct {
	LedgerTotals
	MasterBalance decimal.Decimal // approved deposits minus approved withdrawals
	Difference    decimal.Decimal // master balance minus (balances + held escrow)
	Matches       bool
	CheckedAt     time.Time
}

// NewLedgerReport evaluates the conservation invariant for the given totals
func NewLedgerReport(totals LedgerTotals, checkedAt time.Time) *LedgerReport {
	master := totals.ApprovedDeposits.Sub(totals.ApprovedWithdrawals)
	held := totals.TotalBalances.Add(totals.HeldEscrow)
	diff := master.Sub(held)
	return &LedgerReport{
		LedgerTotals:  totals,
		MasterBalance: master,
		Difference:    diff,
		Matches:       diff.IsZero(),
		CheckedAt:     checkedAt,
	}
}

// TransferResult describes a completed peer-to-peer transfer
type TransferResult struct {
	TransactionID    string
	Amount           decimal.Decimal
	SenderBalance    decimal.Decimal
	RecipientBalance decimal.Decimal
	RecipientName    string
}
