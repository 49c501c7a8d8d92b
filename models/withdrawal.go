package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Withdrawal is one escrow hold: funds taken out of a balance while an
// external payout is reviewed. Every request is its own hold.
type Withdrawal struct {
	ID         int64           `db:"id"`
	UserID     string          `db:"user_id"`
	Username   string          `db:"username"`
	Amount     decimal.Decimal `db:"amount"`
	NationName string          `db:"nation_name"`
	Status     RequestStatus   `db:"status"`
	ReleasedAt *time.Time      `db:"released_at"`
	CreatedAt  time.Time       `db:"created_at"`
	DecidedAt  *time.Time      `db:"decided_at"`
	DecidedBy  *string         `db:"decided_by"`
}

// IsHeld reports whether the funds are still sitting in escrow
func (w *Withdrawal) IsHeld() bool {
	if w.ReleasedAt != nil {
		return false
	}
	return w.Status == RequestStatusPending || w.Status == RequestStatusRejected
}
