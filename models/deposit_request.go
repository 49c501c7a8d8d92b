package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DepositRequest is a user's claim that funds were paid in externally, awaiting admin review
type DepositRequest struct {
	ID              int64           `db:"id"`
	UserID          string          `db:"user_id"`
	DiscordUsername string          `db:"discord_username"`
	NationUsername  string          `db:"nation_username"`
	Amount          decimal.Decimal `db:"amount"`
	ReceiptURL      string          `db:"receipt_url"`
	Status          RequestStatus   `db:"status"`
	CreatedAt       time.Time       `db:"created_at"`
	DecidedAt       *time.Time      `db:"decided_at"`
	DecidedBy       *string         `db:"decided_by"`
}
