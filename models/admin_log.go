package models

import "time"

// AdminLog is an append-only accountability record of a privileged action
type AdminLog struct {
	ID            int64     `db:"id"`
	AdminID       string    `db:"admin_id"`
	AdminUsername string    `db:"admin_username"`
	Action        string    `db:"action"`
	Details       string    `db:"details"`
	CreatedAt     time.Time `db:"created_at"`
}

// Admin actions written by the approval workflow
const (
	AdminActionApproveDeposit    = "approve_deposit"
	AdminActionRejectDeposit     = "reject_deposit"
	AdminActionApproveWithdrawal = "approve_withdrawal"
	AdminActionDenyWithdrawal    = "deny_withdrawal"
	AdminActionReleaseEscrow     = "release_escrow"
	AdminActionSetBalance        = "set_balance"
)
