package repository

import (
	"context"
	"fmt"

	"nationbank/database"
	"nationbank/models"
)

// ReconciliationRepository implements the ReconciliationRepository interface
type ReconciliationRepository struct {
	q queryable
}

// NewReconciliationRepository creates a new reconciliation repository
func NewReconciliationRepository(db *database.DB) *ReconciliationRepository {
	return &ReconciliationRepository{q: db.Pool}
}

// newReconciliationRepositoryWithTx creates a new reconciliation repository with a transaction
func newReconciliationRepositoryWithTx(tx queryable) *ReconciliationRepository {
	return &ReconciliationRepository{q: tx}
}

// Snapshot reads every reconciliation total in one statement, so all of them
// see the same committed state even under READ COMMITTED.
func (r *ReconciliationRepository) Snapshot(ctx context.Context) (*models.LedgerTotals, error) {
	query := `
		SELECT
			(SELECT COALESCE(SUM(amount), 0) FROM deposit_requests WHERE status = 'approved'),
			(SELECT COALESCE(SUM(amount), 0) FROM escrow WHERE status = 'approved'),
			(SELECT COALESCE(SUM(amount), 0) FROM escrow WHERE ` + heldCondition + `),
			(SELECT COALESCE(SUM(balance), 0) FROM balances)
	`

	var totals models.LedgerTotals
	err := r.q.QueryRow(ctx, query).Scan(
		&totals.ApprovedDeposits,
		&totals.ApprovedWithdrawals,
		&totals.HeldEscrow,
		&totals.TotalBalances,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger totals: %w", err)
	}

	return &totals, nil
}
