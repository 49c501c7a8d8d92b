package repository

import (
	"context"
	"errors"
	"fmt"

	"nationbank/database"
	"nationbank/models"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const escrowColumns = `id, user_id, username, amount, nation_name, status, released_at, created_at, decided_at, decided_by`

// heldCondition selects holds whose funds have left the balance but not the bank
const heldCondition = `released_at IS NULL AND status IN ('pending', 'rejected')`

// EscrowRepository implements the EscrowRepository interface
type EscrowRepository struct {
	q queryable
}

// NewEscrowRepository creates a new escrow repository
func NewEscrowRepository(db *database.DB) *EscrowRepository {
	return &EscrowRepository{q: db.Pool}
}

// newEscrowRepositoryWithTx creates a new escrow repository with a transaction
func newEscrowRepositoryWithTx(tx queryable) *EscrowRepository {
	return &EscrowRepository{q: tx}
}

// Create inserts a new hold and fills in its id and creation time
func (r *EscrowRepository) Create(ctx context.Context, hold *models.Withdrawal) error {
	query := `
		INSERT INTO escrow (user_id, username, amount, nation_name, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	if hold.Status == "" {
		hold.Status = models.RequestStatusPending
	}

	err := r.q.QueryRow(ctx, query,
		hold.UserID,
		hold.Username,
		hold.Amount,
		hold.NationName,
		string(hold.Status),
	).Scan(&hold.ID, &hold.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create escrow hold for user %s: %w", hold.UserID, err)
	}

	return nil
}

// GetByIDForUpdate retrieves and locks a hold by id
func (r *EscrowRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Withdrawal, error) {
	query := `SELECT ` + escrowColumns + ` FROM escrow WHERE id = $1 FOR UPDATE`

	hold, err := scanWithdrawal(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock escrow hold %d: %w", id, err)
	}

	return hold, nil
}

// FindPendingForUpdate locks the oldest pending hold for the user and exact amount
func (r *EscrowRepository) FindPendingForUpdate(ctx context.Context, userID string, amount decimal.Decimal) (*models.Withdrawal, error) {
	query := `
		SELECT ` + escrowColumns + `
		FROM escrow
		WHERE user_id = $1 AND amount = $2 AND status = 'pending'
		ORDER BY created_at, id
		LIMIT 1
	`

	for _, lock := range matchLocks {
		hold, err := scanWithdrawal(r.q.QueryRow(ctx, query+lock, userID, amount))
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to find pending escrow hold for user %s: %w", userID, err)
		}
		return hold, nil
	}

	return nil, nil
}

// FindReleasableForUpdate locks the oldest still-held hold for the user and exact amount.
// Rejected holds come first so a denial is settled before a live request is cancelled.
func (r *EscrowRepository) FindReleasableForUpdate(ctx context.Context, userID string, amount decimal.Decimal) (*models.Withdrawal, error) {
	query := `
		SELECT ` + escrowColumns + `
		FROM escrow
		WHERE user_id = $1 AND amount = $2 AND ` + heldCondition + `
		ORDER BY (status = 'rejected') DESC, created_at, id
		LIMIT 1
	`

	for _, lock := range matchLocks {
		hold, err := scanWithdrawal(r.q.QueryRow(ctx, query+lock, userID, amount))
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to find releasable escrow hold for user %s: %w", userID, err)
		}
		return hold, nil
	}

	return nil, nil
}

// UpdateStatus settles a pending hold
func (r *EscrowRepository) UpdateStatus(ctx context.Context, id int64, status models.RequestStatus, decidedBy string) error {
	query := `
		UPDATE escrow
		SET status = $2, decided_at = NOW(), decided_by = $3
		WHERE id = $1 AND status = 'pending'
	`

	result, err := r.q.Exec(ctx, query, id, string(status), decidedBy)
	if err != nil {
		return fmt.Errorf("failed to update escrow hold %d: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("escrow hold %d not found or already settled", id)
	}

	return nil
}

// MarkReleased stamps a held hold as released. A pending hold is rejected on the way.
func (r *EscrowRepository) MarkReleased(ctx context.Context, id int64, releasedBy string) error {
	query := `
		UPDATE escrow
		SET released_at = NOW(),
		    status = 'rejected',
		    decided_at = COALESCE(decided_at, NOW()),
		    decided_by = COALESCE(decided_by, $2)
		WHERE id = $1 AND ` + heldCondition

	result, err := r.q.Exec(ctx, query, id, releasedBy)
	if err != nil {
		return fmt.Errorf("failed to release escrow hold %d: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("escrow hold %d not found or already released", id)
	}

	return nil
}

// GetPending returns pending holds, newest first
func (r *EscrowRepository) GetPending(ctx context.Context) ([]*models.Withdrawal, error) {
	query := `
		SELECT ` + escrowColumns + `
		FROM escrow
		WHERE status = 'pending'
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending withdrawals: %w", err)
	}
	defer rows.Close()

	var holds []*models.Withdrawal
	for rows.Next() {
		hold, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal: %w", err)
		}
		holds = append(holds, hold)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate withdrawals: %w", err)
	}

	return holds, nil
}

// SumApproved returns the total paid out through approved withdrawals
func (r *EscrowRepository) SumApproved(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	query := `SELECT COALESCE(SUM(amount), 0) FROM escrow WHERE status = 'approved'`
	if err := r.q.QueryRow(ctx, query).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum approved withdrawals: %w", err)
	}
	return total, nil
}

// SumHeld returns the total still sitting in escrow
func (r *EscrowRepository) SumHeld(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	query := `SELECT COALESCE(SUM(amount), 0) FROM escrow WHERE ` + heldCondition
	if err := r.q.QueryRow(ctx, query).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum held escrow: %w", err)
	}
	return total, nil
}

// SumHeldByUser returns the total one user has sitting in escrow
func (r *EscrowRepository) SumHeldByUser(ctx context.Context, userID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	query := `SELECT COALESCE(SUM(amount), 0) FROM escrow WHERE user_id = $1 AND ` + heldCondition
	if err := r.q.QueryRow(ctx, query, userID).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum held escrow for user %s: %w", userID, err)
	}
	return total, nil
}

func scanWithdrawal(row pgx.Row) (*models.Withdrawal, error) {
	var hold models.Withdrawal
	var status string
	err := row.Scan(
		&hold.ID,
		&hold.UserID,
		&hold.Username,
		&hold.Amount,
		&hold.NationName,
		&status,
		&hold.ReleasedAt,
		&hold.CreatedAt,
		&hold.DecidedAt,
		&hold.DecidedBy,
	)
	if err != nil {
		return nil, err
	}
	hold.Status = models.RequestStatus(status)
	return &hold, nil
}
