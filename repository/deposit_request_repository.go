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

const depositRequestColumns = `id, user_id, discord_username, nation_username, amount, receipt_url, status, created_at, decided_at, decided_by`

// DepositRequestRepository implements the DepositRequestRepository interface
type DepositRequestRepository struct {
	q queryable
}

// NewDepositRequestRepository creates a new deposit request repository
func NewDepositRequestRepository(db *database.DB) *DepositRequestRepository {
	return &DepositRequestRepository{q: db.Pool}
}

// newDepositRequestRepositoryWithTx creates a new deposit request repository with a transaction
func newDepositRequestRepositoryWithTx(tx queryable) *DepositRequestRepository {
	return &DepositRequestRepository{q: tx}
}

// Create inserts a request and fills in its id and creation time
func (r *DepositRequestRepository) Create(ctx context.Context, request *models.DepositRequest) error {
	query := `
		INSERT INTO deposit_requests (user_id, discord_username, nation_username, amount, receipt_url, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	if request.Status == "" {
		request.Status = models.RequestStatusPending
	}

	err := r.q.QueryRow(ctx, query,
		request.UserID,
		request.DiscordUsername,
		request.NationUsername,
		request.Amount,
		request.ReceiptURL,
		string(request.Status),
	).Scan(&request.ID, &request.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create deposit request for user %s: %w", request.UserID, err)
	}

	return nil
}

// GetByIDForUpdate retrieves and locks a request by id
func (r *DepositRequestRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.DepositRequest, error) {
	query := `SELECT ` + depositRequestColumns + ` FROM deposit_requests WHERE id = $1 FOR UPDATE`

	request, err := scanDepositRequest(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock deposit request %d: %w", id, err)
	}

	return request, nil
}

// FindPendingForUpdate locks the oldest pending request for the user and exact amount
func (r *DepositRequestRepository) FindPendingForUpdate(ctx context.Context, userID string, amount decimal.Decimal) (*models.DepositRequest, error) {
	query := `
		SELECT ` + depositRequestColumns + `
		FROM deposit_requests
		WHERE user_id = $1 AND amount = $2 AND status = 'pending'
		ORDER BY created_at, id
		LIMIT 1
	`

	for _, lock := range matchLocks {
		request, err := scanDepositRequest(r.q.QueryRow(ctx, query+lock, userID, amount))
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to find pending deposit request for user %s: %w", userID, err)
		}
		return request, nil
	}

	return nil, nil
}

// UpdateStatus settles a pending request. Settled requests are never changed again.
func (r *DepositRequestRepository) UpdateStatus(ctx context.Context, id int64, status models.RequestStatus, decidedBy string) error {
	query := `
		UPDATE deposit_requests
		SET status = $2, decided_at = NOW(), decided_by = $3
		WHERE id = $1 AND status = 'pending'
	`

	result, err := r.q.Exec(ctx, query, id, string(status), decidedBy)
	if err != nil {
		return fmt.Errorf("failed to update deposit request %d: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("deposit request %d not found or already settled", id)
	}

	return nil
}

// GetPending returns pending requests, newest first
func (r *DepositRequestRepository) GetPending(ctx context.Context) ([]*models.DepositRequest, error) {
	query := `
		SELECT ` + depositRequestColumns + `
		FROM deposit_requests
		WHERE status = 'pending'
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending deposit requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.DepositRequest
	for rows.Next() {
		request, err := scanDepositRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deposit request: %w", err)
		}
		requests = append(requests, request)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate deposit requests: %w", err)
	}

	return requests, nil
}

// GetLatestApproved returns the user's most recently approved request
func (r *DepositRequestRepository) GetLatestApproved(ctx context.Context, userID string) (*models.DepositRequest, error) {
	query := `
		SELECT ` + depositRequestColumns + `
		FROM deposit_requests
		WHERE user_id = $1 AND status = 'approved'
		ORDER BY decided_at DESC NULLS LAST, id DESC
		LIMIT 1
	`

	request, err := scanDepositRequest(r.q.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest approved deposit for user %s: %w", userID, err)
	}

	return request, nil
}

// SumApproved returns the total of every approved deposit
func (r *DepositRequestRepository) SumApproved(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	query := `SELECT COALESCE(SUM(amount), 0) FROM deposit_requests WHERE status = 'approved'`
	if err := r.q.QueryRow(ctx, query).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum approved deposits: %w", err)
	}
	return total, nil
}

func scanDepositRequest(row pgx.Row) (*models.DepositRequest, error) {
	var request models.DepositRequest
	var status string
	err := row.Scan(
		&request.ID,
		&request.UserID,
		&request.DiscordUsername,
		&request.NationUsername,
		&request.Amount,
		&request.ReceiptURL,
		&status,
		&request.CreatedAt,
		&request.DecidedAt,
		&request.DecidedBy,
	)
	if err != nil {
		return nil, err
	}
	request.Status = models.RequestStatus(status)
	return &request, nil
}
