package repository

import (
	"context"
	"fmt"

	"nationbank/database"
	"nationbank/models"

	"github.com/jackc/pgx/v5"
)

const transactionColumns = `id, type, from_user_id, from_username, to_user_id, to_username, amount, related_id, created_at`

// TransactionRepository implements the TransactionRepository interface
type TransactionRepository struct {
	q queryable
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *database.DB) *TransactionRepository {
	return &TransactionRepository{q: db.Pool}
}

// newTransactionRepositoryWithTx creates a new transaction repository with a transaction
func newTransactionRepositoryWithTx(tx queryable) *TransactionRepository {
	return &TransactionRepository{q: tx}
}

// Record appends a transaction row and fills in its creation time
func (r *TransactionRepository) Record(ctx context.Context, tx *models.Transaction) error {
	query := `
		INSERT INTO transactions (id, type, from_user_id, from_username, to_user_id, to_username, amount, related_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`

	err := r.q.QueryRow(ctx, query,
		tx.ID,
		string(tx.Type),
		tx.FromUserID,
		tx.FromUsername,
		tx.ToUserID,
		tx.ToUsername,
		tx.Amount,
		tx.RelatedID,
	).Scan(&tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record %s transaction: %w", tx.Type, err)
	}

	return nil
}

// GetRecent returns the newest transactions first, optionally of one type
func (r *TransactionRepository) GetRecent(ctx context.Context, limit int, txType *models.TransactionType) ([]*models.Transaction, error) {
	var filter *string
	if txType != nil {
		t := string(*txType)
		filter = &t
	}

	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE $2::text IS NULL OR type = $2
		ORDER BY seq DESC
		LIMIT $1
	`

	rows, err := r.q.Query(ctx, query, limit, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent transactions: %w", err)
	}

	return collectTransactions(rows)
}

// GetByUser returns the newest transactions in which the user is sender or recipient
func (r *TransactionRepository) GetByUser(ctx context.Context, userID string, limit int) ([]*models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE from_user_id = $1 OR to_user_id = $1
		ORDER BY seq DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions for user %s: %w", userID, err)
	}

	return collectTransactions(rows)
}

func collectTransactions(rows pgx.Rows) ([]*models.Transaction, error) {
	defer rows.Close()

	var txs []*models.Transaction
	for rows.Next() {
		var tx models.Transaction
		var txType string
		err := rows.Scan(
			&tx.ID,
			&txType,
			&tx.FromUserID,
			&tx.FromUsername,
			&tx.ToUserID,
			&tx.ToUsername,
			&tx.Amount,
			&tx.RelatedID,
			&tx.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		tx.Type = models.TransactionType(txType)
		txs = append(txs, &tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}

	return txs, nil
}
