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

const accountColumns = `user_id, username, balance, pirate_name, real_name, ship_name, email, phone_number, created_at, updated_at`

// AccountRepository implements the AccountRepository interface
type AccountRepository struct {
	q queryable
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{q: db.Pool}
}

// newAccountRepositoryWithTx creates a new account repository with a transaction
func newAccountRepositoryWithTx(tx queryable) *AccountRepository {
	return &AccountRepository{q: tx}
}

// GetByUserID retrieves an account without locking it
func (r *AccountRepository) GetByUserID(ctx context.Context, userID string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM balances WHERE user_id = $1`

	account, err := scanAccount(r.q.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", userID, err)
	}

	return account, nil
}

// GetForUpdate retrieves an account and holds its row lock until the transaction ends
func (r *AccountRepository) GetForUpdate(ctx context.Context, userID string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM balances WHERE user_id = $1 FOR UPDATE`

	account, err := scanAccount(r.q.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock account %s: %w", userID, err)
	}

	return account, nil
}

// LockAccounts locks the existing rows in ascending user id order
func (r *AccountRepository) LockAccounts(ctx context.Context, userIDs []string) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM balances WHERE user_id = ANY($1) ORDER BY user_id FOR UPDATE`

	rows, err := r.q.Query(ctx, query, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to lock accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}

	return accounts, nil
}

// EnsureAccount creates a zero balance row when none exists. An existing row is left unlocked.
func (r *AccountRepository) EnsureAccount(ctx context.Context, userID, username string) error {
	query := `
		INSERT INTO balances (user_id, username, balance)
		VALUES ($1, $2, 0)
		ON CONFLICT (user_id) DO NOTHING
	`

	if _, err := r.q.Exec(ctx, query, userID, username); err != nil {
		return fmt.Errorf("failed to ensure account %s: %w", userID, err)
	}

	return nil
}

// Credit adds amount to the balance with a single upsert-increment
func (r *AccountRepository) Credit(ctx context.Context, userID, username string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("amount must be positive")
	}

	query := `
		INSERT INTO balances (user_id, username, balance)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET balance = balances.balance + EXCLUDED.balance,
		    username = COALESCE(NULLIF(EXCLUDED.username, ''), balances.username),
		    updated_at = NOW()
		RETURNING balance
	`

	var balance decimal.Decimal
	if err := r.q.QueryRow(ctx, query, userID, username, amount).Scan(&balance); err != nil {
		return decimal.Zero, fmt.Errorf("failed to credit account %s: %w", userID, err)
	}

	return balance, nil
}

// Debit removes amount from the balance, refusing to go below zero
func (r *AccountRepository) Debit(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("amount must be positive")
	}

	query := `
		UPDATE balances
		SET balance = balance - $2, updated_at = NOW()
		WHERE user_id = $1 AND balance >= $2
		RETURNING balance
	`

	var balance decimal.Decimal
	err := r.q.QueryRow(ctx, query, userID, amount).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("insufficient balance for account %s", userID)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to debit account %s: %w", userID, err)
	}

	return balance, nil
}

// SetBalance overwrites the balance, creating the row if needed
func (r *AccountRepository) SetBalance(ctx context.Context, userID, username string, amount decimal.Decimal) error {
	query := `
		INSERT INTO balances (user_id, username, balance)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET balance = EXCLUDED.balance,
		    username = COALESCE(NULLIF(EXCLUDED.username, ''), balances.username),
		    updated_at = NOW()
	`

	if _, err := r.q.Exec(ctx, query, userID, username, amount); err != nil {
		return fmt.Errorf("failed to set balance for account %s: %w", userID, err)
	}

	return nil
}

// UpdateProfile writes the non-nil profile fields, creating a zero balance row if needed
func (r *AccountRepository) UpdateProfile(ctx context.Context, userID string, profile models.UserProfile) error {
	query := `
		INSERT INTO balances (user_id, balance, pirate_name, real_name, ship_name, email, phone_number)
		VALUES ($1, 0, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE
		SET pirate_name = COALESCE(EXCLUDED.pirate_name, balances.pirate_name),
		    real_name = COALESCE(EXCLUDED.real_name, balances.real_name),
		    ship_name = COALESCE(EXCLUDED.ship_name, balances.ship_name),
		    email = COALESCE(EXCLUDED.email, balances.email),
		    phone_number = COALESCE(EXCLUDED.phone_number, balances.phone_number),
		    updated_at = NOW()
	`

	_, err := r.q.Exec(ctx, query, userID,
		profile.PirateName, profile.RealName, profile.ShipName, profile.Email, profile.PhoneNumber)
	if err != nil {
		return fmt.Errorf("failed to update profile for account %s: %w", userID, err)
	}

	return nil
}

// SumBalances returns the total of every balance
func (r *AccountRepository) SumBalances(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	if err := r.q.QueryRow(ctx, `SELECT COALESCE(SUM(balance), 0) FROM balances`).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum balances: %w", err)
	}
	return total, nil
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var account models.Account
	err := row.Scan(
		&account.UserID,
		&account.Username,
		&account.Balance,
		&account.Profile.PirateName,
		&account.Profile.RealName,
		&account.Profile.ShipName,
		&account.Profile.Email,
		&account.Profile.PhoneNumber,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &account, nil
}
