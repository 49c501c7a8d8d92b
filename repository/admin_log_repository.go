package repository

import (
	"context"
	"fmt"

	"nationbank/database"
	"nationbank/models"
)

// AdminLogRepository implements the AdminLogRepository interface
type AdminLogRepository struct {
	q queryable
}

// NewAdminLogRepository creates a new admin log repository
func NewAdminLogRepository(db *database.DB) *AdminLogRepository {
	return &AdminLogRepository{q: db.Pool}
}

// newAdminLogRepositoryWithTx creates a new admin log repository with a transaction
func newAdminLogRepositoryWithTx(tx queryable) *AdminLogRepository {
	return &AdminLogRepository{q: tx}
}

// Record appends an admin log entry
func (r *AdminLogRepository) Record(ctx context.Context, entry *models.AdminLog) error {
	query := `
		INSERT INTO admin_logs (admin_id, admin_username, action, details)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query, entry.AdminID, entry.AdminUsername, entry.Action, entry.Details).
		Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record admin action %s: %w", entry.Action, err)
	}

	return nil
}

// GetRecent returns the newest admin log entries first
func (r *AdminLogRepository) GetRecent(ctx context.Context, limit int) ([]*models.AdminLog, error) {
	query := `
		SELECT id, admin_id, admin_username, action, details, created_at
		FROM admin_logs
		ORDER BY id DESC
		LIMIT $1
	`

	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get admin logs: %w", err)
	}
	defer rows.Close()

	var entries []*models.AdminLog
	for rows.Next() {
		var entry models.AdminLog
		err := rows.Scan(
			&entry.ID,
			&entry.AdminID,
			&entry.AdminUsername,
			&entry.Action,
			&entry.Details,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan admin log: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate admin logs: %w", err)
	}

	return entries, nil
}
