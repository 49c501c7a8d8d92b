package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// queryable is satisfied by both *pgxpool.Pool and pgx.Tx
type queryable interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// matchLocks are tried in order by the amount-matching finders. A match held by
// another session is skipped first; the finder only waits when every match is held.
var matchLocks = []string{"FOR UPDATE SKIP LOCKED", "FOR UPDATE"}
