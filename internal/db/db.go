// Package db is a thin, hand-written data access layer shaped like
// sqlc-generated code: a DBTX interface satisfied by both a connection
// pool and a single connection, and a Queries struct exposing one method
// per statement. There is no generator here — the shapes are derived
// directly from how the rest of the module calls them.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool, *pgxpool.Conn, and pgx.Tx, so
// callers can run queries against a pool, a checked-out connection (for
// session-scoped work) or an in-flight transaction interchangeably.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries wraps a DBTX with the statements the Device Fabric needs.
type Queries struct {
	db DBTX
}

// New creates a Queries bound to the given executor.
func New(dbtx DBTX) *Queries {
	return &Queries{db: dbtx}
}

// WithTx returns a Queries bound to the given transaction.
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}
