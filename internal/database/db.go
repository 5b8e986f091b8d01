// Package database is the store accessor for the staging tables.
//
// Queries follows the sqlc layout: one method per statement, constructed with
// New over anything satisfying DBTX (*pgxpool.Pool, *pgxpool.Conn or pgx.Tx).
// Every statement goes through CheckParameterized before it reaches the
// server, and values are bound only as pgx.NamedArgs.
package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the interface for database operations.
// Satisfied by *pgxpool.Pool, *pgxpool.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
	SendBatch(context.Context, *pgx.Batch) pgx.BatchResults
	CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error)
}

// Queries runs the pipeline's statements against a DBTX.
type Queries struct {
	db DBTX
}

// New returns Queries bound to db.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns Queries bound to tx.
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

func (q *Queries) exec(ctx context.Context, sql string, args pgx.NamedArgs) (int64, error) {
	if err := CheckParameterized(sql); err != nil {
		return 0, err
	}
	tag, err := q.db.Exec(ctx, sql, args)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (q *Queries) query(ctx context.Context, sql string, args pgx.NamedArgs) (pgx.Rows, error) {
	if err := CheckParameterized(sql); err != nil {
		return nil, err
	}
	return q.db.Query(ctx, sql, args)
}

func (q *Queries) queryRow(ctx context.Context, sql string, args pgx.NamedArgs) pgx.Row {
	if err := CheckParameterized(sql); err != nil {
		return errRow{err: err}
	}
	return q.db.QueryRow(ctx, sql, args)
}

// sendBatch queues sql once per args entry and runs the whole batch in a
// single round trip. Each statement must return at most one id; statements
// that return no row (ON CONFLICT DO NOTHING) are not counted.
func (q *Queries) sendBatch(ctx context.Context, sql string, args []pgx.NamedArgs) ([]int64, error) {
	if len(args) == 0 {
		return nil, nil
	}
	if err := CheckParameterized(sql); err != nil {
		return nil, err
	}

	batch := &pgx.Batch{}
	for _, a := range args {
		batch.Queue(sql, a)
	}

	br := q.db.SendBatch(ctx, batch)
	ids := make([]int64, 0, len(args))
	for range args {
		var id int64
		err := br.QueryRow().Scan(&id)
		if err == pgx.ErrNoRows {
			continue
		}
		if err != nil {
			_ = br.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := br.Close(); err != nil {
		return nil, err
	}
	return ids, nil
}

// errRow lets queryRow report a guard failure through the normal Scan path.
type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }
