package database

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/stagepipe/internal/config"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Row is one fetched row keyed by column name.
type Row = map[string]any

// Accessor hands out pooled connections one operation at a time. Nothing is
// held between calls: each method acquires a connection, runs, and releases
// it before returning.
type Accessor struct {
	pool *pgxpool.Pool
}

// NewAccessor wraps pool.
func NewAccessor(pool *pgxpool.Pool) *Accessor {
	return &Accessor{pool: pool}
}

// Connect parses connString, applies opts and verifies the pool with a ping.
func Connect(ctx context.Context, connString string, opts ...func(*pgxpool.Config)) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	for _, opt := range opts {
		opt(poolConfig)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// PoolSettings applies the pool limits from cfg.
func PoolSettings(cfg config.DatabaseConfig) func(*pgxpool.Config) {
	return func(pc *pgxpool.Config) {
		pc.MaxConns = int32(cfg.MaxConns)
		pc.MinConns = int32(cfg.MinConns)
		pc.MaxConnLifetime = cfg.MaxConnLifetime
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
}

// Query runs a parameterized statement and returns all rows.
func (a *Accessor) Query(ctx context.Context, sql string, args pgx.NamedArgs) ([]Row, error) {
	if err := CheckParameterized(sql); err != nil {
		return nil, err
	}

	var out []Row
	err := a.withConn(ctx, func(conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, sql, args)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, pgx.RowToMap)
		return err
	})
	return out, err
}

// Exec runs a parameterized statement and returns the affected row count.
func (a *Accessor) Exec(ctx context.Context, sql string, args pgx.NamedArgs) (int64, error) {
	if err := CheckParameterized(sql); err != nil {
		return 0, err
	}

	var affected int64
	err := a.withConn(ctx, func(conn *pgxpool.Conn) error {
		tag, err := conn.Exec(ctx, sql, args)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	})
	return affected, err
}

// WithConn runs fn with Queries bound to a freshly acquired connection.
func (a *Accessor) WithConn(ctx context.Context, fn func(q *Queries) error) error {
	return a.withConn(ctx, func(conn *pgxpool.Conn) error {
		return fn(New(conn))
	})
}

// WithTx runs fn inside a transaction on a freshly acquired connection.
// The transaction commits when fn returns nil and rolls back otherwise.
func (a *Accessor) WithTx(ctx context.Context, fn func(q *Queries) error) error {
	return a.withConn(ctx, func(conn *pgxpool.Conn) error {
		tx, err := conn.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := fn(New(tx)); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		return nil
	})
}

// Ping checks connectivity.
func (a *Accessor) Ping(ctx context.Context) error {
	return a.pool.Ping(ctx)
}

func (a *Accessor) withConn(ctx context.Context, fn func(conn *pgxpool.Conn) error) error {
	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()
	return fn(conn)
}
