package database

import (
	"context"
	"fmt"
)

// schema creates the four staging tables. Statements are idempotent.
//
// UNIQUE on the stage foreign keys means a downstream row can exist at most
// once per upstream row even if two workers race past the claim query.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS raw_data (
		id BIGSERIAL PRIMARY KEY,
		source VARCHAR(50) NOT NULL,
		data TEXT NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS processed_data (
		id BIGSERIAL PRIMARY KEY,
		raw_data_id BIGINT NOT NULL UNIQUE REFERENCES raw_data(id),
		data JSONB NOT NULL,
		processed_date TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS final_data (
		id BIGSERIAL PRIMARY KEY,
		processed_data_id BIGINT NOT NULL UNIQUE REFERENCES processed_data(id),
		metrics JSONB NOT NULL,
		dimensions JSONB NOT NULL,
		insights TEXT NOT NULL,
		report_date TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS etl_metrics (
		id BIGSERIAL PRIMARY KEY,
		process_name VARCHAR(50) NOT NULL,
		start_time TIMESTAMPTZ NOT NULL,
		end_time TIMESTAMPTZ NOT NULL,
		records_processed INTEGER NOT NULL,
		success BOOLEAN NOT NULL,
		error_message TEXT,
		execution_date DATE NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_etl_metrics_start_time ON etl_metrics (start_time DESC)`,
}

// CreateTables creates the staging tables if they do not exist.
func (q *Queries) CreateTables(ctx context.Context) error {
	for _, stmt := range schema {
		if err := CheckParameterized(stmt); err != nil {
			return fmt.Errorf("schema: %w", err)
		}
		if _, err := q.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}
	return nil
}
