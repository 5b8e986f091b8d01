package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

const insertRawRecord = `
INSERT INTO raw_data (source, data, timestamp)
VALUES (@source, @data, @timestamp)
RETURNING id`

// InsertRawRecordParams holds one raw row to insert.
type InsertRawRecordParams struct {
	Source    string
	Data      string
	Timestamp time.Time
}

// InsertRawRecord inserts one raw row and returns its id.
func (q *Queries) InsertRawRecord(ctx context.Context, arg InsertRawRecordParams) (int64, error) {
	var id int64
	err := q.queryRow(ctx, insertRawRecord, pgx.NamedArgs{
		"source":    arg.Source,
		"data":      arg.Data,
		"timestamp": arg.Timestamp,
	}).Scan(&id)
	return id, err
}

// CopyRawRecords bulk-inserts raw rows with the COPY protocol.
func (q *Queries) CopyRawRecords(ctx context.Context, rows []InsertRawRecordParams) (int64, error) {
	return q.db.CopyFrom(ctx,
		pgx.Identifier{"raw_data"},
		[]string{"source", "data", "timestamp"},
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			return []any{rows[i].Source, rows[i].Data, rows[i].Timestamp}, nil
		}),
	)
}

const claimPendingRaw = `
SELECT r.id, r.source, r.data, r.timestamp
FROM raw_data r
WHERE NOT EXISTS (SELECT 1 FROM processed_data p WHERE p.raw_data_id = r.id)
  AND (@id::bigint IS NULL OR r.id = @id::bigint)
ORDER BY r.id
LIMIT @limit
FOR UPDATE OF r SKIP LOCKED`

// ClaimParams selects which pending rows to claim. A nil ID claims any.
type ClaimParams struct {
	ID    *int64
	Limit int
}

// ClaimPendingRaw locks raw rows that have no processed row yet, in id order.
// Rows locked by another transaction are skipped, so it must run inside the
// transaction that will insert the processed rows.
func (q *Queries) ClaimPendingRaw(ctx context.Context, arg ClaimParams) ([]RawRecord, error) {
	rows, err := q.query(ctx, claimPendingRaw, pgx.NamedArgs{
		"id":    arg.ID,
		"limit": arg.Limit,
	})
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (RawRecord, error) {
		var r RawRecord
		err := row.Scan(&r.ID, &r.Source, &r.Data, &r.Timestamp)
		return r, err
	})
}

const getRawRecord = `
SELECT id, source, data, timestamp FROM raw_data WHERE id = @id`

// GetRawRecord returns one raw row.
func (q *Queries) GetRawRecord(ctx context.Context, id int64) (RawRecord, error) {
	var r RawRecord
	err := q.queryRow(ctx, getRawRecord, pgx.NamedArgs{"id": id}).
		Scan(&r.ID, &r.Source, &r.Data, &r.Timestamp)
	return r, err
}
