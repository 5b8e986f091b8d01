package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

const insertProcessedRecord = `
INSERT INTO processed_data (raw_data_id, data, processed_date)
VALUES (@raw_data_id, @data, @processed_date)
ON CONFLICT (raw_data_id) DO NOTHING
RETURNING id`

// InsertProcessedRecordParams holds one processed row to insert.
type InsertProcessedRecordParams struct {
	RawDataID     int64
	Data          []byte
	ProcessedDate time.Time
}

func (p InsertProcessedRecordParams) args() pgx.NamedArgs {
	return pgx.NamedArgs{
		"raw_data_id":    p.RawDataID,
		"data":           p.Data,
		"processed_date": p.ProcessedDate,
	}
}

// InsertProcessedRecord inserts one processed row. It returns
// pgx.ErrNoRows when the raw row already has a processed row.
func (q *Queries) InsertProcessedRecord(ctx context.Context, arg InsertProcessedRecordParams) (int64, error) {
	var id int64
	err := q.queryRow(ctx, insertProcessedRecord, arg.args()).Scan(&id)
	return id, err
}

// InsertProcessedRecords inserts all rows in one batch and returns the ids
// of rows actually inserted.
func (q *Queries) InsertProcessedRecords(ctx context.Context, rows []InsertProcessedRecordParams) ([]int64, error) {
	args := make([]pgx.NamedArgs, len(rows))
	for i, r := range rows {
		args[i] = r.args()
	}
	return q.sendBatch(ctx, insertProcessedRecord, args)
}

const claimPendingProcessed = `
SELECT p.id, p.raw_data_id, p.data, p.processed_date
FROM processed_data p
WHERE NOT EXISTS (SELECT 1 FROM final_data f WHERE f.processed_data_id = p.id)
  AND (@id::bigint IS NULL OR p.id = @id::bigint)
ORDER BY p.id
LIMIT @limit
FOR UPDATE OF p SKIP LOCKED`

// ClaimPendingProcessed locks processed rows that have no final row yet.
func (q *Queries) ClaimPendingProcessed(ctx context.Context, arg ClaimParams) ([]ProcessedRecord, error) {
	rows, err := q.query(ctx, claimPendingProcessed, pgx.NamedArgs{
		"id":    arg.ID,
		"limit": arg.Limit,
	})
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanProcessed)
}

const getProcessedByRawID = `
SELECT id, raw_data_id, data, processed_date FROM processed_data WHERE raw_data_id = @raw_data_id`

// GetProcessedByRawID returns the processed row derived from a raw row.
func (q *Queries) GetProcessedByRawID(ctx context.Context, rawDataID int64) (ProcessedRecord, error) {
	rows, err := q.query(ctx, getProcessedByRawID, pgx.NamedArgs{"raw_data_id": rawDataID})
	if err != nil {
		return ProcessedRecord{}, err
	}
	return pgx.CollectExactlyOneRow(rows, scanProcessed)
}

func scanProcessed(row pgx.CollectableRow) (ProcessedRecord, error) {
	var p ProcessedRecord
	err := row.Scan(&p.ID, &p.RawDataID, &p.Data, &p.ProcessedDate)
	return p, err
}
