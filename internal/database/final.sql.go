package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

const insertFinalRecord = `
INSERT INTO final_data (processed_data_id, metrics, dimensions, insights, report_date)
VALUES (@processed_data_id, @metrics, @dimensions, @insights, @report_date)
ON CONFLICT (processed_data_id) DO NOTHING
RETURNING id`

// InsertFinalRecordParams holds one final row to insert.
type InsertFinalRecordParams struct {
	ProcessedDataID int64
	Metrics         []byte
	Dimensions      []byte
	Insights        string
	ReportDate      time.Time
}

func (p InsertFinalRecordParams) args() pgx.NamedArgs {
	return pgx.NamedArgs{
		"processed_data_id": p.ProcessedDataID,
		"metrics":           p.Metrics,
		"dimensions":        p.Dimensions,
		"insights":          p.Insights,
		"report_date":       p.ReportDate,
	}
}

// InsertFinalRecord inserts one final row. It returns pgx.ErrNoRows when
// the processed row already has a final row.
func (q *Queries) InsertFinalRecord(ctx context.Context, arg InsertFinalRecordParams) (int64, error) {
	var id int64
	err := q.queryRow(ctx, insertFinalRecord, arg.args()).Scan(&id)
	return id, err
}

// InsertFinalRecords inserts all rows in one batch and returns the ids of
// rows actually inserted.
func (q *Queries) InsertFinalRecords(ctx context.Context, rows []InsertFinalRecordParams) ([]int64, error) {
	args := make([]pgx.NamedArgs, len(rows))
	for i, r := range rows {
		args[i] = r.args()
	}
	return q.sendBatch(ctx, insertFinalRecord, args)
}

const getFinalByProcessedID = `
SELECT id, processed_data_id, metrics, dimensions, insights, report_date
FROM final_data WHERE processed_data_id = @processed_data_id`

// GetFinalByProcessedID returns the final row derived from a processed row.
func (q *Queries) GetFinalByProcessedID(ctx context.Context, processedDataID int64) (FinalRecord, error) {
	rows, err := q.query(ctx, getFinalByProcessedID, pgx.NamedArgs{"processed_data_id": processedDataID})
	if err != nil {
		return FinalRecord{}, err
	}
	return pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (FinalRecord, error) {
		var f FinalRecord
		err := row.Scan(&f.ID, &f.ProcessedDataID, &f.Metrics, &f.Dimensions, &f.Insights, &f.ReportDate)
		return f, err
	})
}
