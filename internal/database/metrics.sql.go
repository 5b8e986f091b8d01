package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

const insertEtlMetric = `
INSERT INTO etl_metrics (process_name, start_time, end_time, records_processed, success, error_message, execution_date)
VALUES (@process_name, @start_time, @end_time, @records_processed, @success, @error_message, @execution_date)
RETURNING id`

// InsertEtlMetricParams describes one finished run.
type InsertEtlMetricParams struct {
	ProcessName      string
	StartTime        time.Time
	EndTime          time.Time
	RecordsProcessed int32
	Success          bool
	ErrorMessage     *string
	ExecutionDate    time.Time
}

// InsertEtlMetric records one run and returns its id.
func (q *Queries) InsertEtlMetric(ctx context.Context, arg InsertEtlMetricParams) (int64, error) {
	var id int64
	err := q.queryRow(ctx, insertEtlMetric, pgx.NamedArgs{
		"process_name":      arg.ProcessName,
		"start_time":        arg.StartTime,
		"end_time":          arg.EndTime,
		"records_processed": arg.RecordsProcessed,
		"success":           arg.Success,
		"error_message":     arg.ErrorMessage,
		"execution_date":    arg.ExecutionDate,
	}).Scan(&id)
	return id, err
}

// CopyEtlMetrics bulk-inserts run rows with the COPY protocol.
func (q *Queries) CopyEtlMetrics(ctx context.Context, rows []InsertEtlMetricParams) (int64, error) {
	return q.db.CopyFrom(ctx,
		pgx.Identifier{"etl_metrics"},
		[]string{"process_name", "start_time", "end_time", "records_processed", "success", "error_message", "execution_date"},
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			r := rows[i]
			return []any{r.ProcessName, r.StartTime, r.EndTime, r.RecordsProcessed, r.Success, r.ErrorMessage, r.ExecutionDate}, nil
		}),
	)
}

const listEtlMetrics = `
SELECT id, process_name, start_time, end_time, records_processed, success, error_message, execution_date
FROM etl_metrics
ORDER BY start_time DESC, id DESC
LIMIT @limit`

// ListEtlMetrics returns the most recent runs first.
func (q *Queries) ListEtlMetrics(ctx context.Context, limit int) ([]EtlRunMetric, error) {
	rows, err := q.query(ctx, listEtlMetrics, pgx.NamedArgs{"limit": limit})
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (EtlRunMetric, error) {
		var m EtlRunMetric
		err := row.Scan(&m.ID, &m.ProcessName, &m.StartTime, &m.EndTime,
			&m.RecordsProcessed, &m.Success, &m.ErrorMessage, &m.ExecutionDate)
		return m, err
	})
}

const stageCounts = `
SELECT
	(SELECT count(*) FROM raw_data) AS raw,
	(SELECT count(*) FROM processed_data) AS processed,
	(SELECT count(*) FROM final_data) AS final,
	(SELECT count(*) FROM etl_metrics) AS etl_metrics,
	(SELECT count(*) FROM raw_data r
		WHERE NOT EXISTS (SELECT 1 FROM processed_data p WHERE p.raw_data_id = r.id)) AS pending_transform,
	(SELECT count(*) FROM processed_data p
		WHERE NOT EXISTS (SELECT 1 FROM final_data f WHERE f.processed_data_id = p.id)) AS pending_load`

// StageCounts returns row counts per stage.
func (q *Queries) StageCounts(ctx context.Context) (StageCounts, error) {
	var c StageCounts
	err := q.queryRow(ctx, stageCounts, nil).Scan(
		&c.Raw, &c.Processed, &c.Final, &c.EtlMetrics, &c.PendingTransform, &c.PendingLoad)
	return c, err
}
