package database

import "context"

const (
	resetFinalData     = `DELETE FROM final_data`
	resetProcessedData = `DELETE FROM processed_data`
	resetRawData       = `DELETE FROM raw_data`
	resetEtlMetrics    = `DELETE FROM etl_metrics`
)

// ResetFinalData deletes every final row.
func (q *Queries) ResetFinalData(ctx context.Context) (int64, error) {
	return q.exec(ctx, resetFinalData, nil)
}

// ResetProcessedData deletes every processed row.
func (q *Queries) ResetProcessedData(ctx context.Context) (int64, error) {
	return q.exec(ctx, resetProcessedData, nil)
}

// ResetRawData deletes every raw row.
func (q *Queries) ResetRawData(ctx context.Context) (int64, error) {
	return q.exec(ctx, resetRawData, nil)
}

// ResetEtlMetrics deletes every run metric.
func (q *Queries) ResetEtlMetrics(ctx context.Context) (int64, error) {
	return q.exec(ctx, resetEtlMetrics, nil)
}
