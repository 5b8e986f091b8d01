package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/stagepipe/internal/database"
)

// ResetResult reports how many rows each table lost.
type ResetResult struct {
	Final      int64 `json:"final"`
	Processed  int64 `json:"processed"`
	Raw        int64 `json:"raw"`
	EtlMetrics int64 `json:"etlMetrics"`
}

type tableReset struct {
	table string
	fn    func(ctx context.Context) (int64, error)
	dst   *int64
}

// Reset empties all four tables in one transaction, children first.
// This is a destructive operation - use with caution.
func (s *Service) Reset(ctx context.Context) (ResetResult, error) {
	var res ResetResult
	err := s.acc.WithTx(ctx, func(q *database.Queries) error {
		return runResets(ctx, []tableReset{
			{"final_data", q.ResetFinalData, &res.Final},
			{"processed_data", q.ResetProcessedData, &res.Processed},
			{"raw_data", q.ResetRawData, &res.Raw},
			{"etl_metrics", q.ResetEtlMetrics, &res.EtlMetrics},
		})
	})
	if err != nil {
		return ResetResult{}, fmt.Errorf("reset: %w", err)
	}

	slog.Info("tables reset",
		"final", res.Final,
		"processed", res.Processed,
		"raw", res.Raw,
		"etl_metrics", res.EtlMetrics,
	)
	return res, nil
}

func runResets(ctx context.Context, resets []tableReset) error {
	for _, r := range resets {
		n, err := r.fn(ctx)
		if err != nil {
			return fmt.Errorf("clear %s: %w", r.table, err)
		}
		*r.dst = n
	}
	return nil
}
