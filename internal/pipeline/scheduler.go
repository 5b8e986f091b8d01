package pipeline

// scheduler.go runs the pipeline in the background.
//
// Each tick performs one full transform+load pass. Failures are logged and
// recorded in etl_metrics but never stop the scheduler; the next tick simply
// tries again with whatever is still pending.

import (
	"context"
	"log/slog"
	"time"
)

// StartScheduler runs a full pass immediately and then every interval until
// ctx is cancelled. It blocks; call it in its own goroutine.
func (s *Service) StartScheduler(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	slog.Info("pipeline scheduler started", "interval", interval)

	// Run immediately on startup
	s.runScheduled(ctx)

	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("pipeline scheduler stopped")
			return
		case <-ticker.Chan():
			s.runScheduled(ctx)
		}
	}
}

func (s *Service) runScheduled(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := s.clock.Now()
	res, err := s.Run(ctx)
	if err != nil {
		slog.Error("scheduled pipeline run failed", "run_id", res.RunID, "error", err)
		return
	}
	slog.Info("scheduled pipeline run completed",
		"run_id", res.RunID,
		"transformed", res.Transformed,
		"loaded", res.Loaded,
		"duration_ms", s.clock.Since(start).Milliseconds(),
	)
}
