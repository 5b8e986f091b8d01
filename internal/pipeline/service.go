// Package pipeline moves records through the raw, processed and final
// stages and records every run in etl_metrics.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/JonMunkholm/stagepipe/internal/config"
	"github.com/JonMunkholm/stagepipe/internal/database"
	"github.com/JonMunkholm/stagepipe/internal/logging"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Options configures a Service.
type Options struct {
	BatchSize            int
	VariabilityThreshold float64
	Clean                CleanPolicy
	HTTPClient           *http.Client
	Clock                clockwork.Clock
}

// OptionsFromConfig maps pipeline settings onto Options.
func OptionsFromConfig(cfg config.PipelineConfig) (Options, error) {
	collision, err := ParseCollision(cfg.KeyCollision)
	if err != nil {
		return Options{}, err
	}
	return Options{
		BatchSize:            cfg.BatchSize,
		VariabilityThreshold: cfg.VariabilityThreshold,
		Clean:                CleanPolicy{TempPrefix: cfg.TempPrefix, Collision: collision},
		HTTPClient:           &http.Client{Timeout: cfg.HTTPTimeout},
	}, nil
}

// Service bundles the three stages and records each operation it runs.
type Service struct {
	acc   *database.Accessor
	clock clockwork.Clock

	extractor   *Extractor
	transformer *Transformer
	loader      *Loader
}

// NewService wires the stages around acc.
func NewService(acc *database.Accessor, opts Options) *Service {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		acc:         acc,
		clock:       clock,
		extractor:   NewExtractor(acc, opts.HTTPClient, clock),
		transformer: NewTransformer(acc, opts.Clean, opts.BatchSize, clock),
		loader:      NewLoader(acc, opts.VariabilityThreshold, opts.BatchSize, clock),
	}
}

// ExtractCSV runs Extractor.ExtractCSV and records the run.
func (s *Service) ExtractCSV(ctx context.Context, path, source string) (int, error) {
	return s.track(ctx, StageExtract, func(ctx context.Context) (int, error) {
		return s.extractor.ExtractCSV(ctx, path, source)
	})
}

// ExtractCSVReader runs Extractor.ExtractCSVReader and records the run.
func (s *Service) ExtractCSVReader(ctx context.Context, r io.Reader, source string) (int, error) {
	return s.track(ctx, StageExtract, func(ctx context.Context) (int, error) {
		return s.extractor.ExtractCSVReader(ctx, r, source)
	})
}

// ExtractAPI runs Extractor.ExtractAPI and records the run.
func (s *Service) ExtractAPI(ctx context.Context, url string, params map[string]string, source string) (int, error) {
	return s.track(ctx, StageExtract, func(ctx context.Context) (int, error) {
		return s.extractor.ExtractAPI(ctx, url, params, source)
	})
}

// Transform runs Transformer.Transform and records the run.
func (s *Service) Transform(ctx context.Context, rawID *int64) (int, error) {
	return s.track(ctx, StageTransform, func(ctx context.Context) (int, error) {
		return s.transformer.Transform(ctx, rawID)
	})
}

// Load runs Loader.Load and records the run.
func (s *Service) Load(ctx context.Context, processedID *int64) (int, error) {
	return s.track(ctx, StageLoad, func(ctx context.Context) (int, error) {
		return s.loader.Load(ctx, processedID)
	})
}

// RunResult reports one full transform+load pass.
type RunResult struct {
	RunID       string `json:"runId"`
	Transformed int    `json:"transformed"`
	Loaded      int    `json:"loaded"`
}

// Run transforms every pending raw record and then loads every pending
// processed record. It is recorded as a single full_etl run.
func (s *Service) Run(ctx context.Context) (RunResult, error) {
	var res RunResult
	ctx = withRunID(ctx)
	res.RunID = runIDFrom(ctx)

	_, err := s.track(ctx, StageFullETL, func(ctx context.Context) (int, error) {
		var err error
		res.Transformed, err = s.transformer.Transform(ctx, nil)
		if err != nil {
			return res.Transformed, err
		}
		res.Loaded, err = s.loader.Load(ctx, nil)
		return res.Transformed + res.Loaded, err
	})
	return res, err
}

// Status returns row counts per stage.
func (s *Service) Status(ctx context.Context) (database.StageCounts, error) {
	var counts database.StageCounts
	err := s.acc.WithConn(ctx, func(q *database.Queries) error {
		var err error
		counts, err = q.StageCounts(ctx)
		return err
	})
	if err != nil {
		return database.StageCounts{}, fmt.Errorf("stage counts: %w", err)
	}
	return counts, nil
}

// Runs returns the most recent recorded runs, newest first.
func (s *Service) Runs(ctx context.Context, limit int) ([]database.EtlRunMetric, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []database.EtlRunMetric
	err := s.acc.WithConn(ctx, func(q *database.Queries) error {
		var err error
		runs, err = q.ListEtlMetrics(ctx, limit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Ping checks database connectivity.
func (s *Service) Ping(ctx context.Context) error {
	return s.acc.Ping(ctx)
}

// track runs fn, then writes an etl_metrics row and updates Prometheus
// counters. A failure to record is logged and does not change fn's result.
func (s *Service) track(ctx context.Context, stage string, fn func(context.Context) (int, error)) (int, error) {
	ctx = withRunID(ctx)
	log := logging.WithFields(ctx, "stage", stage, "run_id", runIDFrom(ctx))

	start := s.clock.Now()
	n, err := fn(ctx)
	end := s.clock.Now()

	observeRun(stage, n, end.Sub(start).Seconds(), err)

	params := database.InsertEtlMetricParams{
		ProcessName:      stage,
		StartTime:        start,
		EndTime:          end,
		RecordsProcessed: int32(n),
		Success:          err == nil,
		ExecutionDate:    start,
	}
	if err != nil {
		msg := err.Error()
		params.ErrorMessage = &msg
		log.Error("pipeline stage failed", "error", err, "records", n)
	}

	// Record even if the caller's context was cancelled mid-run.
	recordCtx := context.WithoutCancel(ctx)
	if rerr := s.acc.WithConn(recordCtx, func(q *database.Queries) error {
		_, err := q.InsertEtlMetric(recordCtx, params)
		return err
	}); rerr != nil {
		log.Warn("failed to record run", "error", rerr)
	}

	return n, err
}

type runIDKey struct{}

func withRunID(ctx context.Context) context.Context {
	if runIDFrom(ctx) != "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey{}, uuid.NewString())
}

func runIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
