package pipeline

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/stagepipe/internal/database"
	"github.com/JonMunkholm/stagepipe/internal/logging"
	"github.com/JonMunkholm/stagepipe/internal/payload"
	"github.com/jonboulle/clockwork"
)

// Loader turns processed records into final records.
type Loader struct {
	acc       *database.Accessor
	threshold float64
	batchSize int
	clock     clockwork.Clock
}

// NewLoader creates a Loader.
func NewLoader(acc *database.Accessor, threshold float64, batchSize int, clock clockwork.Clock) *Loader {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Loader{acc: acc, threshold: threshold, batchSize: batchSize, clock: clock}
}

// Load analyzes processed records that have no final record yet. With a
// non-nil processedID only that record is considered. Batching follows
// Transformer.Transform.
func (l *Loader) Load(ctx context.Context, processedID *int64) (int, error) {
	log := logging.WithFields(ctx, "stage", StageLoad)

	total := 0
	for {
		claimed, inserted, err := l.loadBatch(ctx, processedID)
		total += inserted
		if err != nil {
			return total, fmt.Errorf("load: %w", err)
		}
		if claimed == 0 || processedID != nil {
			break
		}
		log.Debug("load batch committed", "claimed", claimed, "inserted", inserted)
	}

	if total == 0 {
		log.Info("no processed records pending")
	} else {
		log.Info("loaded records", "count", total)
	}
	return total, nil
}

func (l *Loader) loadBatch(ctx context.Context, processedID *int64) (claimed, inserted int, err error) {
	err = l.acc.WithTx(ctx, func(q *database.Queries) error {
		rows, err := q.ClaimPendingProcessed(ctx, database.ClaimParams{ID: processedID, Limit: l.batchSize})
		if err != nil {
			return fmt.Errorf("claim processed records: %w", err)
		}
		claimed = len(rows)
		if claimed == 0 {
			return nil
		}

		now := l.clock.Now()
		params := make([]database.InsertFinalRecordParams, 0, len(rows))
		for _, r := range rows {
			p, err := l.build(r)
			if err != nil {
				return err
			}
			p.ReportDate = now
			params = append(params, p)
		}

		ids, err := q.InsertFinalRecords(ctx, params)
		if err != nil {
			return fmt.Errorf("insert final records: %w", err)
		}
		inserted = len(ids)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return claimed, inserted, nil
}

func (l *Loader) build(r database.ProcessedRecord) (database.InsertFinalRecordParams, error) {
	v, err := payload.Parse(r.Data)
	if err != nil {
		return database.InsertFinalRecordParams{}, fmt.Errorf("%w: processed record %d: %v", ErrMalformedPayload, r.ID, err)
	}
	obj, ok := v.AsObject()
	if !ok {
		obj = payload.NewObject()
		obj.Set("value", v)
	}

	a := Analyze(obj, l.threshold)
	metrics, err := payload.Canonical(payload.ObjectValue(a.Metrics))
	if err != nil {
		return database.InsertFinalRecordParams{}, fmt.Errorf("encode metrics %d: %w", r.ID, err)
	}
	dims, err := payload.Canonical(payload.ObjectValue(a.Dimensions))
	if err != nil {
		return database.InsertFinalRecordParams{}, fmt.Errorf("encode dimensions %d: %w", r.ID, err)
	}

	return database.InsertFinalRecordParams{
		ProcessedDataID: r.ID,
		Metrics:         metrics,
		Dimensions:      dims,
		Insights:        a.Insight,
	}, nil
}
