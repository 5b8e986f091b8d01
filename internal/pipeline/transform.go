package pipeline

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/stagepipe/internal/database"
	"github.com/JonMunkholm/stagepipe/internal/logging"
	"github.com/JonMunkholm/stagepipe/internal/payload"
	"github.com/jonboulle/clockwork"
)

// DefaultBatchSize bounds how many rows one transform or load batch claims.
const DefaultBatchSize = 500

// Transformer turns raw records into processed records.
type Transformer struct {
	acc       *database.Accessor
	policy    CleanPolicy
	batchSize int
	clock     clockwork.Clock
}

// NewTransformer creates a Transformer. batchSize <= 0 uses DefaultBatchSize.
func NewTransformer(acc *database.Accessor, policy CleanPolicy, batchSize int, clock clockwork.Clock) *Transformer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Transformer{acc: acc, policy: policy, batchSize: batchSize, clock: clock}
}

// Transform cleans raw records that have no processed record yet. With a
// non-nil rawID only that record is considered. It returns the number of
// processed records written.
//
// Records are claimed in batches. Each batch claims and inserts in one
// transaction, so a failure leaves earlier batches committed and the
// returned count reflects them.
func (t *Transformer) Transform(ctx context.Context, rawID *int64) (int, error) {
	log := logging.WithFields(ctx, "stage", StageTransform)

	total := 0
	for {
		claimed, inserted, err := t.transformBatch(ctx, rawID)
		total += inserted
		if err != nil {
			return total, fmt.Errorf("transform: %w", err)
		}
		if claimed == 0 || rawID != nil {
			break
		}
		log.Debug("transform batch committed", "claimed", claimed, "inserted", inserted)
	}

	if total == 0 {
		log.Info("no raw records pending")
	} else {
		log.Info("transformed records", "count", total)
	}
	return total, nil
}

func (t *Transformer) transformBatch(ctx context.Context, rawID *int64) (claimed, inserted int, err error) {
	err = t.acc.WithTx(ctx, func(q *database.Queries) error {
		rows, err := q.ClaimPendingRaw(ctx, database.ClaimParams{ID: rawID, Limit: t.batchSize})
		if err != nil {
			return fmt.Errorf("claim raw records: %w", err)
		}
		claimed = len(rows)
		if claimed == 0 {
			return nil
		}

		now := t.clock.Now()
		params := make([]database.InsertProcessedRecordParams, 0, len(rows))
		for _, r := range rows {
			v, err := payload.Parse([]byte(r.Data))
			if err != nil {
				return fmt.Errorf("%w: raw record %d: %v", ErrMalformedPayload, r.ID, err)
			}

			data, err := payload.Canonical(payload.ObjectValue(Clean(v, t.policy)))
			if err != nil {
				return fmt.Errorf("encode raw record %d: %w", r.ID, err)
			}
			params = append(params, database.InsertProcessedRecordParams{
				RawDataID:     r.ID,
				Data:          data,
				ProcessedDate: now,
			})
		}

		ids, err := q.InsertProcessedRecords(ctx, params)
		if err != nil {
			return fmt.Errorf("insert processed records: %w", err)
		}
		inserted = len(ids)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return claimed, inserted, nil
}
