package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JonMunkholm/stagepipe/internal/database"
	"github.com/JonMunkholm/stagepipe/internal/database/dbtest"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessor_QueryAndExec(t *testing.T) {
	ctx := context.Background()
	acc := database.NewAccessor(dbtest.NewPool(t))

	n, err := acc.Exec(ctx,
		`INSERT INTO raw_data (source, data, timestamp) VALUES (@source, @data, now())`,
		pgx.NamedArgs{"source": "csv", "data": `{"a":1}`})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rows, err := acc.Query(ctx, `SELECT source, data FROM raw_data WHERE source = @source`,
		pgx.NamedArgs{"source": "csv"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "csv", rows[0]["source"])
	assert.Equal(t, `{"a":1}`, rows[0]["data"])

	_, err = acc.Exec(ctx, `DELETE FROM raw_data WHERE source = 'csv'`, nil)
	assert.ErrorIs(t, err, database.ErrUnparameterized)
}

func TestClaimPendingRaw_SkipsLockedAndProcessed(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.NewPool(t)
	acc := database.NewAccessor(pool)
	now := time.Now()

	_, err := database.New(pool).CopyRawRecords(ctx, []database.InsertRawRecordParams{
		{Source: "s", Data: `{"a":1}`, Timestamp: now},
		{Source: "s", Data: `{"a":2}`, Timestamp: now},
		{Source: "s", Data: `{"a":3}`, Timestamp: now},
	})
	require.NoError(t, err)

	// First transaction claims two rows and keeps them locked.
	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	first, err := database.New(tx).ClaimPendingRaw(ctx, database.ClaimParams{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Less(t, first[0].ID, first[1].ID)

	// A concurrent claimer only sees the unlocked row.
	err = acc.WithTx(ctx, func(q *database.Queries) error {
		second, err := q.ClaimPendingRaw(ctx, database.ClaimParams{Limit: 10})
		if err != nil {
			return err
		}
		require.Len(t, second, 1)
		assert.NotEqual(t, first[0].ID, second[0].ID)
		assert.NotEqual(t, first[1].ID, second[0].ID)
		return nil
	})
	require.NoError(t, err)

	ids, err := database.New(tx).InsertProcessedRecords(ctx, []database.InsertProcessedRecordParams{
		{RawDataID: first[0].ID, Data: []byte(`{"a":1}`), ProcessedDate: now},
		{RawDataID: first[1].ID, Data: []byte(`{"a":2}`), ProcessedDate: now},
	})
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	require.NoError(t, tx.Commit(ctx))

	// Duplicate inserts are ignored rather than failing the batch.
	ids, err = database.New(pool).InsertProcessedRecords(ctx, []database.InsertProcessedRecordParams{
		{RawDataID: first[0].ID, Data: []byte(`{}`), ProcessedDate: now},
	})
	require.NoError(t, err)
	assert.Empty(t, ids)

	counts, err := database.New(pool).StageCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts.Raw)
	assert.Equal(t, int64(2), counts.Processed)
	assert.Equal(t, int64(1), counts.PendingTransform)
	assert.Equal(t, int64(2), counts.PendingLoad)
}

func TestEtlMetrics_InsertAndList(t *testing.T) {
	ctx := context.Background()
	q := database.New(dbtest.NewPool(t))
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	msg := "boom"

	_, err := q.InsertEtlMetric(ctx, database.InsertEtlMetricParams{
		ProcessName: "transform", StartTime: start, EndTime: start.Add(time.Minute),
		RecordsProcessed: 5, Success: true, ExecutionDate: start,
	})
	require.NoError(t, err)
	_, err = q.InsertEtlMetric(ctx, database.InsertEtlMetricParams{
		ProcessName: "load", StartTime: start.Add(time.Hour), EndTime: start.Add(2 * time.Hour),
		Success: false, ErrorMessage: &msg, ExecutionDate: start,
	})
	require.NoError(t, err)

	runs, err := q.ListEtlMetrics(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "load", runs[0].ProcessName)
	assert.Equal(t, "boom", runs[0].ErrorMessage.String)
	assert.False(t, runs[1].ErrorMessage.Valid)
}

func TestGetProcessedByRawID_NotFound(t *testing.T) {
	q := database.New(dbtest.NewPool(t))
	_, err := q.GetProcessedByRawID(context.Background(), 12345)
	assert.True(t, errors.Is(err, pgx.ErrNoRows))
}
