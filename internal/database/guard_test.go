package database

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckParameterized(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		ok   bool
	}{
		{"named args", `SELECT id FROM raw_data WHERE id = @id AND source = @source`, true},
		{"cast on named arg", `SELECT 1 WHERE @id::bigint IS NULL`, true},
		{"quoted identifier with quote-like content", `SELECT "it's" FROM t`, true},
		{"line comment with apostrophe", "SELECT id -- don't\nFROM raw_data", true},
		{"block comment with apostrophe", `SELECT /* it's */ id FROM raw_data`, true},
		{"no args", `DELETE FROM final_data`, true},
		{"string literal", `SELECT id FROM raw_data WHERE source = 'csv'`, false},
		{"interpolated injection", `SELECT id FROM raw_data WHERE source = '' OR 1=1 --'`, false},
		{"positional placeholder", `SELECT id FROM raw_data WHERE id = $1`, false},
		{"dollar quoting", `SELECT $$abc$$`, false},
		{"tagged dollar quoting", `SELECT $tag$abc$tag$`, false},
		{"unterminated comment", `SELECT /* id`, false},
		{"unterminated identifier", `SELECT "id`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckParameterized(tt.sql)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrUnparameterized))
			}
		})
	}
}

func TestSchemaAndQueries_PassGuard(t *testing.T) {
	stmts := append([]string{}, schema...)
	stmts = append(stmts,
		insertRawRecord, claimPendingRaw, getRawRecord,
		insertProcessedRecord, claimPendingProcessed, getProcessedByRawID,
		insertFinalRecord, getFinalByProcessedID,
		insertEtlMetric, listEtlMetrics, stageCounts,
		resetFinalData, resetProcessedData, resetRawData, resetEtlMetrics,
	)
	for _, s := range stmts {
		assert.NoError(t, CheckParameterized(s), s)
	}
}

func TestQueries_RefusesLiteralBeforeReachingServer(t *testing.T) {
	// A nil DBTX would panic if the guard let the statement through.
	q := New(nil)
	_, err := q.exec(context.Background(), `DELETE FROM raw_data WHERE source = 'x'`, nil)
	assert.ErrorIs(t, err, ErrUnparameterized)

	var id int64
	err = q.queryRow(context.Background(), `SELECT '1'`, nil).Scan(&id)
	assert.ErrorIs(t, err, ErrUnparameterized)
}
