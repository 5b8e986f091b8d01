package database

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// RawRecord is one ingested source record. Data is opaque canonical JSON text.
type RawRecord struct {
	ID        int64
	Source    string
	Data      string
	Timestamp time.Time
}

// ProcessedRecord is the cleaned form of exactly one RawRecord.
type ProcessedRecord struct {
	ID            int64
	RawDataID     int64
	Data          []byte
	ProcessedDate time.Time
}

// FinalRecord holds metrics and an insight derived from one ProcessedRecord.
type FinalRecord struct {
	ID              int64
	ProcessedDataID int64
	Metrics         []byte
	Dimensions      []byte
	Insights        string
	ReportDate      time.Time
}

// EtlRunMetric records one pipeline run.
type EtlRunMetric struct {
	ID               int64
	ProcessName      string
	StartTime        time.Time
	EndTime          time.Time
	RecordsProcessed int32
	Success          bool
	ErrorMessage     pgtype.Text
	ExecutionDate    pgtype.Date
}

// StageCounts summarises how many rows sit in each stage and how many are
// still waiting for the next one.
type StageCounts struct {
	Raw              int64 `json:"raw"`
	Processed        int64 `json:"processed"`
	Final            int64 `json:"final"`
	EtlMetrics       int64 `json:"etlMetrics"`
	PendingTransform int64 `json:"pendingTransform"`
	PendingLoad      int64 `json:"pendingLoad"`
}
