// Package seed fills the staging tables with synthetic business data so
// dashboards have something to show before real sources are connected.
//
// Every generated raw record is pushed through the same cleaning and
// analysis the pipeline uses, so the processed and final rows look exactly
// like what a real run would produce.
package seed

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/JonMunkholm/stagepipe/internal/database"
	"github.com/JonMunkholm/stagepipe/internal/payload"
	"github.com/JonMunkholm/stagepipe/internal/pipeline"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/jonboulle/clockwork"
)

var (
	categories = []string{"ventas", "marketing", "finanzas", "operaciones", "rrhh"}
	sources    = []string{"api", "csv", "database", "web_scraping", "manual"}
	metrics    = []string{
		"ingresos", "gastos", "conversiones", "usuarios_activos", "tiempo_sesion",
		"tasa_rebote", "tasa_conversion", "costo_adquisicion", "retorno_inversion",
	}
	dimensions = map[string][]string{
		"region":   {"norte", "sur", "este", "oeste", "central"},
		"producto": {"software", "hardware", "servicios", "consultoría", "soporte"},
		"canal":    {"directo", "online", "distribuidor", "mayorista", "minorista"},
		"segmento": {"enterprise", "pyme", "consumidor", "gobierno", "educación"},
		"campaña":  {"email", "social_media", "display", "search", "evento"},
	}
	dimensionNames = []string{"region", "producto", "canal", "segmento", "campaña"}
	processNames   = []string{pipeline.StageExtract, pipeline.StageTransform, pipeline.StageLoad, pipeline.StageFullETL}
)

// lookback is how far into the past generated timestamps reach.
const lookback = 30 * 24 * time.Hour

// Options configures a Generator.
type Options struct {
	// Seed makes output reproducible. Zero picks a random seed.
	Seed                 uint64
	Clock                clockwork.Clock
	Clean                pipeline.CleanPolicy
	VariabilityThreshold float64
}

// Generator produces and stores synthetic records.
type Generator struct {
	acc       *database.Accessor
	faker     *gofakeit.Faker
	clock     clockwork.Clock
	policy    pipeline.CleanPolicy
	threshold float64
}

// New creates a Generator.
func New(acc *database.Accessor, opts Options) *Generator {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	threshold := opts.VariabilityThreshold
	if threshold == 0 {
		threshold = pipeline.DefaultVariabilityThreshold
	}
	return &Generator{
		acc:       acc,
		faker:     gofakeit.New(opts.Seed),
		clock:     clock,
		policy:    opts.Clean,
		threshold: threshold,
	}
}

// Record is one generated raw row with the processed and final rows derived
// from it. Ids are filled in on insert.
type Record struct {
	Raw       database.InsertRawRecordParams
	Processed database.InsertProcessedRecordParams
	Final     database.InsertFinalRecordParams
}

// Records generates n records without touching the database.
func (g *Generator) Records(n int) ([]Record, error) {
	now := g.clock.Now()
	out := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		rec, err := g.record(now)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (g *Generator) record(now time.Time) (Record, error) {
	f := g.faker
	ts := f.DateRange(now.Add(-lookback), now)
	processedAt := ts.Add(time.Duration(f.Number(5, 60)) * time.Minute)
	reportedAt := processedAt.Add(time.Duration(f.Number(5, 60)) * time.Minute)

	raw := g.rawPayload()
	rawJSON, err := payload.Canonical(payload.ObjectValue(raw))
	if err != nil {
		return Record{}, fmt.Errorf("encode raw: %w", err)
	}

	cleaned := pipeline.Clean(payload.ObjectValue(raw), g.policy)
	processedJSON, err := payload.Canonical(payload.ObjectValue(cleaned))
	if err != nil {
		return Record{}, fmt.Errorf("encode processed: %w", err)
	}

	a := pipeline.Analyze(cleaned, g.threshold)
	metricsJSON, err := payload.Canonical(payload.ObjectValue(a.Metrics))
	if err != nil {
		return Record{}, fmt.Errorf("encode metrics: %w", err)
	}
	dimsJSON, err := payload.Canonical(payload.ObjectValue(a.Dimensions))
	if err != nil {
		return Record{}, fmt.Errorf("encode dimensions: %w", err)
	}

	return Record{
		Raw: database.InsertRawRecordParams{
			Source:    f.RandomString(sources),
			Data:      string(rawJSON),
			Timestamp: ts,
		},
		Processed: database.InsertProcessedRecordParams{
			Data:          processedJSON,
			ProcessedDate: processedAt,
		},
		Final: database.InsertFinalRecordParams{
			Metrics:    metricsJSON,
			Dimensions: dimsJSON,
			Insights:   a.Insight,
			ReportDate: reportedAt,
		},
	}, nil
}

// rawPayload builds a messy source record: capitalised keys, the odd null
// metric and a scratch field the cleaner will drop.
func (g *Generator) rawPayload() *payload.Object {
	f := g.faker
	obj := payload.NewObject()

	obj.Set("Categoria", payload.String(f.RandomString(categories)))
	obj.Set("Empresa", payload.String(f.Company()))
	obj.Set("Valor_Procesado", payload.Number(round2(f.Float64Range(100, 10000))))

	d1 := f.RandomString(dimensionNames)
	d2 := d1
	for d2 == d1 {
		d2 = f.RandomString(dimensionNames)
	}
	for _, d := range []string{d1, d2} {
		obj.Set(capitalize(d), payload.String(f.RandomString(dimensions[d])))
	}

	for i, n := 0, f.Number(1, 3); i < n; i++ {
		name := capitalize(f.RandomString(metrics))
		if f.Number(1, 10) == 1 {
			obj.Set(name, payload.Null())
			continue
		}
		obj.Set(name, payload.Number(round2(f.Float64Range(10, 1000))))
	}

	obj.Set("Temp_Lote", payload.String(f.UUID()))
	return obj
}

// Seed inserts n raw records together with their processed and final rows
// in one transaction and returns how many were written.
func (g *Generator) Seed(ctx context.Context, n int) (int, error) {
	records, err := g.Records(n)
	if err != nil {
		return 0, err
	}

	err = g.acc.WithTx(ctx, func(q *database.Queries) error {
		for i := range records {
			rec := &records[i]

			rawID, err := q.InsertRawRecord(ctx, rec.Raw)
			if err != nil {
				return fmt.Errorf("insert raw: %w", err)
			}
			rec.Processed.RawDataID = rawID

			processedID, err := q.InsertProcessedRecord(ctx, rec.Processed)
			if err != nil {
				return fmt.Errorf("insert processed: %w", err)
			}
			rec.Final.ProcessedDataID = processedID

			if _, err := q.InsertFinalRecord(ctx, rec.Final); err != nil {
				return fmt.Errorf("insert final: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("seed records: %w", err)
	}
	return len(records), nil
}

// EtlMetrics generates n simulated run rows: 10s to 15m long, roughly nine
// in ten successful.
func (g *Generator) EtlMetrics(n int) []database.InsertEtlMetricParams {
	f := g.faker
	now := g.clock.Now()
	out := make([]database.InsertEtlMetricParams, 0, n)

	for i := 0; i < n; i++ {
		day := f.DateRange(now.Add(-lookback), now)
		execDate := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
		start := execDate.Add(time.Duration(f.Number(0, 86399)) * time.Second)
		end := start.Add(time.Duration(f.Number(10, 900)) * time.Second)

		m := database.InsertEtlMetricParams{
			ProcessName:      f.RandomString(processNames),
			StartTime:        start,
			EndTime:          end,
			RecordsProcessed: int32(f.Number(100, 10000)),
			Success:          f.Float64Range(0, 1) > 0.1,
			ExecutionDate:    execDate,
		}
		if !m.Success {
			msg := f.ErrorDatabase().Error()
			m.ErrorMessage = &msg
		}
		out = append(out, m)
	}
	return out
}

// SeedEtlMetrics inserts n simulated run rows.
func (g *Generator) SeedEtlMetrics(ctx context.Context, n int) (int, error) {
	rows := g.EtlMetrics(n)
	var copied int64
	err := g.acc.WithTx(ctx, func(q *database.Queries) error {
		var err error
		copied, err = q.CopyEtlMetrics(ctx, rows)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("seed etl metrics: %w", err)
	}
	return int(copied), nil
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}
