package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/JonMunkholm/stagepipe/internal/database"
	"github.com/JonMunkholm/stagepipe/internal/payload"
	"github.com/jonboulle/clockwork"
)

// MaxSourceLen is the longest accepted source label.
const MaxSourceLen = 50

// maxAPIBody caps how much of an API response is read.
const maxAPIBody = 10 << 20

// Extractor appends records to raw_data.
type Extractor struct {
	acc    *database.Accessor
	client *http.Client
	clock  clockwork.Clock
}

// NewExtractor creates an Extractor. A nil client gets a 30s timeout; a nil
// clock uses the real one.
func NewExtractor(acc *database.Accessor, client *http.Client, clock clockwork.Clock) *Extractor {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Extractor{acc: acc, client: client, clock: clock}
}

// ExtractCSV stores every data row of the CSV file at path as one raw record.
// All rows are written in a single transaction.
func (e *Extractor) ExtractCSV(ctx context.Context, path, source string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("extract csv: %w", err)
	}
	defer f.Close()

	return e.ExtractCSVReader(ctx, f, source)
}

// ExtractCSVReader is ExtractCSV for an already open stream.
func (e *Extractor) ExtractCSVReader(ctx context.Context, r io.Reader, source string) (int, error) {
	if err := validateSource(source); err != nil {
		return 0, fmt.Errorf("extract csv: %w", err)
	}

	records, err := ReadCSV(r)
	if err != nil {
		return 0, fmt.Errorf("extract csv: %w", err)
	}

	n, err := e.store(ctx, source, records)
	if err != nil {
		return 0, fmt.Errorf("extract csv: %w", err)
	}
	return n, nil
}

// ExtractAPI fetches rawURL with params appended to its query string and
// stores the whole JSON body as one raw record.
func (e *Extractor) ExtractAPI(ctx context.Context, rawURL string, params map[string]string, source string) (int, error) {
	if err := validateSource(source); err != nil {
		return 0, fmt.Errorf("extract api: %w", err)
	}

	body, err := e.fetchJSON(ctx, rawURL, params)
	if err != nil {
		return 0, fmt.Errorf("extract api: %w", err)
	}

	n, err := e.store(ctx, source, []payload.Value{body})
	if err != nil {
		return 0, fmt.Errorf("extract api: %w", err)
	}
	return n, nil
}

func (e *Extractor) fetchJSON(ctx context.Context, rawURL string, params map[string]string) (payload.Value, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return payload.Value{}, fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return payload.Value{}, fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if len(params) > 0 {
		q := u.Query()
		for k, v := range params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return payload.Value{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return payload.Value{}, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIBody))
	if err != nil {
		return payload.Value{}, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return payload.Value{}, fmt.Errorf("%w: HTTP %d: %s", ErrUpstream, resp.StatusCode, truncate(string(data), 200))
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil && mt != "application/json" && !strings.HasSuffix(mt, "+json") {
			slog.Debug("api response has non-json content type", "content_type", ct, "url", u.Redacted())
		}
	}

	v, err := payload.Parse(data)
	if err != nil {
		return payload.Value{}, fmt.Errorf("%w: response is not JSON: %v", ErrMalformedInput, err)
	}
	return v, nil
}

func (e *Extractor) store(ctx context.Context, source string, records []payload.Value) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	now := e.clock.Now()
	rows := make([]database.InsertRawRecordParams, len(records))
	for i, rec := range records {
		data, err := rawData(rec)
		if err != nil {
			return 0, fmt.Errorf("encode record %d: %w", i, err)
		}
		rows[i] = database.InsertRawRecordParams{Source: source, Data: data, Timestamp: now}
	}

	var copied int64
	err := e.acc.WithTx(ctx, func(q *database.Queries) error {
		var err error
		copied, err = q.CopyRawRecords(ctx, rows)
		return err
	})
	if err != nil {
		return 0, err
	}
	return int(copied), nil
}

// rawData encodes a record for raw_data. Field order is kept as received so
// the cleaner resolves colliding keys by source position.
func rawData(rec payload.Value) (string, error) {
	data, err := rec.MarshalJSON()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func validateSource(source string) error {
	if strings.TrimSpace(source) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidSource)
	}
	if len(source) > MaxSourceLen {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidSource, MaxSourceLen)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
