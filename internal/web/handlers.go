package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/stagepipe/internal/database"
)

// maxRuns caps the limit accepted by /api/runs.
const maxRuns = 500

// countResponse reports how many records an operation wrote.
type countResponse struct {
	Records int `json:"records"`
}

// runView is the JSON shape of one etl_metrics row.
type runView struct {
	ID               int64     `json:"id"`
	ProcessName      string    `json:"processName"`
	StartTime        time.Time `json:"startTime"`
	EndTime          time.Time `json:"endTime"`
	DurationMs       int64     `json:"durationMs"`
	RecordsProcessed int32     `json:"recordsProcessed"`
	Success          bool      `json:"success"`
	ErrorMessage     string    `json:"errorMessage,omitempty"`
	ExecutionDate    string    `json:"executionDate"`
}

func newRunView(m database.EtlRunMetric) runView {
	v := runView{
		ID:               m.ID,
		ProcessName:      m.ProcessName,
		StartTime:        m.StartTime,
		EndTime:          m.EndTime,
		DurationMs:       m.EndTime.Sub(m.StartTime).Milliseconds(),
		RecordsProcessed: m.RecordsProcessed,
		Success:          m.Success,
	}
	if m.ErrorMessage.Valid {
		v.ErrorMessage = m.ErrorMessage.String
	}
	if m.ExecutionDate.Valid {
		v.ExecutionDate = m.ExecutionDate.Time.Format(time.DateOnly)
	}
	return v
}

// extractAPIRequest is the body of POST /api/extract/api.
type extractAPIRequest struct {
	URL    string            `json:"url"`
	Params map[string]string `json:"params"`
	Source string            `json:"source"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.pipeline.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := s.pipeline.Status(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := min(parseIntParam(r, "limit", 20), maxRuns)

	runs, err := s.pipeline.Runs(r.Context(), limit)
	if err != nil {
		respondError(w, r, err)
		return
	}

	out := make([]runView, len(runs))
	for i, m := range runs {
		out[i] = newRunView(m)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleExtractCSV stores every row of an uploaded CSV file as a raw record.
func (s *Server) handleExtractCSV(w http.ResponseWriter, r *http.Request) {
	source := sourceParam(r, "csv")

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadSize)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadSize); err != nil {
		badRequest(w, "file too large or invalid form")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "no file provided")
		return
	}
	defer file.Close()

	s.runOp(w, r, func(ctx context.Context) (any, error) {
		n, err := s.pipeline.ExtractCSVReader(ctx, file, source)
		return countResponse{Records: n}, err
	})
}

// handleExtractAPI fetches a JSON document and stores it as a raw record.
func (s *Server) handleExtractAPI(w http.ResponseWriter, r *http.Request) {
	var req extractAPIRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		badRequest(w, "url is required")
		return
	}
	if req.Source == "" {
		req.Source = "api"
	}

	s.runOp(w, r, func(ctx context.Context) (any, error) {
		n, err := s.pipeline.ExtractAPI(ctx, req.URL, req.Params, req.Source)
		return countResponse{Records: n}, err
	})
}

func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	s.runOp(w, r, func(ctx context.Context) (any, error) {
		n, err := s.pipeline.Transform(ctx, id)
		return countResponse{Records: n}, err
	})
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	s.runOp(w, r, func(ctx context.Context) (any, error) {
		n, err := s.pipeline.Load(ctx, id)
		return countResponse{Records: n}, err
	})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	s.runOp(w, r, func(ctx context.Context) (any, error) {
		return s.pipeline.Run(ctx)
	})
}

// handleReset empties every table. It is destructive, so the caller must
// pass confirm=yes.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "yes" {
		badRequest(w, "reset deletes all data; repeat with confirm=yes")
		return
	}
	s.runOp(w, r, func(ctx context.Context) (any, error) {
		return s.pipeline.Reset(ctx)
	})
}

// runOp runs fn under the operation limiter and timeout and writes its
// result as JSON.
func (s *Server) runOp(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context) (any, error)) {
	ctx, cancel := s.opContext(r)
	defer cancel()

	if err := s.limiter.Acquire(ctx); err != nil {
		respondError(w, r, err)
		return
	}
	defer s.limiter.Release()

	res, err := fn(ctx)
	if err != nil {
		partial := 0
		if c, ok := res.(countResponse); ok {
			partial = c.Records
		}
		respondPartialError(w, r, err, partial)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// idParam reads the optional id query parameter. It writes a 400 and
// returns ok=false when id is present but not a positive integer.
func idParam(w http.ResponseWriter, r *http.Request) (id *int64, ok bool) {
	val := r.URL.Query().Get("id")
	if val == "" {
		return nil, true
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil || n < 1 {
		badRequest(w, "id must be a positive integer")
		return nil, false
	}
	return &n, true
}

func sourceParam(r *http.Request, fallback string) string {
	if s := strings.TrimSpace(r.URL.Query().Get("source")); s != "" {
		return s
	}
	return fallback
}
