package web

import (
	"net/http"
	"time"

	"github.com/JonMunkholm/stagepipe/internal/logging"
	"github.com/JonMunkholm/stagepipe/internal/web/templates"
)

// handleStatusPage renders the HTML overview. A database failure still
// renders the page, with the error shown in place of the numbers.
func (s *Server) handleStatusPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params := templates.StatusParams{GeneratedAt: time.Now()}

	counts, err := s.pipeline.Status(ctx)
	if err != nil {
		logging.FromContext(ctx).Error("status page: stage counts", "error", err)
		params.Error = "Database unavailable, counts could not be loaded."
	} else {
		params.Stages = []templates.StageCount{
			{Stage: "raw_data", Rows: counts.Raw, Pending: counts.PendingTransform},
			{Stage: "processed_data", Rows: counts.Processed, Pending: counts.PendingLoad},
			{Stage: "final_data", Rows: counts.Final},
			{Stage: "etl_metrics", Rows: counts.EtlMetrics},
		}

		runs, err := s.pipeline.Runs(ctx, 20)
		if err != nil {
			logging.FromContext(ctx).Error("status page: runs", "error", err)
		}
		for _, m := range runs {
			row := templates.RunRow{
				Process:  m.ProcessName,
				Started:  m.StartTime,
				Duration: m.EndTime.Sub(m.StartTime),
				Records:  m.RecordsProcessed,
				Success:  m.Success,
			}
			if m.ErrorMessage.Valid {
				row.Error = m.ErrorMessage.String
			}
			params.Runs = append(params.Runs, row)
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.StatusPage(params).Render(ctx, w); err != nil {
		logging.FromContext(ctx).Error("render status page", "error", err)
	}
}
