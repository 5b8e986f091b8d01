package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stage names as recorded in etl_metrics.process_name.
const (
	StageExtract   = "extract"
	StageTransform = "transform"
	StageLoad      = "load"
	StageFullETL   = "full_etl"
)

var (
	metricRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stagepipe",
		Name:      "records_total",
		Help:      "Records written by each pipeline stage.",
	}, []string{"stage"})

	metricRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stagepipe",
		Name:      "runs_total",
		Help:      "Pipeline stage runs by outcome.",
	}, []string{"stage", "outcome"})

	metricDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "stagepipe",
		Name:      "run_duration_seconds",
		Help:      "Wall time of pipeline stage runs.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 4, 9),
	}, []string{"stage"})
)

func observeRun(stage string, records int, seconds float64, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	metricRuns.WithLabelValues(stage, outcome).Inc()
	metricRecords.WithLabelValues(stage).Add(float64(records))
	metricDuration.WithLabelValues(stage).Observe(seconds)
}
