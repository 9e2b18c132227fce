// Package metrics exposes Prometheus collectors for the ingestion pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors groups the pipeline's Prometheus metrics.
type Collectors struct {
	RunsTotal        *prometheus.CounterVec
	RowsParsedTotal  prometheus.Counter
	RowsDroppedTotal prometheus.Counter
	RunDuration      prometheus.Histogram
}

// New registers the ingestion collectors on the given registerer.
func New(reg prometheus.Registerer) *Collectors {
	factory := promauto.With(reg)

	return &Collectors{
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dripiv",
			Subsystem: "ingest",
			Name:      "runs_total",
			Help:      "Ingestion runs by outcome.",
		}, []string{"status"}),
		RowsParsedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "dripiv",
			Subsystem: "ingest",
			Name:      "rows_parsed_total",
			Help:      "Normalized rows accepted across all runs.",
		}),
		RowsDroppedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "dripiv",
			Subsystem: "ingest",
			Name:      "rows_dropped_total",
			Help:      "Rows dropped as data noise across all runs.",
		}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dripiv",
			Subsystem: "ingest",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of an ingestion run.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}
