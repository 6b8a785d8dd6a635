// Package metrics exposes prometheus collectors for the import pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors updated by the import service.
type Metrics struct {
	ImportsTotal   *prometheus.CounterVec
	RowsParsed     prometheus.Counter
	ItemsMerged    *prometheus.CounterVec
	ImportDuration prometheus.Histogram
}

// New registers the import collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ImportsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_imports_total",
			Help: "Catalog imports by outcome (succeeded, failed).",
		}, []string{"outcome"}),
		RowsParsed: factory.NewCounter(prometheus.CounterOpts{
			Name: "catalog_import_rows_parsed_total",
			Help: "Item rows successfully parsed across all imports.",
		}),
		ItemsMerged: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_import_items_merged_total",
			Help: "Merge outcomes (new, updated, recovered, disappeared).",
		}, []string{"outcome"}),
		ImportDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "catalog_import_duration_seconds",
			Help:    "Wall-clock duration of a full import.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
	}
}
