// Package metrics holds the Prometheus collectors of the photo service.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search and indexing metrics.
var (
	SearchAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shashin",
			Name:      "search_attempts_total",
			Help:      "Relaxation search attempts by step and outcome",
		},
		[]string{"attempt", "outcome"}, // outcome: "hit" / "miss" / "error"
	)

	SearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "shashin",
			Name:      "search_duration_seconds",
			Help:      "Search duration including projection, in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	PhotosIndexedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shashin",
			Name:      "photos_indexed_total",
			Help:      "Photos indexed or removed from the index",
		},
		[]string{"operation", "status"},
	)

	CollaboratorErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shashin",
			Name:      "collaborator_errors_total",
			Help:      "Failures of the index, storage, label detector, signer and intent extractor",
		},
		[]string{"collaborator"},
	)
)

func init() {
	prometheus.MustRegister(SearchAttemptsTotal)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(PhotosIndexedTotal)
	prometheus.MustRegister(CollaboratorErrorsTotal)
}
