package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval Prometheus metrics.
var (
	RetrievalDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ragdex",
			Name:      "retrieval_duration_seconds",
			Help:      "End-to-end retrieval pipeline duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	RetrievalPassResults = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragdex",
			Name:      "retrieval_pass_results",
			Help:      "Raw result counts per retrieval pass, before merging",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		},
		[]string{"pass"}, // semantic / metadata / expansion
	)

	RetrievalDegradedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ragdex",
			Name:      "retrieval_degraded_total",
			Help:      "Queries answered without the semantic pass",
		},
	)

	IndexEntriesGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ragdex",
			Name:      "index_entries",
			Help:      "Entries currently held by the vector index",
		},
	)
)

var retMetricsRegistered bool

// RegisterRetrievalMetrics registers retrieval metrics. Must be called once from main.
func RegisterRetrievalMetrics() {
	if retMetricsRegistered {
		return
	}
	prometheus.MustRegister(RetrievalDuration)
	prometheus.MustRegister(RetrievalPassResults)
	prometheus.MustRegister(RetrievalDegradedTotal)
	prometheus.MustRegister(IndexEntriesGauge)
	retMetricsRegistered = true
}
