package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "jobcompass"

// Ingestion outcomes.
const (
	OutcomePersisted = "persisted"
	OutcomeDuplicate = "duplicate"
	OutcomeSkipped   = "skipped"
)

var (
	ingestListingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "listings_total",
			Help:      "Provider results by ingestion outcome.",
		},
		[]string{"outcome"},
	)

	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ai",
			Name:      "requests_total",
			Help:      "Generative AI calls by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	matchStatusChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "match",
			Name:      "status_changes_total",
			Help:      "Match status transitions by target status.",
		},
		[]string{"status"},
	)
)

func ObserveIngest(outcome string, n int) {
	if n <= 0 {
		return
	}
	ingestListingsTotal.WithLabelValues(outcome).Add(float64(n))
}

// ObserveAIRequest labels a call "ok" when err is nil and "error" otherwise.
func ObserveAIRequest(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	aiRequestsTotal.WithLabelValues(operation, outcome).Inc()
}

func ObserveStatusChange(status string) {
	matchStatusChangesTotal.WithLabelValues(status).Inc()
}
