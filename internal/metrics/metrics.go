// Package metrics holds the Prometheus collectors of the monitoring pipeline.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchRequestsTotal counts outbound page fetches by host and outcome.
	FetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matchastock",
			Subsystem: "fetch",
			Name:      "requests_total",
			Help:      "Total number of catalog page fetches by outcome",
		},
		[]string{"host", "outcome"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "matchastock",
			Subsystem: "fetch",
			Name:      "request_duration_seconds",
			Help:      "Duration of catalog page fetches in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"host"},
	)

	ItemsExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matchastock",
			Subsystem: "extract",
			Name:      "items_total",
			Help:      "Total number of items extracted from fetched pages",
		},
		[]string{"brand", "strategy"},
	)

	// LedgerAppends counts stock observations written, by the observed state.
	LedgerAppends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matchastock",
			Subsystem: "ledger",
			Name:      "appends_total",
			Help:      "Total number of stock observations appended",
		},
		[]string{"brand", "in_stock"},
	)

	RestockEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matchastock",
			Subsystem: "reconcile",
			Name:      "restocks_total",
			Help:      "Total number of restock events detected",
		},
		[]string{"brand"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matchastock",
			Subsystem: "notify",
			Name:      "messages_total",
			Help:      "Total number of outbound notifications by template and status",
		},
		[]string{"template", "status"},
	)

	CycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "matchastock",
			Subsystem: "cycle",
			Name:      "duration_seconds",
			Help:      "Duration of brand scrape cycles in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"brand"},
	)

	CycleFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matchastock",
			Subsystem: "cycle",
			Name:      "failures_total",
			Help:      "Total number of brand cycles that ended in error",
		},
		[]string{"brand"},
	)
)

func RecordFetch(host, outcome string, durationSeconds float64) {
	FetchRequestsTotal.WithLabelValues(host, outcome).Inc()
	FetchDuration.WithLabelValues(host).Observe(durationSeconds)
}

func RecordAppend(brand string, inStock bool) {
	LedgerAppends.WithLabelValues(brand, strconv.FormatBool(inStock)).Inc()
}

func RecordNotification(template string, err error) {
	status := "sent"
	if err != nil {
		status = "failed"
	}
	NotificationsTotal.WithLabelValues(template, status).Inc()
}

func RecordCycle(brand string, durationSeconds float64, err error) {
	CycleDuration.WithLabelValues(brand).Observe(durationSeconds)
	if err != nil {
		CycleFailures.WithLabelValues(brand).Inc()
	}
}
