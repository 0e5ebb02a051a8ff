// Package metrics holds the Prometheus collectors shared across the sweep
// and chat paths.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SweepsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pricewatch_sweeps_total",
			Help: "Completed catalog sweeps",
		},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pricewatch_sweep_duration_seconds",
			Help:    "Wall time of a full catalog sweep",
			Buckets: prometheus.ExponentialBuckets(5, 2, 8),
		},
	)

	ScrapeFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewatch_scrape_failures_total",
			Help: "Products whose results page could not be observed",
		},
		[]string{"product"},
	)

	ObservationsDiscarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewatch_observations_discarded_total",
			Help: "Raw observations dropped by the filter, by reason",
		},
		[]string{"reason"},
	)

	ChangeEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewatch_change_events_total",
			Help: "Reconciliation outcomes by kind",
		},
		[]string{"kind"},
	)

	StoreFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pricewatch_store_failures_total",
			Help: "Reconciliation steps abandoned because the store failed",
		},
	)

	NotifyFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pricewatch_notify_failures_total",
			Help: "Chat deliveries that failed",
		},
	)

	ChatQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewatch_chat_queries_total",
			Help: "Inbound chat queries by outcome",
		},
		[]string{"outcome"},
	)
)

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
