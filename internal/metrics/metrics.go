package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "proviant",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	itemsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "proviant",
			Name:      "items_created_total",
			Help:      "Item creation outcomes (created/merged/duplicate/cancelled).",
		},
		[]string{"outcome"},
	)

	alertsScheduled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "proviant",
			Name:      "alerts_scheduled_total",
			Help:      "Expiry alerts handed to the push scheduler.",
		},
	)

	alertDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "proviant",
			Name:      "alert_deliveries_total",
			Help:      "Alert delivery attempts by status (delivered/retried/dead_letter).",
		},
		[]string{"status"},
	)

	refreshRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "proviant",
			Name:      "refresh_runs_total",
			Help:      "Background refresh outcomes (new_data/no_data/failed).",
		},
		[]string{"result"},
	)

	refreshDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "proviant",
			Name:      "refresh_duration_seconds",
			Help:      "Duration of a full alert rebuild.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			itemsCreated,
			alertsScheduled,
			alertDeliveries,
			refreshRuns,
			refreshDuration,
		)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncItemCreated counts a creation outcome.
func IncItemCreated(outcome string) {
	itemsCreated.WithLabelValues(outcome).Inc()
}

// IncAlertScheduled counts one alert handed to the scheduler.
func IncAlertScheduled() {
	alertsScheduled.Inc()
}

// IncAlertDelivery counts a delivery attempt result.
func IncAlertDelivery(status string) {
	alertDeliveries.WithLabelValues(status).Inc()
}

// ObserveRefresh records one background refresh run.
func ObserveRefresh(result string, elapsed time.Duration) {
	refreshRuns.WithLabelValues(result).Inc()
	refreshDuration.Observe(elapsed.Seconds())
}
