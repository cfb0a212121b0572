// Package metrics exposes Prometheus instrumentation for evaluation runs.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Registry holds every collector of this package. It is separate from the
// default registry so a Pushgateway push carries only evaluation metrics.
var Registry = prometheus.NewRegistry()

var (
	// Run metrics
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockalerts_runs_total",
			Help: "Evaluation runs by event type and outcome",
		},
		[]string{"event_type", "status"},
	)
	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stockalerts_run_duration_seconds",
			Help:    "Duration of one evaluation run",
			Buckets: prometheus.DefBuckets,
		})
	LastRunTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stockalerts_last_run_timestamp_seconds",
			Help: "Unix time of the last finished run",
		})

	// Stock rule metrics
	StockUpdates = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stockalerts_stock_updates_total",
			Help: "Committed lastprice updates",
		})
	MoveNotifications = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stockalerts_move_notifications_total",
			Help: "Notifications sent for price moves over the threshold",
		})

	// Alert rule metrics
	AlertsTriggered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stockalerts_alerts_triggered_total",
			Help: "Alerts whose target was crossed and notified",
		})
	AlertsCleared = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stockalerts_alerts_cleared_total",
			Help: "Triggered alerts deleted from the datastore",
		})

	// Failures
	RecordFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockalerts_record_failures_total",
			Help: "Per-record failures by record kind and stage",
		},
		[]string{"kind", "stage"},
	)

	// Provider metrics
	QuoteFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stockalerts_quote_fetch_duration_seconds",
			Help:    "Latest close fetch latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "status"},
	)
)

func init() {
	Registry.MustRegister(
		RunsTotal, RunDuration, LastRunTimestamp,
		StockUpdates, MoveNotifications,
		AlertsTriggered, AlertsCleared,
		RecordFailures,
		QuoteFetchDuration,
	)
}

// ObserveQuoteFetch records one provider call.
func ObserveQuoteFetch(provider string, started time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	QuoteFetchDuration.WithLabelValues(provider, status).Observe(time.Since(started).Seconds())
}

// Handler returns an HTTP handler serving the registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Push sends the registry to a Pushgateway under job. One-shot runs use it
// because nothing scrapes them.
func Push(ctx context.Context, gatewayURL, job string) error {
	if gatewayURL == "" {
		return nil
	}
	if err := push.New(gatewayURL, job).Gatherer(Registry).PushContext(ctx); err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", gatewayURL, err)
	}
	return nil
}
