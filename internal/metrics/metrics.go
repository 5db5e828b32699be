package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fractalscan_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fractalscan_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "route"},
	)

	// Scan metrics
	ScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fractalscan_scans_total",
			Help: "Total scans by resolved branching mode and outcome",
		},
		[]string{"mode", "outcome"}, // outcome: "ok" or an error code
	)

	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fractalscan_scan_duration_seconds",
			Help:    "Time spent computing a scan",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		},
	)

	MessagesPerScan = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fractalscan_messages_per_scan",
			Help:    "Number of messages in a scanned conversation",
			Buckets: prometheus.ExponentialBuckets(1, 4, 9),
		},
	)

	AlertsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fractalscan_alerts_total",
			Help: "Scans whose fractal dimension crossed the alert threshold",
		},
	)

	// Ledger metrics
	LedgerErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fractalscan_ledger_errors_total",
			Help: "Scan ledger failures by operation",
		},
		[]string{"driver", "op"},
	)
)
