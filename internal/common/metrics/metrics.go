// Package metrics holds the prometheus collectors of both binaries.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arena_requests_total",
			Help: "Execution requests by mode, game and outcome",
		},
		[]string{"mode", "game", "status"},
	)

	Rejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arena_rejections_total",
			Help: "Requests refused before the batch ran",
		},
		[]string{"kind"}, // static, load, invalid
	)

	TrialsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arena_trials_total",
			Help: "Trials run by outcome",
		},
		[]string{"game", "outcome"}, // ok, failed
	)

	BatchTimeouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arena_batch_timeouts_total",
			Help: "Batches cut short by the request timeout",
		},
		[]string{"game"},
	)

	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arena_batch_duration_ms",
			Help:    "Batch wall time in milliseconds",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
		[]string{"game"},
	)

	ActiveBatches = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "arena_active_batches",
			Help: "Batches currently running",
		},
	)

	HTTPLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arena_http_request_seconds",
			Help:    "HTTP handler latency by route and status class",
			Buckets: prometheus.ExponentialBuckets(0.005, 4, 8),
		},
		[]string{"route", "class"},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arena_rate_limit_hits_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"path"},
	)

	ProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_probes_total",
			Help: "Health probes by service and result",
		},
		[]string{"service", "result"},
	)

	ConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "supervisor_consecutive_failures",
			Help: "Current consecutive probe failures",
		},
		[]string{"service"},
	)

	RestartsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_restarts_total",
			Help: "Restart attempts by service and outcome",
		},
		[]string{"service", "outcome"}, // ok, failed, suppressed
	)

	ServiceState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "supervisor_service_state",
			Help: "1 for the current state of each service",
		},
		[]string{"service", "state"},
	)
)
