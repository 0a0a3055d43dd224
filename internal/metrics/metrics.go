package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label value constants to prevent typos
const (
	// HTTP endpoints
	EndpointNotifications = "fitbit_notifications"
	EndpointLinkTracker   = "link_tracker"
	EndpointSettings      = "settings"
	EndpointAuthStart     = "auth_start"
	EndpointAuthCallback  = "oauth2_callback"
	EndpointHealth        = "health"

	// Ingest outcomes
	IngestProcessed    = "processed"
	IngestStale        = "stale"
	IngestNotLinked    = "not_linked"
	IngestUnavailable  = "upstream_unavailable"
	IngestMalformed    = "malformed_payload"
	IngestBatchSkipped = "batch_skipped"

	// Card kinds
	CardProgress = "progress"
	CardGoal     = "goal"
	CardBattery  = "battery"

	// Dispatch results
	ResultSuccess     = "success"
	ResultAuthFailure = "auth_failure"
	ResultFailure     = "failure"
	ResultSuppressed  = "suppressed"

	// Queue results
	QueueResultSuccess = "success"
	QueueResultRetry   = "retry"
	QueueResultDropped = "dropped"

	// Goal metrics
	MetricSteps         = "steps"
	MetricFloors        = "floors"
	MetricDistance      = "distance"
	MetricCaloriesOut   = "calories_out"
	MetricActiveMinutes = "active_minutes"

	// Upstream services
	ServiceFitbit = "fitbit"
	ServiceMirror = "mirror"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint", "status_code"},
	)
)

// Queue metrics
var (
	QueueDepthTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_queue_depth_total",
			Help: "Total number of items in the notification queue (all states)",
		},
	)

	QueueDepthReady = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_queue_depth_ready",
			Help: "Number of notifications ready for processing",
		},
	)

	QueueDepthProcessing = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_queue_depth_processing",
			Help: "Number of notifications currently being processed",
		},
	)

	QueueDequeueTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_queue_dequeue_total",
			Help: "Total number of dequeue operations by result",
		},
		[]string{"result"},
	)

	QueueProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_queue_processing_duration_seconds",
			Help:    "Time spent processing a queued notification",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"result"},
	)
)

// Pipeline metrics
var (
	IngestOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_outcomes_total",
			Help: "Total number of ingested notifications by outcome",
		},
		[]string{"outcome"},
	)

	GoalCrossingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goal_crossings_total",
			Help: "Total number of goal crossings detected, by metric",
		},
		[]string{"metric"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_dispatched_total",
			Help: "Total number of notification dispatch attempts by card kind and result",
		},
		[]string{"kind", "result"},
	)

	UsersDisabledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "users_disabled_total",
			Help: "Total number of users disabled after an authorization failure",
		},
	)

	SweepRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sweep_runs_total",
			Help: "Total number of hourly sweep runs",
		},
	)

	SweepUsersScanned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sweep_users_scanned",
			Help:    "Number of users scanned per sweep run",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000},
		},
	)
)

// Upstream API metrics
var (
	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Upstream API request latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"service", "operation", "status_code"},
	)
)

// Worker metrics
var (
	WorkerActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_active",
			Help: "Whether the notification worker is running (1) or not (0)",
		},
	)
)
