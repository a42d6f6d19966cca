package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DeliveryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_delivery_attempts_total",
			Help: "Delivery attempts by channel, provider and outcome",
		},
		[]string{"channel", "provider", "outcome"},
	)

	AlertsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_dispatched_total",
			Help: "Alerts dispatched, labelled by resulting status",
		},
		[]string{"status"},
	)

	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "alert_dispatch_duration_seconds",
			Help:    "Time from fan-out to barrier for one alert",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	Acknowledgments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_acknowledgments_total",
			Help: "Acknowledgment requests, split by whether a new record was created",
		},
		[]string{"created"},
	)

	RealtimePublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_publish_failures_total",
			Help: "Realtime events that could not be published",
		},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)
)
