package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
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

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	// KYCSubstitutions counts results replaced by a documented default
	// (OCR fallback text, facial 0.0, neutral aggregate score).
	KYCSubstitutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kyc_substituted_results_total",
			Help: "Results replaced by a fail-soft or fail-closed default",
		},
		[]string{"component", "reason"},
	)

	KYCVerificationScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kyc_verification_score",
			Help:    "Distribution of final verification scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	KYCNotificationsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kyc_notifications_dispatched_total",
			Help: "Notification attempts by channel and outcome",
		},
		[]string{"channel", "status"},
	)

	KYCCompletionTerminalFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kyc_completion_terminal_failures_total",
			Help: "Completion units that exhausted their retry budget",
		},
	)

	KYCIngressMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kyc_ingress_messages_total",
			Help: "Completion events consumed from Kafka by outcome",
		},
		[]string{"status"},
	)
)
