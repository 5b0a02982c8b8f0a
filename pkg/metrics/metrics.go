package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NotificationsSubmitted counts accepted submissions by type and priority.
	NotificationsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "darasa_notifications_submitted_total",
			Help: "Total number of notification submissions accepted by the engine",
		},
		[]string{"type", "priority"},
	)

	// NotificationsSuppressed counts submissions suppressed by eligibility checks.
	NotificationsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "darasa_notifications_suppressed_total",
			Help: "Total number of notifications suppressed before dispatch",
		},
		[]string{"type", "reason"},
	)

	// NotificationsDispatched counts transport hand-offs by channel and result.
	NotificationsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "darasa_notifications_dispatched_total",
			Help: "Total number of notification dispatch attempts handed to transports",
		},
		[]string{"channel", "result"},
	)

	// NotificationRetries counts retry cycles scheduled after transport failures.
	NotificationRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "darasa_notification_retries_total",
			Help: "Total number of retry attempts scheduled after retryable transport failures",
		},
	)

	// DigestFlushes counts digest bucket dispatch events by frequency.
	DigestFlushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "darasa_digest_flushes_total",
			Help: "Total number of digest buckets flushed",
		},
		[]string{"frequency", "result"},
	)

	// ScheduledInstances tracks instances currently awaiting a dispatch timer.
	ScheduledInstances = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "darasa_scheduled_instances",
			Help: "Number of notification instances waiting on a dispatch timer",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "darasa_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
