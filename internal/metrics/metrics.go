package metrics

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for webhook processing and notification delivery
var (
	WebhookEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Total number of webhook deliveries received",
		},
	)

	WebhookInvalidSignatureTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "webhook_invalid_signature_total",
			Help: "Total number of webhook deliveries rejected for a bad signature",
		},
	)

	WebhookMalformedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "webhook_malformed_total",
			Help: "Total number of webhook deliveries with missing or unparseable settlement fields",
		},
	)

	WebhookIgnoredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "webhook_ignored_total",
			Help: "Total number of webhook deliveries acknowledged as no-ops (irrelevant event types)",
		},
	)

	WebhookDuplicateTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "webhook_duplicate_total",
			Help: "Total number of redelivered payments resolved as idempotent no-ops",
		},
	)

	WebhookSettledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "webhook_settled_total",
			Help: "Total number of purchases settled into the ledger",
		},
	)

	WebhookProcessingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "webhook_processing_duration_seconds",
			Help:    "Duration of webhook event processing",
			Buckets: prometheus.DefBuckets,
		},
	)

	NotificationsSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total number of notification emails delivered",
		},
	)

	NotificationsFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_failed_total",
			Help: "Total number of notification emails that failed to deliver",
		},
	)

	NotificationsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_dropped_total",
			Help: "Total number of fan-out jobs dropped because the queue was full",
		},
	)
)

// Register registers all Prometheus metrics
func Register() {
	prometheus.MustRegister(WebhookEventsTotal)
	prometheus.MustRegister(WebhookInvalidSignatureTotal)
	prometheus.MustRegister(WebhookMalformedTotal)
	prometheus.MustRegister(WebhookIgnoredTotal)
	prometheus.MustRegister(WebhookDuplicateTotal)
	prometheus.MustRegister(WebhookSettledTotal)
	prometheus.MustRegister(WebhookProcessingDuration)
	prometheus.MustRegister(NotificationsSentTotal)
	prometheus.MustRegister(NotificationsFailedTotal)
	prometheus.MustRegister(NotificationsDroppedTotal)
}
