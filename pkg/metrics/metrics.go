package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhookReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_deliveries_received_total",
		Help: "The total number of webhook deliveries received",
	}, []string{"provider"})

	WebhookValidated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_validation_total",
		Help: "Webhook validation verdicts by outcome",
	}, []string{"provider", "outcome"})

	SignatureFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_signature_failures_total",
		Help: "Webhook deliveries rejected during verification, by reason",
	}, []string{"provider", "reason"})

	DuplicateDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_duplicate_deliveries_total",
		Help: "Webhook deliveries collapsed by the idempotency store",
	}, []string{"provider"})

	ValidationTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_validation_duration_seconds",
		Help:    "Time taken to validate webhook deliveries",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})

	StoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_idempotency_store_errors_total",
		Help: "Idempotency store failures observed during validation",
	}, []string{"provider"})

	EventsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_dispatched_total",
		Help: "Validated first-seen events handed to the dispatcher",
	}, []string{"provider", "status"})

	DispatchQueueSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "webhook_dispatch_queue_size",
		Help: "Current size of the validated event queue",
	}, []string{"queue"})

	DeliveryRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_delivery_retries_total",
		Help: "The total number of worker-side processing retries",
	}, []string{"provider"})

	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_rate_limit_exceeded_total",
		Help: "The total number of times rate limits were exceeded",
	}, []string{"provider"})
)
