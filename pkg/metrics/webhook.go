package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics records processing outcomes for provider webhook deliveries.
type WebhookMetrics struct {
	duration         *prometheus.HistogramVec
	received         *prometheus.CounterVec
	duplicate        *prometheus.CounterVec
	signatureFailure *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_reconcile_duration_seconds",
		Help:    "Duration of webhook reconciliation in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"event_type"})
	received := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_received",
		Help: "Webhook deliveries accepted for processing.",
	}, []string{"event_type"})
	duplicate := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_duplicate",
		Help: "Webhook deliveries skipped as already processed.",
	}, []string{"event_type"})
	signatureFailure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_signature_failures",
		Help: "Webhook deliveries rejected for invalid signatures.",
	}, []string{"provider"})
	reg.MustRegister(duration, received, duplicate, signatureFailure)
	return &WebhookMetrics{
		duration:         duration,
		received:         received,
		duplicate:        duplicate,
		signatureFailure: signatureFailure,
	}
}

// ObserveDuration records the reconciliation duration for the event type.
func (w *WebhookMetrics) ObserveDuration(eventType string, duration time.Duration) {
	if w == nil || w.duration == nil {
		return
	}
	w.duration.WithLabelValues(normalizeLabel(eventType)).Observe(duration.Seconds())
}

// IncReceived increments the received counter for the event type.
func (w *WebhookMetrics) IncReceived(eventType string) {
	if w == nil || w.received == nil {
		return
	}
	w.received.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncDuplicate increments the duplicate counter for the event type.
func (w *WebhookMetrics) IncDuplicate(eventType string) {
	if w == nil || w.duplicate == nil {
		return
	}
	w.duplicate.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncSignatureFailure increments the signature failure counter for the provider.
func (w *WebhookMetrics) IncSignatureFailure(provider string) {
	if w == nil || w.signatureFailure == nil {
		return
	}
	w.signatureFailure.WithLabelValues(normalizeLabel(provider)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
