package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DispatchMetrics records outbox fan-out outcomes: webhook deliveries,
// subscription disables, and transactional email sends.
type DispatchMetrics struct {
	webhookDuration  *prometheus.HistogramVec
	webhookDelivered *prometheus.CounterVec
	webhookFailed    *prometheus.CounterVec
	webhookDisabled  prometheus.Counter
	emailSent        *prometheus.CounterVec
	emailFailed      *prometheus.CounterVec
	eventsPublished  prometheus.Counter
	eventsDeadLetter prometheus.Counter
}

// NewDispatchMetrics registers the dispatcher metrics on the provided registerer.
func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	if reg == nil {
		return &DispatchMetrics{}
	}
	webhookDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_delivery_duration_seconds",
		Help:    "Duration of outbound webhook POSTs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"event_type"})
	webhookDelivered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_deliveries_total",
		Help: "Webhook deliveries acknowledged with a 2xx response.",
	}, []string{"event_type"})
	webhookFailed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_delivery_failures_total",
		Help: "Webhook deliveries that errored or returned non-2xx.",
	}, []string{"event_type"})
	webhookDisabled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "webhook_subscriptions_disabled_total",
		Help: "Subscriptions disabled after reaching the failure cap.",
	})
	emailSent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "email_sends_total",
		Help: "Transactional emails accepted by the provider.",
	}, []string{"template"})
	emailFailed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "email_send_failures_total",
		Help: "Transactional emails that failed after retries.",
	}, []string{"template"})
	eventsPublished := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbox_events_published_total",
		Help: "Outbox rows marked published.",
	})
	eventsDeadLetter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbox_events_dead_lettered_total",
		Help: "Outbox rows moved to the dead letter table.",
	})
	reg.MustRegister(
		webhookDuration,
		webhookDelivered,
		webhookFailed,
		webhookDisabled,
		emailSent,
		emailFailed,
		eventsPublished,
		eventsDeadLetter,
	)
	return &DispatchMetrics{
		webhookDuration:  webhookDuration,
		webhookDelivered: webhookDelivered,
		webhookFailed:    webhookFailed,
		webhookDisabled:  webhookDisabled,
		emailSent:        emailSent,
		emailFailed:      emailFailed,
		eventsPublished:  eventsPublished,
		eventsDeadLetter: eventsDeadLetter,
	}
}

// ObserveWebhookDuration records how long a delivery attempt took.
func (d *DispatchMetrics) ObserveWebhookDuration(eventType string, duration time.Duration) {
	if d == nil || d.webhookDuration == nil {
		return
	}
	d.webhookDuration.WithLabelValues(normalizeLabel(eventType)).Observe(duration.Seconds())
}

// IncWebhookDelivered increments the delivered counter for the event type.
func (d *DispatchMetrics) IncWebhookDelivered(eventType string) {
	if d == nil || d.webhookDelivered == nil {
		return
	}
	d.webhookDelivered.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncWebhookFailed increments the failure counter for the event type.
func (d *DispatchMetrics) IncWebhookFailed(eventType string) {
	if d == nil || d.webhookFailed == nil {
		return
	}
	d.webhookFailed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncWebhookDisabled counts a subscription hitting the failure cap.
func (d *DispatchMetrics) IncWebhookDisabled() {
	if d == nil || d.webhookDisabled == nil {
		return
	}
	d.webhookDisabled.Inc()
}

// IncEmailSent increments the sent counter for the template.
func (d *DispatchMetrics) IncEmailSent(template string) {
	if d == nil || d.emailSent == nil {
		return
	}
	d.emailSent.WithLabelValues(normalizeLabel(template)).Inc()
}

// IncEmailFailed increments the failed counter for the template.
func (d *DispatchMetrics) IncEmailFailed(template string) {
	if d == nil || d.emailFailed == nil {
		return
	}
	d.emailFailed.WithLabelValues(normalizeLabel(template)).Inc()
}

// IncEventPublished counts an outbox row marked published.
func (d *DispatchMetrics) IncEventPublished() {
	if d == nil || d.eventsPublished == nil {
		return
	}
	d.eventsPublished.Inc()
}

// IncEventDeadLettered counts an outbox row moved to the DLQ.
func (d *DispatchMetrics) IncEventDeadLettered() {
	if d == nil || d.eventsDeadLetter == nil {
		return
	}
	d.eventsDeadLetter.Inc()
}
