// Package observability provides Prometheus metrics and OpenTelemetry tracing.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	inboundMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "providata_chatbot_inbound_messages_total",
			Help: "Inbound messages handled by the dialogue engine",
		},
		[]string{"state", "outcome"}, // outcome: advanced, rejected, reset, error
	)

	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "providata_chatbot_transitions_total",
			Help: "Dialogue state transitions",
		},
		[]string{"from", "to"},
	)

	handleDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "providata_chatbot_handle_duration_seconds",
			Help:    "Time to handle one inbound message",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"state"},
	)

	outboundMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "providata_chatbot_outbound_messages_total",
			Help: "Outbound replies sent through the messaging gateway",
		},
		[]string{"status"}, // status: success, error
	)

	requestsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "providata_chatbot_requests_created_total",
			Help: "Citizen requests registered through the chatbot",
		},
	)

	webhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "providata_webhook_events_total",
			Help: "Webhook events received from the messaging gateway",
		},
		[]string{"result"}, // result: accepted, ignored, duplicate, invalid
	)
)

// RecordInbound records the outcome of one handled inbound message.
func RecordInbound(state, outcome string, durationMS int) {
	inboundMessagesTotal.WithLabelValues(state, outcome).Inc()
	handleDurationSeconds.WithLabelValues(state).Observe(float64(durationMS) / 1000.0)
}

// RecordTransition records a state change.
func RecordTransition(from, to string) {
	transitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordOutbound records an outbound send attempt.
func RecordOutbound(status string) {
	outboundMessagesTotal.WithLabelValues(status).Inc()
}

// RecordRequestCreated records a registered request.
func RecordRequestCreated() {
	requestsCreatedTotal.Inc()
}

// RecordWebhookEvent records how an incoming webhook event was classified.
func RecordWebhookEvent(result string) {
	webhookEventsTotal.WithLabelValues(result).Inc()
}
