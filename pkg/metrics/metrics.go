// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// WebSocketConnectionsActive tracks open sockets, split by whether an identity resolved.
	WebSocketConnectionsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Number of active WebSocket connections",
		},
		[]string{"authenticated"},
	)

	// RealtimeEventsTotal counts fanout events by name and outcome.
	RealtimeEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_events_total",
			Help: "Realtime events emitted",
		},
		[]string{"event", "outcome"},
	)

	// MessagesTotal tracks messages sent by type.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Total messages sent",
		},
		[]string{"type"},
	)

	// ConversationsTotal counts newly inserted conversation pairs.
	ConversationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conversations_created_total",
			Help: "Conversations created",
		},
	)

	// BridgeResubscribesTotal counts broker subscriptions that had to be retried.
	BridgeResubscribesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanout_bridge_resubscribes_total",
			Help: "Fanout bridge subscription retries",
		},
		[]string{"channel"},
	)

	// NotificationsTotal tracks notifications created by type.
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Total notifications created",
		},
		[]string{"type"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordEvent counts one fanout attempt.
func RecordEvent(event, outcome string) {
	RealtimeEventsTotal.WithLabelValues(event, outcome).Inc()
}

func IncrementWebSocketConnections(authenticated bool) {
	WebSocketConnectionsActive.WithLabelValues(boolLabel(authenticated)).Inc()
}

func DecrementWebSocketConnections(authenticated bool) {
	WebSocketConnectionsActive.WithLabelValues(boolLabel(authenticated)).Dec()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
