// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionsActive tracks open socket connections by role.
	ConnectionsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "realtime_connections_active",
			Help: "Number of open realtime connections",
		},
		[]string{"role"},
	)

	// HandshakesTotal tracks handshake outcomes.
	HandshakesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_handshakes_total",
			Help: "Total realtime handshakes by outcome",
		},
		[]string{"outcome"},
	)

	// EventsTotal tracks inbound events by name and outcome.
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_events_total",
			Help: "Total inbound realtime events",
		},
		[]string{"event", "outcome"},
	)

	// EventDuration tracks handler latency per inbound event.
	EventDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "realtime_event_duration_seconds",
			Help:    "Inbound event handling duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"event"},
	)

	// SupportTransitionsTotal tracks support chat lifecycle transitions.
	SupportTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_chat_transitions_total",
			Help: "Support chat lifecycle transitions",
		},
		[]string{"transition"},
	)

	// NotificationsTotal tracks persisted notifications by type.
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Total notifications created",
		},
		[]string{"type"},
	)

	// DroppedFramesTotal tracks outbound frames dropped because a client
	// could not keep up.
	DroppedFramesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_dropped_frames_total",
			Help: "Outbound frames dropped on slow connections",
		},
	)
)

// RecordEvent records metrics for one handled inbound event.
func RecordEvent(event, outcome string, duration float64) {
	EventsTotal.WithLabelValues(event, outcome).Inc()
	EventDuration.WithLabelValues(event).Observe(duration)
}

func ConnectionOpened(role string) {
	ConnectionsActive.WithLabelValues(role).Inc()
}

func ConnectionClosed(role string) {
	ConnectionsActive.WithLabelValues(role).Dec()
}

func RecordTransition(name string) {
	SupportTransitionsTotal.WithLabelValues(name).Inc()
}

func RecordNotification(notificationType string) {
	NotificationsTotal.WithLabelValues(notificationType).Inc()
}
