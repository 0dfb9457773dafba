package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	WSSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_ws_sessions",
			Help: "Number of open WebSocket sessions.",
		},
	)

	OpenControllers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_open_conversations",
			Help: "Number of conversations currently opened by a session.",
		},
	)

	MessagesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_sent_total",
			Help: "Messages persisted.",
		},
	)

	ConnectionTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_connection_transitions_total",
			Help: "Connection records created or moved to a new status.",
		},
		[]string{"status"},
	)

	RealtimeResubscribes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_realtime_resubscribes_total",
			Help: "Realtime subscriptions re-established after being dropped.",
		},
	)

	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_notifications_total",
			Help: "User-facing notices by kind.",
		},
		[]string{"kind"},
	)

	RejectedFrames = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_ws_rejected_frames_total",
			Help: "Inbound WebSocket frames dropped by the rate limiter.",
		},
	)
)

func init() {
	prometheus.MustRegister(WSSessions)
	prometheus.MustRegister(OpenControllers)
	prometheus.MustRegister(MessagesSent)
	prometheus.MustRegister(ConnectionTransitions)
	prometheus.MustRegister(RealtimeResubscribes)
	prometheus.MustRegister(Notifications)
	prometheus.MustRegister(RejectedFrames)
}
