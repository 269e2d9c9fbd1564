package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petaverse_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "petaverse_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Chat metrics
	RoomsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "petaverse_rooms_created_total",
			Help: "Total chat rooms created",
		},
	)

	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petaverse_messages_sent_total",
			Help: "Total chat messages persisted",
		},
		[]string{"type"},
	)

	MessagesRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "petaverse_messages_read_total",
			Help: "Total chat messages transitioned to READ",
		},
	)

	// Delivery metrics
	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petaverse_deliveries_total",
			Help: "Delivery attempts by channel and result",
		},
		[]string{"channel", "result"}, // channel: push|email, result: ok|error|skipped
	)

	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petaverse_notifications_created_total",
			Help: "Total notifications persisted",
		},
		[]string{"type"},
	)

	OutboxProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petaverse_outbox_events_total",
			Help: "Outbox events handled by the worker",
		},
		[]string{"result"},
	)

	PlatformEventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petaverse_platform_events_total",
			Help: "Platform events consumed from Redis",
		},
		[]string{"event_type", "result"}, // result: ok|invalid|error
	)

	NotificationsPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "petaverse_notifications_purged_total",
			Help: "Read notifications removed by the retention sweep",
		},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petaverse_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	// Websocket metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "petaverse_websocket_connections",
			Help: "Currently open websocket connections",
		},
	)
)
