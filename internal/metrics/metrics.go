package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wirechat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wirechat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Room lifecycle
	RoomsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wirechat_rooms_created_total",
			Help: "Total rooms created",
		},
	)

	RoomsRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wirechat_rooms_removed_total",
			Help: "Total rooms removed",
		},
	)

	RoomsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wirechat_rooms_active",
			Help: "Rooms currently held by the registry",
		},
	)

	// Sessions
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wirechat_sessions_active",
			Help: "Connected sessions",
		},
	)

	// Room traffic
	MessagesRelayed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wirechat_messages_relayed_total",
			Help: "Total chat messages appended and broadcast",
		},
	)

	EventsBroadcast = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wirechat_events_broadcast_total",
			Help: "Total room events fanned out, by event",
		},
		[]string{"event"},
	)

	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wirechat_events_dropped_total",
			Help: "Events dropped from full session queues",
		},
	)

	DeliveryFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wirechat_delivery_failures_total",
			Help: "Deliveries to a single subscriber that failed unexpectedly",
		},
	)

	TypingExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wirechat_typing_expired_total",
			Help: "Typing indicators removed by the expiry sweep",
		},
	)

	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wirechat_notifications_total",
			Help: "Notifications sent to a single session, by code",
		},
		[]string{"code"},
	)

	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wirechat_rate_limit_hits_total",
			Help: "Inbound frames rejected by the per-connection rate limit",
		},
	)
)
