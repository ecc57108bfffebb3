package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "healthwatch"

var (
	// Snapshot metrics

	// SnapshotPolls tracks health snapshot fetches
	SnapshotPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "polls_total",
			Help:      "Total health snapshot fetches",
		},
		[]string{"trigger", "result"}, // trigger: interval, refresh; result: success, failed
	)

	// SnapshotPollDuration tracks how long a snapshot fetch takes
	SnapshotPollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "poll_duration_seconds",
			Help:      "Time to fetch a health snapshot",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	// SnapshotMetricValue mirrors the last delivered value of each snapshot metric
	SnapshotMetricValue = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "metric_value",
			Help:      "Last reported value of a health snapshot metric",
		},
		[]string{"metric"},
	)

	// SnapshotLastSuccess is the unix time of the last successful fetch
	SnapshotLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful snapshot fetch",
		},
	)

	// Alert metrics

	// AlertsDerived tracks alerts produced by derivation passes
	AlertsDerived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "derived_total",
			Help:      "Total alerts produced by threshold derivation",
		},
		[]string{"metric", "severity"},
	)

	// AlertsAdded tracks alerts that were new to the store
	AlertsAdded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "added_total",
			Help:      "Total alerts added to the store",
		},
		[]string{"severity"},
	)

	// ActiveAlerts tracks unacknowledged alerts per severity
	ActiveAlerts = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "active",
			Help:      "Number of unacknowledged alerts in the store",
		},
		[]string{"severity"},
	)

	// StoredAlerts tracks the total store size
	StoredAlerts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "stored",
			Help:      "Number of alerts held in the store",
		},
	)

	// AlertsExpired tracks alerts dropped by age or capacity
	AlertsExpired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "expired_total",
			Help:      "Total alerts removed by retention or capacity",
		},
		[]string{"reason"}, // reason: retention, capacity
	)

	// AlertActions tracks user actions against the store
	AlertActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "actions_total",
			Help:      "Total user actions against the alert store",
		},
		[]string{"action"}, // acknowledge, dismiss, clear_all, enable, disable
	)

	// AlertsEnabled reports whether derivation is switched on (1) or off (0)
	AlertsEnabled = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "enabled",
			Help:      "Alert derivation switch (0=disabled, 1=enabled)",
		},
	)

	// Backend client metrics

	// BackendRequests tracks calls to the backend REST API
	BackendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "requests_total",
			Help:      "Total requests made to the backend API",
		},
		[]string{"endpoint", "status_code"},
	)

	// BackendRequestDuration tracks backend call latency
	BackendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "request_duration_seconds",
			Help:      "Backend API request duration",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint"},
	)

	// BackendCircuitBreakerState tracks circuit breaker state
	// 0 = closed (healthy), 1 = open (tripped), 2 = half-open (testing)
	BackendCircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"name"},
	)

	// BackendCircuitBreakerTrips tracks circuit breaker trip events
	BackendCircuitBreakerTrips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "circuit_breaker_trips_total",
			Help:      "Total circuit breaker trip events",
		},
		[]string{"name"},
	)

	// BackendTokenRefreshes tracks access token refreshes
	BackendTokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "token_refreshes_total",
			Help:      "Total access token refresh attempts",
		},
		[]string{"result"},
	)

	// Notification metrics

	// NotificationsSent tracks outbound notifications
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notification",
			Name:      "sent_total",
			Help:      "Total notifications sent",
		},
		[]string{"channel", "result"},
	)

	// LeaderIsPrimary is 1 while this instance holds the notification lock
	LeaderIsPrimary = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "leader",
			Name:      "is_primary",
			Help:      "Whether this instance holds the notification leader lock (1=primary, 0=standby)",
		},
	)

	// HTTP API metrics

	// HTTPRequestsTotal tracks HTTP API requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP API requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks HTTP API request duration
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP API request duration",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// CircuitBreakerState constants
const (
	CircuitBreakerClosed   = 0
	CircuitBreakerOpen     = 1
	CircuitBreakerHalfOpen = 2
)
