package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hostpanel"

// Outcome label values shared by the dashboard collectors.
const (
	OutcomeSuccess  = "success"
	OutcomeWarning  = "warning"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected"
	OutcomeFallback = "fallback"
)

var (
	// Dashboard metrics
	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "dashboard",
		Name:      "sessions_active",
		Help:      "Number of open dashboard panels",
	})

	actionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dashboard",
		Name:      "actions_total",
		Help:      "Dashboard actions handled, by action kind and outcome",
	}, []string{"action", "outcome"})

	busyRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dashboard",
		Name:      "busy_rejections_total",
		Help:      "Actions rejected because another operation was in flight",
	})

	rendersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dashboard",
		Name:      "renders_total",
		Help:      "Panels rendered, by mode and outcome",
	}, []string{"mode", "outcome"})

	sessionsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dashboard",
		Name:      "sessions_expired_total",
		Help:      "Dashboards closed by the idle timeout",
	})

	// Hosting API metrics
	hostingRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "hosting",
		Name:      "requests_total",
		Help:      "Requests sent to the hosting API, by endpoint and HTTP status",
	}, []string{"endpoint", "status"})

	hostingRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "hosting",
		Name:      "request_duration_seconds",
		Help:      "Latency of hosting API requests",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
	}, []string{"endpoint"})

	hostingRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "hosting",
		Name:      "retries_total",
		Help:      "Read requests retried after a transient failure",
	}, []string{"endpoint"})

	// Deploy metrics
	deployArchivesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "deploy",
		Name:      "archives_total",
		Help:      "Archives submitted through /commit and /upload",
	}, []string{"kind", "outcome"})

	deployArchiveBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "deploy",
		Name:      "archive_bytes",
		Help:      "Size of accepted archives",
		Buckets:   prometheus.ExponentialBuckets(64*1024, 4, 8), // 64KB to 1GB
	})

	// Chat gateway metrics
	interactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "discord",
		Name:      "interactions_total",
		Help:      "Interactions received, by type",
	}, []string{"type"})

	gatewayConnectAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "discord",
		Name:      "gateway_connect_attempts_total",
		Help:      "Gateway connection attempts, by result",
	}, []string{"result"})

	// Ops server metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Requests served by the ops server",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency of ops server requests",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})
)

// SetActiveSessions sets the number of open dashboards.
func SetActiveSessions(count int) {
	sessionsActive.Set(float64(count))
}

// RecordAction counts one handled dashboard action.
func RecordAction(action, outcome string) {
	actionsTotal.WithLabelValues(action, outcome).Inc()
}

// IncrementBusyRejections counts an action refused by the in-flight gate.
func IncrementBusyRejections() {
	busyRejectionsTotal.Inc()
}

// RecordRender counts one rendered panel.
func RecordRender(mode, outcome string) {
	rendersTotal.WithLabelValues(mode, outcome).Inc()
}

// IncrementExpiredSessions counts a dashboard closed by the idle timeout.
func IncrementExpiredSessions() {
	sessionsExpiredTotal.Inc()
}

// ObserveHostingRequest records one hosting API round trip. status is the
// HTTP status code, or 0 when the request never got a response.
func ObserveHostingRequest(endpoint string, status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	hostingRequestsTotal.WithLabelValues(endpoint, label).Inc()
	hostingRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// IncrementHostingRetries counts a retried read.
func IncrementHostingRetries(endpoint string) {
	hostingRetriesTotal.WithLabelValues(endpoint).Inc()
}

// RecordDeploy counts a submitted archive. size is only observed on success.
func RecordDeploy(kind, outcome string, size int64) {
	deployArchivesTotal.WithLabelValues(kind, outcome).Inc()
	if outcome == OutcomeSuccess {
		deployArchiveBytes.Observe(float64(size))
	}
}

// RecordInteraction counts an incoming chat interaction.
func RecordInteraction(kind string) {
	interactionsTotal.WithLabelValues(kind).Inc()
}

// RecordGatewayConnect counts a gateway connection attempt.
func RecordGatewayConnect(ok bool) {
	result := OutcomeSuccess
	if !ok {
		result = OutcomeFailure
	}
	gatewayConnectAttempts.WithLabelValues(result).Inc()
}

// RecordHTTPRequest records one ops server request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}
