package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the prometheus collectors of the service. A nil *Metrics is a no-op.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	httpErrors       *prometheus.CounterVec
	transitions      *prometheus.CounterVec
	trackingSamples  *prometheus.CounterVec
	activeTracking   prometheus.Gauge
	notifications    *prometheus.CounterVec
	responseDuration *prometheus.HistogramVec
}

// NewMetrics creates collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_http_requests_total",
			Help: "Total number of HTTP requests received by the API.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dispatch_http_request_duration_seconds",
			Help:    "Duration of HTTP requests handled by the API.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		httpErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_http_errors_total",
			Help: "HTTP requests that ended in an error response, by error code.",
		}, []string{"route", "method", "code"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_report_transitions_total",
			Help: "Report status transitions, by outcome.",
		}, []string{"from", "to", "outcome"}),
		trackingSamples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_tracking_samples_total",
			Help: "Responder position samples, by what happened to them.",
		}, []string{"result"}),
		activeTracking: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dispatch_tracking_sessions_active",
			Help: "Tracking sessions currently streaming positions.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_notifications_total",
			Help: "Notification deliveries, by channel and outcome.",
		}, []string{"channel", "outcome"}),
		responseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dispatch_report_response_duration_seconds",
			Help:    "Time from report filing to acceptance and to completion.",
			Buckets: []float64{60, 300, 600, 1200, 1800, 3600, 7200, 14400, 28800, 86400},
		}, []string{"stage", "severity"}),
	}
	m.registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.httpErrors,
		m.transitions,
		m.trackingSamples,
		m.activeTracking,
		m.notifications,
		m.responseDuration,
	)
	return m
}

// Handler exposes the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.httpRequests.WithLabelValues(route, method, code).Inc()
	m.httpDuration.WithLabelValues(route, method, code).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.httpErrors.WithLabelValues(route, method, code).Inc()
}

// RecordTransition counts a transition attempt; outcome is "ok" or an error code.
func (m *Metrics) RecordTransition(from, to, outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to, outcome).Inc()
}

// RecordSample counts a position sample as "written", "skipped" or "failed".
func (m *Metrics) RecordSample(result string) {
	if m == nil {
		return
	}
	m.trackingSamples.WithLabelValues(result).Inc()
}

// TrackingStarted and TrackingStopped move the active sessions gauge.
func (m *Metrics) TrackingStarted() {
	if m == nil {
		return
	}
	m.activeTracking.Inc()
}

func (m *Metrics) TrackingStopped() {
	if m == nil {
		return
	}
	m.activeTracking.Dec()
}

// RecordNotification counts a delivery attempt outcome per channel.
func (m *Metrics) RecordNotification(channel, outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(channel, outcome).Inc()
}

// ObserveResponse records how long a report waited for a stage ("accepted", "completed").
func (m *Metrics) ObserveResponse(stage, severity string, elapsed time.Duration) {
	if m == nil || elapsed <= 0 {
		return
	}
	m.responseDuration.WithLabelValues(stage, severity).Observe(elapsed.Seconds())
}
