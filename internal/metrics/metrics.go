// Package metrics owns the Prometheus collectors for HTTP traffic, authentication, notifications and uploads.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the registered collectors. All recording methods are safe on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	authAttempts      *prometheus.CounterVec
	authSuccess       *prometheus.CounterVec
	authFailures      *prometheus.CounterVec
	notificationsSent *prometheus.CounterVec
	filesUploaded     *prometheus.CounterVec
}

// New creates a registry with the Go and process collectors plus the application collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status_code"}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Authentication attempts by method.",
		}, []string{"method"}),
		authSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_success_total",
			Help: "Successful authentications by method.",
		}, []string{"method"}),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_failures_total",
			Help: "Failed authentications by method and reason.",
		}, []string{"method", "reason"}),
		notificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Notification deliveries by type and final status.",
		}, []string{"type", "status"}),
		filesUploaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "files_uploaded_total",
			Help: "Uploaded files by MIME type.",
		}, []string{"type"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration,
		m.authAttempts, m.authSuccess, m.authFailures,
		m.notificationsSent, m.filesUploaded,
	)
	return m
}

// Registry returns the underlying registry (for tests and additional collectors).
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request count and latency labelled by the matched route template, so
// /users/:id is one series regardless of the id.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()
			err := next(c)
			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if status < http.StatusBadRequest {
					status = http.StatusInternalServerError
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			labels := []string{c.Request().Method, route, strconv.Itoa(status)}
			m.httpRequests.WithLabelValues(labels...).Inc()
			m.httpDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// AuthAttempt counts an authentication attempt (method: password, refresh, 2fa).
func (m *Metrics) AuthAttempt(method string) {
	if m != nil {
		m.authAttempts.WithLabelValues(method).Inc()
	}
}

// AuthSucceeded counts a successful authentication.
func (m *Metrics) AuthSucceeded(method string) {
	if m != nil {
		m.authSuccess.WithLabelValues(method).Inc()
	}
}

// AuthFailed counts a failed authentication with a short reason (invalid_credentials, locked, ...).
func (m *Metrics) AuthFailed(method, reason string) {
	if m != nil {
		m.authFailures.WithLabelValues(method, reason).Inc()
	}
}

// NotificationSent counts a notification that reached a final status (sent or failed).
func (m *Metrics) NotificationSent(typ, status string) {
	if m != nil {
		m.notificationsSent.WithLabelValues(typ, status).Inc()
	}
}

// FileUploaded counts a stored upload by MIME type.
func (m *Metrics) FileUploaded(mimeType string) {
	if m != nil {
		m.filesUploaded.WithLabelValues(mimeType).Inc()
	}
}
