// Package metrics owns the Prometheus registry and the service's collectors.
package metrics

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "backoffice"

// Metrics bundles every collector on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	authEventsTotal     *prometheus.CounterVec
	rateLimitRejections *prometheus.CounterVec
	auditDroppedTotal   prometheus.Counter
	auditWrittenTotal   *prometheus.CounterVec
	reapedTotal         *prometheus.CounterVec
}

// New registers the collectors together with the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latencies in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		authEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_events_total",
			Help:      "Authentication operations by action and outcome.",
		}, []string{"action", "status"}),
		rateLimitRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_rejections_total",
			Help:      "Requests rejected by the auth rate limiter.",
		}, []string{"route"}),
		auditDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_dropped_total",
			Help:      "Audit entries dropped because the buffer was full.",
		}),
		auditWrittenTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_writes_total",
			Help:      "Audit entry writes by result.",
		}, []string{"result"}),
		reapedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reaped_rows_total",
			Help:      "Rows removed by the session reaper.",
		}, []string{"table"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.authEventsTotal,
		m.rateLimitRejections,
		m.auditDroppedTotal,
		m.auditWrittenTotal,
		m.reapedTotal,
	)

	return m
}

// WatchDB exports connection pool statistics for db. Watching a second pool
// under the same name is ignored.
func (m *Metrics) WatchDB(name string, db *sql.DB) {
	err := m.registry.Register(collectors.NewDBStatsCollector(db, name))
	if err != nil && !errors.As(err, new(prometheus.AlreadyRegisteredError)) {
		panic(err)
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// AuthEvent counts one audited auth operation.
func (m *Metrics) AuthEvent(action, status string) {
	m.authEventsTotal.WithLabelValues(action, status).Inc()
}

// RateLimited counts one rejected request.
func (m *Metrics) RateLimited(route string) {
	m.rateLimitRejections.WithLabelValues(route).Inc()
}

// AuditDropped counts one entry lost to a full buffer.
func (m *Metrics) AuditDropped() {
	m.auditDroppedTotal.Inc()
}

// AuditWritten counts one audit write attempt.
func (m *Metrics) AuditWritten(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.auditWrittenTotal.WithLabelValues(result).Inc()
}

// Reaped adds rows removed from table.
func (m *Metrics) Reaped(table string, rows int64) {
	if rows > 0 {
		m.reapedTotal.WithLabelValues(table).Add(float64(rows))
	}
}

// Instrument records request count and latency per matched route.
func (m *Metrics) Instrument(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		route := c.Path()
		if route == "" {
			route = "unmatched"
		}

		// Render the error here so the recorded status is the one the client sees.
		if err != nil {
			c.Error(err)
		}
		status := c.Response().Status

		m.httpRequestDuration.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())
		m.httpRequestsTotal.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()

		return nil
	}
}
