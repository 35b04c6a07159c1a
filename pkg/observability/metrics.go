package observability

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sync outcome labels
const (
	SyncStatusSuccess = "success"
	SyncStatusFailure = "failure"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Sync metrics
	SyncAttemptsTotal *prometheus.CounterVec
	SyncDuration      prometheus.Histogram
	SyncFailuresTotal *prometheus.CounterVec

	// Observer metrics
	ObserverTriggersTotal prometheus.Counter
	ObserverTrackedKeys   prometheus.Gauge

	// Session metrics
	SessionsCreatedTotal prometheus.Counter
	SessionsActive       prometheus.Gauge
	LoginThrottledTotal  prometheus.Counter

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	otel *OTelMetrics
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "idsync_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "idsync_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "idsync_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		SyncAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "idsync_sync_attempts_total",
				Help: "Total number of user record sync attempts",
			},
			[]string{"status"},
		),
		SyncDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "idsync_sync_duration_seconds",
				Help:    "User record sync duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
		),
		SyncFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "idsync_sync_failures_total",
				Help: "Total number of failed user record syncs",
			},
			[]string{"reason"},
		),

		ObserverTriggersTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "idsync_observer_triggers_total",
				Help: "Total number of sync triggers fired by the session observer",
			},
		),
		ObserverTrackedKeys: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "idsync_observer_tracked_sessions",
				Help: "Number of sessions whose last auth state is tracked",
			},
		),

		SessionsCreatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "idsync_sessions_created_total",
				Help: "Total number of sessions created by login callbacks",
			},
		),
		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "idsync_sessions_active",
				Help: "Number of live sessions in the in-process store",
			},
		),

		LoginThrottledTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "idsync_login_throttled_total",
				Help: "Total number of login and callback requests rejected by the rate limiter",
			},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "idsync_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "idsync_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.SyncAttemptsTotal,
		m.SyncDuration,
		m.SyncFailuresTotal,
		m.ObserverTriggersTotal,
		m.ObserverTrackedKeys,
		m.SessionsCreatedTotal,
		m.SessionsActive,
		m.LoginThrottledTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// MirrorTo forwards sync and trigger measurements to OpenTelemetry
// instruments as well as Prometheus.
func (m *Metrics) MirrorTo(o *OTelMetrics) {
	m.otel = o
}

// RecordSync records the outcome of one sync attempt. Safe on a nil receiver.
func (m *Metrics) RecordSync(duration time.Duration, reason string) {
	if m == nil {
		return
	}
	m.otel.RecordSync(context.Background(), duration, reason)
	m.SyncDuration.Observe(duration.Seconds())
	if reason == "" {
		m.SyncAttemptsTotal.WithLabelValues(SyncStatusSuccess).Inc()
		return
	}
	m.SyncAttemptsTotal.WithLabelValues(SyncStatusFailure).Inc()
	m.SyncFailuresTotal.WithLabelValues(reason).Inc()
}

// RecordTrigger counts one observer trigger. Safe on a nil receiver.
func (m *Metrics) RecordTrigger() {
	if m == nil {
		return
	}
	m.otel.RecordTrigger(context.Background())
	m.ObserverTriggersTotal.Inc()
}

// UpdateDBStats copies connection pool statistics into the gauges
func (m *Metrics) UpdateDBStats(stats sql.DBStats) {
	if m == nil {
		return
	}
	m.DBConnectionsActive.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// routeLabel prefers the mux route template so path labels stay bounded
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			path := routeLabel(r)
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, path).Observe(float64(rw.bytesWritten))
		})
	}
}

// MetricsHandler serves the registry in the Prometheus exposition format
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
