package observability

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_Registers(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	require.NotNil(t, m)

	assert.Panics(t, func() { NewMetrics(registry) }, "second registration must collide")
}

func TestMetrics_RecordSync(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordSync(10*time.Millisecond, "")
	m.RecordSync(20*time.Millisecond, "")
	m.RecordSync(30*time.Millisecond, "store_error")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.SyncAttemptsTotal.WithLabelValues(SyncStatusSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SyncAttemptsTotal.WithLabelValues(SyncStatusFailure)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SyncFailuresTotal.WithLabelValues("store_error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.SyncDuration))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordSync(time.Second, "panic")
		m.RecordTrigger()
		m.UpdateDBStats(sql.DBStats{InUse: 1})
	})
}

func TestMetrics_UpdateDBStats(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.UpdateDBStats(sql.DBStats{InUse: 3, Idle: 2})

	assert.Equal(t, float64(3), testutil.ToFloat64(m.DBConnectionsActive))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.DBConnectionsIdle))
}

func TestHTTPMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(m))
	router.HandleFunc("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	})

	for _, id := range []string{"1", "2", "3"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/users/"+id, nil))
	}

	assert.Equal(t, float64(3), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/users/{id}", "201")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.HTTPRequestsTotal))
}

func TestMetricsHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	m.RecordTrigger()

	w := httptest.NewRecorder()
	MetricsHandler(registry).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "idsync_observer_triggers_total 1"))
}
