package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthChecker_Liveness(t *testing.T) {
	checker := NewHealthChecker(nil, nil, "v1.2.3")

	w := httptest.NewRecorder()
	checker.Liveness(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, StatusHealthy, status.Status)
	assert.Equal(t, "v1.2.3", status.Version)
}

func TestHealthChecker_DatabaseAndRedisHealthy(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	status := NewHealthChecker(db, client, "").Check(context.Background())

	assert.Equal(t, StatusHealthy, status.Status)
	assert.Equal(t, StatusHealthy, status.Dependencies["database"].Status)
	assert.Equal(t, StatusHealthy, status.Dependencies["redis"].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthChecker_DatabaseDown(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	checker := NewHealthChecker(db, nil, "")

	w := httptest.NewRecorder()
	checker.Readiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, StatusUnhealthy, status.Status)
	assert.Equal(t, "connection refused", status.Dependencies["database"].Message)
}

func TestHealthChecker_RedisDownDegrades(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	checker := NewHealthChecker(nil, client, "")

	w := httptest.NewRecorder()
	checker.Readiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, StatusDegraded, status.Status)
	assert.Equal(t, StatusUnhealthy, status.Dependencies["redis"].Status)
}

func TestHealthChecker_AddCheck(t *testing.T) {
	checker := NewHealthChecker(nil, nil, "")
	checker.AddCheck("optional", false, func(ctx context.Context) error { return errors.New("slow") })
	checker.AddCheck("required", true, func(ctx context.Context) error { return nil })

	status := checker.Check(context.Background())
	assert.Equal(t, StatusDegraded, status.Status)
	assert.Len(t, status.Dependencies, 2)

	checker.AddCheck("idp", true, func(ctx context.Context) error { return errors.New("down") })
	assert.Equal(t, StatusUnhealthy, checker.Check(context.Background()).Status)
}

func TestRegisterHealthRoutes(t *testing.T) {
	mux := http.NewServeMux()
	RegisterHealthRoutes(mux, NewHealthChecker(nil, nil, ""))

	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}
