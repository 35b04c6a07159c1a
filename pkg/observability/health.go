package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// CheckFunc probes a single dependency
type CheckFunc func(ctx context.Context) error

type namedCheck struct {
	name     string
	required bool
	check    CheckFunc
}

// HealthChecker provides health check functionality
type HealthChecker struct {
	version string

	mu     sync.RWMutex
	checks []namedCheck
}

// NewHealthChecker creates a health checker for the user database and the
// session store. Either may be nil. The database is required for readiness;
// Redis only degrades the status.
func NewHealthChecker(db *sql.DB, redisClient *redis.Client, version string) *HealthChecker {
	h := &HealthChecker{version: version}
	if db != nil {
		h.AddCheck("database", true, databaseCheck(db))
	}
	if redisClient != nil {
		h.AddCheck("redis", false, func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	return h
}

// AddCheck registers an additional dependency probe
func (h *HealthChecker) AddCheck(name string, required bool, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, namedCheck{name: name, required: required, check: check})
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Version      string                      `json:"version,omitempty"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus represents the health of a single dependency
type DependencyStatus struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	LatencyMS int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Liveness returns a simple liveness probe (always returns 200 if server is running)
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	writeHealth(w, http.StatusOK, HealthStatus{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Version:   h.version,
	})
}

// Readiness checks all dependencies and returns 503 when a required one is down
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	code := http.StatusOK
	if status.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeHealth(w, code, status)
}

// Check runs every registered probe
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	h.mu.RLock()
	checks := append([]namedCheck(nil), h.checks...)
	h.mu.RUnlock()

	sort.Slice(checks, func(i, j int) bool { return checks[i].name < checks[j].name })

	status := HealthStatus{
		Status:       StatusHealthy,
		Timestamp:    time.Now(),
		Version:      h.version,
		Dependencies: make(map[string]DependencyStatus, len(checks)),
	}

	for _, c := range checks {
		start := time.Now()
		err := c.check(ctx)
		dep := DependencyStatus{
			Status:    StatusHealthy,
			LatencyMS: time.Since(start).Milliseconds(),
			Timestamp: time.Now(),
		}
		if err != nil {
			dep.Status = StatusUnhealthy
			dep.Message = err.Error()
			switch {
			case c.required:
				status.Status = StatusUnhealthy
			case status.Status == StatusHealthy:
				status.Status = StatusDegraded
			}
		}
		status.Dependencies[c.name] = dep
	}

	return status
}

func databaseCheck(db *sql.DB) CheckFunc {
	return func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		var one int
		return db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
	}
}

func writeHealth(w http.ResponseWriter, code int, status HealthStatus) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(status)
}

// RegisterHealthRoutes registers health check endpoints
func RegisterHealthRoutes(mux *http.ServeMux, checker *HealthChecker) {
	mux.HandleFunc("/health", checker.Readiness)
	mux.HandleFunc("/health/live", checker.Liveness)
	mux.HandleFunc("/health/ready", checker.Readiness)
}
