package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HealthStatus represents the health status of a component.
type HealthStatus string

const (
	HealthStatusOK        HealthStatus = "ok"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentHealth represents the health of a single component.
type ComponentHealth struct {
	Status    HealthStatus `json:"status"`
	Message   string       `json:"message,omitempty"`
	LatencyMS int64        `json:"latency_ms,omitempty"`
}

// HealthCheckResponse represents the overall health check response.
type HealthCheckResponse struct {
	Status        HealthStatus               `json:"status"`
	Version       string                     `json:"version"`
	UptimeSeconds int64                      `json:"uptime_seconds"`
	Timestamp     string                     `json:"timestamp"`
	Checks        map[string]ComponentHealth `json:"checks"`
}

// HealthChecker performs health checks on system components.
type HealthChecker struct {
	version   string
	startTime time.Time
	checks    map[string]HealthCheckFunc
}

// HealthCheckFunc defines a function that checks component health.
type HealthCheckFunc func(ctx context.Context) ComponentHealth

// NewHealthChecker creates a new health checker.
func NewHealthChecker(version string) *HealthChecker {
	return &HealthChecker{
		version:   version,
		startTime: time.Now(),
		checks:    make(map[string]HealthCheckFunc),
	}
}

// RegisterCheck registers a health check for a component.
func (hc *HealthChecker) RegisterCheck(name string, checkFunc HealthCheckFunc) {
	hc.checks[name] = checkFunc
}

// Check performs all health checks.
func (hc *HealthChecker) Check(ctx context.Context) HealthCheckResponse {
	response := HealthCheckResponse{
		Status:        HealthStatusOK,
		Version:       hc.version,
		UptimeSeconds: int64(time.Since(hc.startTime).Seconds()),
		Timestamp:     time.Now().Format(time.RFC3339),
		Checks:        make(map[string]ComponentHealth),
	}

	for name, checkFunc := range hc.checks {
		health := checkFunc(ctx)
		response.Checks[name] = health

		// Update overall status
		if health.Status == HealthStatusUnhealthy {
			response.Status = HealthStatusUnhealthy
		} else if health.Status == HealthStatusDegraded && response.Status != HealthStatusUnhealthy {
			response.Status = HealthStatusDegraded
		}
	}

	return response
}

// Handler returns an HTTP handler for health checks.
func (hc *HealthChecker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		response := hc.Check(ctx)

		w.Header().Set("Content-Type", "application/json")

		// Set HTTP status based on health
		switch response.Status {
		case HealthStatusOK:
			w.WriteHeader(http.StatusOK)
		case HealthStatusDegraded:
			w.WriteHeader(http.StatusOK) // Still 200 but degraded
		case HealthStatusUnhealthy:
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		_ = json.NewEncoder(w).Encode(response)
	}
}

// Common health check functions

// GRPCServerCheck always reports OK with the configured address; it does
// not contact the gRPC server.
func GRPCServerCheck(addr string) HealthCheckFunc {
	return func(ctx context.Context) ComponentHealth {
		start := time.Now()
		// Placeholder for actual check logic
		latency := time.Since(start).Milliseconds()

		return ComponentHealth{
			Status:    HealthStatusOK,
			Message:   fmt.Sprintf("gRPC server listening on %s", addr),
			LatencyMS: latency,
		}
	}
}

// RunnerBacklogCheck reports OK while the in-flight run count is below the
// runner's concurrency-slot capacity, degraded when every slot is in use,
// and unhealthy if the count exceeds the capacity.
func RunnerBacklogCheck(inFlight func() (current, capacity int)) HealthCheckFunc {
	return func(ctx context.Context) ComponentHealth {
		current, capacity := inFlight()
		msg := fmt.Sprintf("%d/%d simulations in flight", current, capacity)
		if capacity <= 0 || current < capacity {
			return ComponentHealth{Status: HealthStatusOK, Message: msg}
		}
		if current == capacity {
			return ComponentHealth{Status: HealthStatusDegraded, Message: msg}
		}
		return ComponentHealth{Status: HealthStatusUnhealthy, Message: msg}
	}
}

// ResultCacheCheck reports whether the boltdb-backed ResultCache file is
// reachable.
func ResultCacheCheck(ping func() error) HealthCheckFunc {
	return func(ctx context.Context) ComponentHealth {
		if err := ping(); err != nil {
			return ComponentHealth{Status: HealthStatusUnhealthy, Message: err.Error()}
		}
		return ComponentHealth{Status: HealthStatusOK, Message: "result cache reachable"}
	}
}

// DatabaseCheck checks PersistentStore (SQLite) connectivity via ping.
func DatabaseCheck(ping func(ctx context.Context) error) HealthCheckFunc {
	return func(ctx context.Context) ComponentHealth {
		start := time.Now()
		err := ping(ctx)
		latency := time.Since(start).Milliseconds()
		if err != nil {
			return ComponentHealth{Status: HealthStatusUnhealthy, Message: err.Error(), LatencyMS: latency}
		}
		if latency < 50 {
			return ComponentHealth{Status: HealthStatusOK, Message: "SQLite responsive", LatencyMS: latency}
		}
		return ComponentHealth{Status: HealthStatusDegraded, Message: "SQLite slow", LatencyMS: latency}
	}
}

// DiskSpaceCheck compares a fixed free-space value of 10 GB against
// minFreeGB; it does not inspect the filesystem at path.
func DiskSpaceCheck(path string, minFreeGB int64) HealthCheckFunc {
	return func(ctx context.Context) ComponentHealth {
		// Placeholder - in production would check actual disk space
		freeGB := int64(10) // Mock value

		if freeGB > minFreeGB {
			return ComponentHealth{
				Status:  HealthStatusOK,
				Message: fmt.Sprintf("%d GB free", freeGB),
			}
		}
		return ComponentHealth{
			Status:  HealthStatusDegraded,
			Message: fmt.Sprintf("Low disk space: %d GB free", freeGB),
		}
	}
}
