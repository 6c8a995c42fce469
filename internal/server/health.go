package server

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/region23/sessionboard/internal/storage"
	"github.com/region23/sessionboard/pkg/metrics"
)

// HealthResponse представляет ответ health check
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Version   string            `json:"version,omitempty"`
	Uptime    string            `json:"uptime,omitempty"`
	Checks    map[string]string `json:"checks"`
}

// HealthChecker проверяет состояние системы
type HealthChecker struct {
	storage   storage.Storage
	startTime time.Time
	version   string
}

// NewHealthChecker создает новый health checker
func NewHealthChecker(storage storage.Storage, version string) *HealthChecker {
	return &HealthChecker{
		storage:   storage,
		startTime: time.Now(),
		version:   version,
	}
}

// HealthHandler обрабатывает запросы health check
func (h *HealthChecker) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	status := "healthy"

	if err := h.checkDatabase(ctx); err != nil {
		checks["database"] = "unhealthy: " + err.Error()
		status = "unhealthy"
	} else {
		checks["database"] = "healthy"
	}

	checks["memory"] = h.checkMemory()
	checks["goroutines"] = h.checkGoroutines()
	if status == "healthy" && (checks["memory"] != "healthy" || checks["goroutines"] != "healthy") {
		status = "warning"
	}

	code := http.StatusOK
	if status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(HealthResponse{
		Status:    status,
		Timestamp: time.Now().Format(time.RFC3339),
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    checks,
	})
}

// checkDatabase проверяет доступность хранилища
func (h *HealthChecker) checkDatabase(ctx context.Context) error {
	if h.storage == nil {
		return nil
	}
	return h.storage.Ping(ctx)
}

// checkMemory проверяет использование памяти
func (h *HealthChecker) checkMemory() string {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	metrics.MemoryUsage.Set(float64(m.Alloc))

	const warningLimit = 500 * 1024 * 1024   // 500MB
	const criticalLimit = 1024 * 1024 * 1024 // 1GB

	switch {
	case m.Alloc > criticalLimit:
		return "critical: memory usage > 1GB"
	case m.Alloc > warningLimit:
		return "warning: memory usage > 500MB"
	}
	return "healthy"
}

// checkGoroutines проверяет количество горутин
func (h *HealthChecker) checkGoroutines() string {
	count := runtime.NumGoroutine()

	metrics.GoroutinesCount.Set(float64(count))

	switch {
	case count > 1000:
		return "critical: too many goroutines"
	case count > 100:
		return "warning: high goroutine count"
	}
	return "healthy"
}
