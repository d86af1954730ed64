// health.go — обработчики health endpoints для Kubernetes probes.
package handlers

import (
	"net/http"
	"time"

	"github.com/bigkaa/flashshare/internal/config"
)

// statusFail — строковая константа для статуса "fail" в health checks.
const statusFail = "fail"

// serviceName — имя сервиса в ответах health endpoints.
const serviceName = "flashshare"

// DependencyHealth — состояние внешних зависимостей (DephealthService).
type DependencyHealth interface {
	Health() map[string]bool
}

// HealthHandler реализует /health/live и /health/ready.
type HealthHandler struct {
	version string
	svc     ShareService
	// deps — мониторинг зависимостей (nil, если не запущен)
	deps DependencyHealth
}

// NewHealthHandler создаёт обработчик health endpoints.
func NewHealthHandler(svc ShareService, deps DependencyHealth) *HealthHandler {
	return &HealthHandler{
		version: config.Version,
		svc:     svc,
		deps:    deps,
	}
}

// HealthLive обрабатывает GET /health/live.
// Возвращает 200, если процесс жив. Не проверяет зависимости.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   serviceName,
	})
}

// HealthReady обрабатывает GET /health/ready.
// Проверяет: бэкенд хранилища настроен, хранилище метаданных отвечает.
// Состояние зависимостей из dephealth понижает статус до degraded.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	overallStatus := "ok"
	httpStatus := http.StatusOK

	storageCheck := map[string]any{"status": "ok", "backend": h.svc.BackendName()}
	if err := h.svc.Ready(r.Context()); err != nil {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
		storageCheck["status"] = statusFail
		storageCheck["message"] = err.Error()
	}

	checks := map[string]any{"storage": storageCheck}

	if h.deps != nil {
		deps := h.deps.Health()
		checks["dependencies"] = deps
		for _, ok := range deps {
			if !ok && overallStatus != statusFail {
				overallStatus = "degraded"
			}
		}
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   serviceName,
		"checks":    checks,
	})
}
