// health.go — /health/live, /health/ready и /metrics.
package handlers

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/goartstore/preservation-module/internal/config"
)

const serviceName = "preservation-module"

const (
	statusOK       = "ok"
	statusDegraded = "degraded"
	statusFail     = "fail"
)

// ReadinessChecker — проверка одной зависимости.
type ReadinessChecker interface {
	// CheckReady возвращает статус ("ok", "degraded", "fail") и пояснение.
	CheckReady() (status, message string)
}

// dependencyCheck — зависимость в readiness.
// Не критичная зависимость в состоянии fail понижает итог только до degraded.
type dependencyCheck struct {
	name     string
	checker  ReadinessChecker
	critical bool
}

// HealthHandler — обработчик health endpoints.
type HealthHandler struct {
	pg          ReadinessChecker
	checks      []dependencyCheck
	promHandler http.Handler
}

// NewHealthHandler создаёт обработчик health endpoints.
// Без pgChecker readiness всегда fail. recordsChecker и keycloakChecker
// могут быть nil. Keycloak нужен только вебхуку, поэтому он не критичен.
func NewHealthHandler(pgChecker, recordsChecker, keycloakChecker ReadinessChecker) *HealthHandler {
	h := &HealthHandler{pg: pgChecker, promHandler: promhttp.Handler()}
	if recordsChecker != nil {
		h.checks = append(h.checks, dependencyCheck{name: "records_api", checker: recordsChecker, critical: true})
	}
	if keycloakChecker != nil {
		h.checks = append(h.checks, dependencyCheck{name: "keycloak", checker: keycloakChecker})
	}
	return h
}

type checkResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthLiveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
}

type healthReadyResponse struct {
	healthLiveResponse
	Checks map[string]checkResult `json:"checks"`
}

func newLiveResponse(status string) healthLiveResponse {
	return healthLiveResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
	}
}

// HealthLive — процесс жив.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, newLiveResponse(statusOK))
}

// HealthReady — 200 при ok/degraded, 503 при fail.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	checks := make(map[string]checkResult, len(h.checks)+1)

	pg := checkResult{Status: statusFail, Message: "не инициализирован"}
	if h.pg != nil {
		pg.Status, pg.Message = h.pg.CheckReady()
	}
	checks["postgresql"] = pg
	overall := pg.Status

	for _, dep := range h.checks {
		var res checkResult
		res.Status, res.Message = dep.checker.CheckReady()
		checks[dep.name] = res

		effective := res.Status
		if effective == statusFail && !dep.critical {
			effective = statusDegraded
		}
		overall = worse(overall, effective)
	}

	code := http.StatusOK
	if overall == statusFail {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, healthReadyResponse{
		healthLiveResponse: newLiveResponse(overall),
		Checks:             checks,
	})
}

// GetMetrics — Prometheus метрики.
func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}

// statusRank: fail хуже degraded, degraded хуже ok. Неизвестный статус считается fail.
var statusRank = map[string]int{statusOK: 0, statusDegraded: 1, statusFail: 2}

func worse(a, b string) string {
	ra, ok := statusRank[a]
	if !ok {
		a, ra = statusFail, statusRank[statusFail]
	}
	rb, ok := statusRank[b]
	if !ok {
		b, rb = statusFail, statusRank[statusFail]
	}
	if rb > ra {
		return b
	}
	return a
}
