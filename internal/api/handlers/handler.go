// handler.go — основной обработчик API Preservation Module.
// Объединяет health, receiver вебхука и endpoints чтения истории сохранений.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"github.com/bigkaa/goartstore/preservation-module/internal/domain/model"
	"github.com/bigkaa/goartstore/preservation-module/internal/repository"
	"github.com/bigkaa/goartstore/preservation-module/internal/service"
)

// PreservationService — операции сервисного слоя, используемые HTTP-обработчиками.
// Реализуется *service.PreservationService.
type PreservationService interface {
	Enabled() bool
	Ingest(ctx context.Context, identity *model.Identity, req service.IngestRequest) (*model.PreservationRecord, service.Outcome, error)
	List(ctx context.Context, identity *model.Identity, pid string) ([]*model.PreservationRecord, error)
	Latest(ctx context.Context, identity *model.Identity, pid string) (*model.PreservationRecord, error)
	ExternalResource(ctx context.Context, identity *model.Identity, pid string) ([]service.ExternalResource, error)
}

// DocumentValidator — проверка тела запроса по схеме OpenAPI контракта.
// Реализуется *validation.Validator.
type DocumentValidator interface {
	Validate(schema string, raw []byte) error
}

// APIHandler — основной обработчик API Preservation Module.
type APIHandler struct {
	health       *HealthHandler
	preservation PreservationService
	events       repository.EventRepository
	validator    DocumentValidator
	logger       *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	preservation PreservationService,
	events repository.EventRepository,
	validator DocumentValidator,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:       health,
		preservation: preservation,
		events:       events,
		validator:    validator,
		logger:       logger.With(slog.String("component", "api_handler")),
	}
}

// --- Health endpoints (делегируются в HealthHandler) ---

// HealthLive — liveness probe.
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe.
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики.
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// pidParam извлекает и декодирует path-параметр {pid}.
func pidParam(r *http.Request) (string, error) {
	var pid string
	err := runtime.BindStyledParameterWithOptions("simple", "pid", chi.URLParam(r, "pid"), &pid,
		runtime.BindStyledParameterOptions{
			ParamLocation: runtime.ParamLocationPath,
			Explode:       false,
			Required:      true,
		})
	if err != nil {
		return "", fmt.Errorf("некорректный параметр pid: %w", err)
	}
	return pid, nil
}
