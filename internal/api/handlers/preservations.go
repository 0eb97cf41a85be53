// preservations.go — endpoints чтения истории сохранений записи.
// GET {PM_LIST_PATH}                                       — вся история, новые первыми
// GET {PM_LATEST_PATH}                                     — последняя запись
// GET /records/{pid}/preservations/external-resources      — ссылка на архив для UI
// Аутентификация необязательная: анонимный субъект оценивается policy.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	apierrors "github.com/bigkaa/goartstore/preservation-module/internal/api/errors"
	"github.com/bigkaa/goartstore/preservation-module/internal/api/middleware"
	"github.com/bigkaa/goartstore/preservation-module/internal/domain/model"
	"github.com/bigkaa/goartstore/preservation-module/internal/service"
)

// preservationResponse — сериализованная запись о сохранении.
type preservationResponse struct {
	RevisionID       int               `json:"revision_id"`
	Status           string            `json:"status"`
	ArchiveTimestamp *time.Time        `json:"archive_timestamp"`
	HarvestTimestamp *time.Time        `json:"harvest_timestamp"`
	URI              *string           `json:"uri"`
	Path             *string           `json:"path"`
	Description      model.Description `json:"description"`
}

// preservationListResponse — ответ списка: {"hits": {"hits": [...], "total": N}}.
type preservationListResponse struct {
	Hits struct {
		Hits  []preservationResponse `json:"hits"`
		Total int                    `json:"total"`
	} `json:"hits"`
}

// toPreservationResponse конвертирует domain модель в API-представление.
func toPreservationResponse(p *model.PreservationRecord) preservationResponse {
	return preservationResponse{
		RevisionID:       p.RevisionID,
		Status:           string(p.Status),
		ArchiveTimestamp: p.ArchiveTimestamp,
		HarvestTimestamp: p.HarvestTimestamp,
		URI:              p.URI,
		Path:             p.Path,
		Description:      p.Description.OrEmpty(),
	}
}

// ListPreservations — история сохранений записи.
func (h *APIHandler) ListPreservations(w http.ResponseWriter, r *http.Request) {
	pid, err := pidParam(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	items, err := h.preservation.List(r.Context(), middleware.IdentityFromContext(r.Context()), pid)
	if err != nil {
		h.writeReadError(w, r, pid, err)
		return
	}

	var resp preservationListResponse
	resp.Hits.Hits = make([]preservationResponse, 0, len(items))
	for _, p := range items {
		resp.Hits.Hits = append(resp.Hits.Hits, toPreservationResponse(p))
	}
	resp.Hits.Total = len(items)

	writeJSON(w, http.StatusOK, resp)
}

// LatestPreservation — последняя запись о сохранении.
func (h *APIHandler) LatestPreservation(w http.ResponseWriter, r *http.Request) {
	pid, err := pidParam(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	p, err := h.preservation.Latest(r.Context(), middleware.IdentityFromContext(r.Context()), pid)
	if err != nil {
		h.writeReadError(w, r, pid, err)
		return
	}
	if p == nil {
		apierrors.NotFound(w, "Информация о сохранении записи отсутствует")
		return
	}

	writeJSON(w, http.StatusOK, toPreservationResponse(p))
}

// PreservationExternalResources — описание ссылки на архивную копию для страницы записи.
func (h *APIHandler) PreservationExternalResources(w http.ResponseWriter, r *http.Request) {
	pid, err := pidParam(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	resources, err := h.preservation.ExternalResource(r.Context(), middleware.IdentityFromContext(r.Context()), pid)
	if err != nil {
		h.writeReadError(w, r, pid, err)
		return
	}

	writeJSON(w, http.StatusOK, resources)
}

// writeReadError маппит ошибки чтения в формат Artstore.
func (h *APIHandler) writeReadError(w http.ResponseWriter, r *http.Request, pid string, err error) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		apierrors.Forbidden(w, "Недостаточно прав для просмотра информации о сохранении")
	case errors.Is(err, service.ErrReferenceNotFound):
		apierrors.ValidationError(w, "Запись с таким PID не найдена")
	case errors.Is(err, service.ErrMalformedRequest):
		apierrors.ValidationError(w, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "Ошибка чтения информации о сохранении",
			slog.String("pid", pid),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при получении информации о сохранении")
	}
}
