// receiver.go — receiver вебхука POST /hooks/receivers/preservation/events.
// Каждый запрос фиксируется в журнале preservation_events вместе с кодом ответа.
// Ответ: {"message": "...", "status": <код>} (+ "id" записи при 202).
package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/goartstore/preservation-module/internal/api/middleware"
	"github.com/bigkaa/goartstore/preservation-module/internal/api/validation"
	"github.com/bigkaa/goartstore/preservation-module/internal/domain/model"
	"github.com/bigkaa/goartstore/preservation-module/internal/service"
)

// maxEventBodySize — ограничение размера тела уведомления.
const maxEventBodySize = 1 << 20

// receiverResponse — тело ответа receiver.
type receiverResponse struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
	ID      string `json:"id,omitempty"`
}

// eventPayload — тело уведомления платформы сохранения.
// revision_id принимается числом или строкой, временные метки — строками ISO-8601.
type eventPayload struct {
	PID              string            `json:"pid"`
	RevisionID       json.RawMessage   `json:"revision_id"`
	Status           string            `json:"status"`
	ArchiveTimestamp *string           `json:"archive_timestamp"`
	HarvestTimestamp *string           `json:"harvest_timestamp"`
	URI              *string           `json:"uri"`
	Path             *string           `json:"path"`
	Description      model.Description `json:"description"`
}

// ReceivePreservationEvent — приём уведомления о сохранении.
// Аутентификация: обязательный JWT (middleware), право записи проверяет policy.
func (h *APIHandler) ReceivePreservationEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := middleware.IdentityFromContext(ctx)

	body, readErr := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBodySize))

	// Журнал событий: сбой записи не блокирует обработку уведомления
	eventID := uuid.New().String()
	event := &model.PreservationEvent{
		ID:         eventID,
		ReceiverID: model.ReceiverPreservation,
		Subject:    identity.Subject,
		Payload:    body,
	}
	var eventRef *string
	if err := h.events.Create(ctx, event); err != nil {
		h.logger.Error("Ошибка записи события в журнал",
			slog.String("event_id", eventID),
			slog.String("error", err.Error()),
		)
	} else {
		eventRef = &eventID
	}

	code, resp := h.processEvent(r, identity, body, readErr, eventRef)

	if eventRef != nil {
		raw, _ := json.Marshal(resp)
		if err := h.events.SetResponse(ctx, eventID, code, raw); err != nil {
			h.logger.Error("Ошибка записи ответа события",
				slog.String("event_id", eventID),
				slog.String("error", err.Error()),
			)
		}
	}

	writeJSON(w, code, resp)
}

// processEvent разбирает уведомление, передаёт его в сервис и формирует ответ.
func (h *APIHandler) processEvent(
	r *http.Request,
	identity *model.Identity,
	body []byte,
	readErr error,
	eventID *string,
) (int, receiverResponse) {
	var (
		p   *model.PreservationRecord
		err error
	)

	switch {
	case !h.preservation.Enabled():
		err = service.ErrModuleDisabled
	case readErr != nil:
		err = fmt.Errorf("%w: чтение тела запроса: %v", service.ErrMalformedRequest, readErr)
	default:
		var req service.IngestRequest
		req, err = h.decodeEvent(body)
		if err == nil {
			req.EventID = eventID
			p, _, err = h.preservation.Ingest(r.Context(), identity, req)
		}
	}

	code := ingestStatus(err)
	if err != nil {
		level := slog.LevelWarn
		if code == http.StatusConflict {
			level = slog.LevelInfo
		}
		h.logger.Log(r.Context(), level, "Уведомление о сохранении отклонено",
			slog.Int("status", code),
			slog.String("subject", identity.Subject),
			slog.String("error", err.Error()),
		)
		return code, receiverResponse{Message: ingestMessage(err), Status: code}
	}

	return code, receiverResponse{
		Message: "Информация о сохранении принята",
		Status:  code,
		ID:      p.ID,
	}
}

// decodeEvent проверяет тело по схеме PreservationEvent и разбирает его.
func (h *APIHandler) decodeEvent(body []byte) (service.IngestRequest, error) {
	if err := h.validator.Validate(validation.SchemaPreservationEvent, body); err != nil {
		return service.IngestRequest{}, fmt.Errorf("%w: %v", service.ErrMalformedRequest, err)
	}

	var payload eventPayload
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&payload); err != nil {
		return service.IngestRequest{}, fmt.Errorf("%w: %v", service.ErrMalformedRequest, err)
	}

	revision, err := parseRevision(payload.RevisionID)
	if err != nil {
		return service.IngestRequest{}, err
	}
	archived, err := parseTimestamp("archive_timestamp", payload.ArchiveTimestamp)
	if err != nil {
		return service.IngestRequest{}, err
	}
	harvested, err := parseTimestamp("harvest_timestamp", payload.HarvestTimestamp)
	if err != nil {
		return service.IngestRequest{}, err
	}

	return service.IngestRequest{
		PID:              payload.PID,
		RevisionID:       revision,
		Status:           payload.Status,
		ArchiveTimestamp: archived,
		HarvestTimestamp: harvested,
		URI:              payload.URI,
		Path:             payload.Path,
		Description:      payload.Description,
	}, nil
}

// parseRevision принимает revision_id числом или строкой с целым числом.
// Отсутствующее значение — nil (обязательность проверяет сервис).
func parseRevision(raw json.RawMessage) (*int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	text := string(raw)
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		text = s
	}

	text = strings.TrimSpace(text)
	if n, err := strconv.Atoi(text); err == nil {
		return &n, nil
	}
	// JSON-число вида 3.0
	if f, err := strconv.ParseFloat(text, 64); err == nil && f == math.Trunc(f) && math.Abs(f) <= math.MaxInt32 {
		n := int(f)
		return &n, nil
	}
	return nil, fmt.Errorf("%w: revision_id %s не является целым числом", service.ErrMalformedRequest, raw)
}

// timestampLayouts — допустимые форматы временных меток.
// Метка без часового пояса трактуется как UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// parseTimestamp разбирает временную метку ISO-8601.
// nil и пустая строка — «не передано».
func parseTimestamp(field string, value *string) (*time.Time, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	text := strings.TrimSpace(*value)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s %q не является временной меткой ISO-8601", service.ErrMalformedRequest, field, text)
}

// ingestStatus классифицирует результат обработки уведомления в HTTP-код.
// Неклассифицированные ошибки — 400.
func ingestStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusAccepted
	case errors.Is(err, service.ErrDuplicateNotification):
		return http.StatusConflict
	case errors.Is(err, service.ErrModuleDisabled):
		return http.StatusNotFound
	case errors.Is(err, service.ErrPermissionDenied):
		return http.StatusForbidden
	default:
		return http.StatusBadRequest
	}
}

// ingestMessage возвращает сообщение об ошибке для клиента.
// Детали внутренних сбоев в ответ не попадают.
func ingestMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrDuplicateNotification),
		errors.Is(err, service.ErrModuleDisabled),
		errors.Is(err, service.ErrPermissionDenied),
		errors.Is(err, service.ErrMalformedRequest),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrReferenceNotFound):
		return err.Error()
	default:
		return "Уведомление о сохранении не может быть обработано"
	}
}
