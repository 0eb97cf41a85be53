package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goartstore/preservation-module/internal/domain/model"
)

// EventRepository — журнал входящих уведомлений (таблица preservation_events).
type EventRepository interface {
	// Create сохраняет полученное уведомление. ID должен быть заполнен вызывающим.
	Create(ctx context.Context, e *model.PreservationEvent) error
	// SetResponse записывает HTTP-код и тело ответа отправителю.
	SetResponse(ctx context.Context, id string, code int, response json.RawMessage) error
	// GetByID возвращает событие по UUID.
	GetByID(ctx context.Context, id string) (*model.PreservationEvent, error)
}

// eventRepo — реализация EventRepository.
type eventRepo struct {
	db DBTX
}

// NewEventRepository создаёт репозиторий журнала событий.
func NewEventRepository(db DBTX) EventRepository {
	return &eventRepo{db: db}
}

func (r *eventRepo) Create(ctx context.Context, e *model.PreservationEvent) error {
	query := `
		INSERT INTO preservation_events (id, receiver_id, subject, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		e.ID, e.ReceiverID, e.Subject, jsonOrNull(e.Payload),
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: событие с таким ID уже записано", ErrConflict)
		}
		return fmt.Errorf("ошибка записи события: %w", err)
	}
	return nil
}

func (r *eventRepo) SetResponse(ctx context.Context, id string, code int, response json.RawMessage) error {
	query := `
		UPDATE preservation_events
		SET response_code = $2, response = $3, updated_at = NOW()
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, code, jsonOrNull(response))
	if err != nil {
		return fmt.Errorf("ошибка записи ответа на событие: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *eventRepo) GetByID(ctx context.Context, id string) (*model.PreservationEvent, error) {
	query := `
		SELECT id, receiver_id, subject, payload, response_code, response, created_at, updated_at
		FROM preservation_events
		WHERE id = $1`

	e := &model.PreservationEvent{}
	var payload, response []byte
	err := r.db.QueryRow(ctx, query, id).Scan(
		&e.ID, &e.ReceiverID, &e.Subject, &payload, &e.ResponseCode, &response,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения события: %w", err)
	}
	e.Payload = payload
	e.Response = response
	return e, nil
}

// jsonOrNull возвращает nil для пустого тела, чтобы в JSONB попал SQL NULL.
// Невалидный JSON сохраняется как строка.
func jsonOrNull(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	if !json.Valid(raw) {
		quoted, _ := json.Marshal(string(raw))
		return string(quoted)
	}
	return string(raw)
}
