package model

import (
	"encoding/json"
	"time"
)

// ReceiverPreservation — идентификатор webhook-приёмника событий сохранения.
const ReceiverPreservation = "preservation"

// PreservationEvent — входящее уведомление от платформы сохранения.
// Хранится в таблице preservation_events вместе с кодом ответа отправителю.
type PreservationEvent struct {
	// ID — UUID события
	ID string
	// ReceiverID — идентификатор приёмника (preservation)
	ReceiverID string
	// Subject — sub отправителя из JWT
	Subject string
	// Payload — тело запроса как получено
	Payload json.RawMessage
	// ResponseCode — HTTP-код, возвращённый отправителю (nil до обработки)
	ResponseCode *int
	// Response — тело ответа отправителю
	Response json.RawMessage
	// CreatedAt — время получения
	CreatedAt time.Time
	// UpdatedAt — время записи ответа
	UpdatedAt time.Time
}
