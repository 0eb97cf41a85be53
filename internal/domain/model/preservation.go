// Пакет model — доменные модели Preservation Module.
// PreservationRecord — маппинг таблицы preservation_info.
package model

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// ErrInvalidStatus — статус не входит в закрытый набор PreservationStatus.
var ErrInvalidStatus = errors.New("недопустимый статус сохранения")

// PreservationStatus — статус попытки сохранения записи во внешней архивной платформе.
// В БД хранится однобуквенный код (CHAR(1)).
type PreservationStatus string

// Допустимые статусы сохранения.
const (
	// StatusPreserved — запись успешно обработана и сохранена.
	StatusPreserved PreservationStatus = "P"
	// StatusProcessing — запись ещё обрабатывается.
	StatusProcessing PreservationStatus = "I"
	// StatusFailed — сохранение завершилось ошибкой.
	StatusFailed PreservationStatus = "F"
	// StatusDeleted — сохранённая копия удалена (логический маркер).
	StatusDeleted PreservationStatus = "D"
)

// statusByCode и statusByName — таблицы разбора статуса.
// Ключи в верхнем регистре: разбор регистронезависимый.
var (
	statusByCode = map[string]PreservationStatus{
		"P": StatusPreserved,
		"I": StatusProcessing,
		"F": StatusFailed,
		"D": StatusDeleted,
	}
	statusByName = map[string]PreservationStatus{
		"PRESERVED":  StatusPreserved,
		"PROCESSING": StatusProcessing,
		"FAILED":     StatusFailed,
		"DELETED":    StatusDeleted,
	}
)

// ParseStatus преобразует код ("P") или имя ("preserved") в PreservationStatus.
// Сначала проверяется имя, затем код. Любое другое значение — ErrInvalidStatus.
func ParseStatus(value string) (PreservationStatus, error) {
	upper := strings.ToUpper(strings.TrimSpace(value))
	if s, ok := statusByName[upper]; ok {
		return s, nil
	}
	if s, ok := statusByCode[upper]; ok {
		return s, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, value)
}

// IsValid проверяет, что статус входит в закрытый набор.
func (s PreservationStatus) IsValid() bool {
	_, ok := statusByCode[string(s)]
	return ok
}

// Name возвращает длинное имя статуса (PRESERVED, PROCESSING, ...).
func (s PreservationStatus) Name() string {
	for name, st := range statusByName {
		if st == s {
			return name
		}
	}
	return ""
}

// String возвращает канонический код статуса.
func (s PreservationStatus) String() string {
	return string(s)
}

// Description — произвольные метаданные от платформы сохранения (JSONB).
// Содержимое не интерпретируется: хранится и возвращается как есть.
type Description map[string]any

// Equal сравнивает два описания. nil и пустой объект считаются равными.
func (d Description) Equal(other Description) bool {
	if len(d) == 0 && len(other) == 0 {
		return true
	}
	return reflect.DeepEqual(map[string]any(d), map[string]any(other))
}

// OrEmpty возвращает описание или пустой объект вместо nil
// (в API description всегда сериализуется как объект).
func (d Description) OrEmpty() Description {
	if d == nil {
		return Description{}
	}
	return d
}

// PreservationRecord — запись о попытке сохранения ревизии записи.
// Естественный ключ: (RecordID, RevisionID, ArchiveTimestamp).
type PreservationRecord struct {
	// ID — UUID записи (генерируется при создании, не меняется)
	ID string
	// RecordID — UUID владеющей записи (слабая ссылка, не интерпретируется)
	RecordID string
	// RevisionID — номер ревизии содержимого записи (>= 0)
	RevisionID int
	// Status — последний сообщённый статус сохранения
	Status PreservationStatus
	// HarvestTimestamp — время чтения содержимого платформой (опционально)
	HarvestTimestamp *time.Time
	// ArchiveTimestamp — время фиксации архивной копии (опционально, часть ключа)
	ArchiveTimestamp *time.Time
	// URI — URI архивной копии во внешней платформе (опционально)
	URI *string
	// Path — путь к архивной копии во внешней платформе (опционально)
	Path *string
	// EventID — UUID входящего события, последним изменившего запись (опционально)
	EventID *string
	// Description — метаданные платформы (JSONB)
	Description Description
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}

// TruncateTimestamp приводит время к точности PostgreSQL (микросекунды, UTC).
// Значения из БД приходят с микросекундной точностью.
func TruncateTimestamp(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC().Truncate(time.Microsecond)
	return &v
}

// SameTimestamp сравнивает два опциональных времени с точностью до микросекунды.
func SameTimestamp(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return TruncateTimestamp(a).Equal(*TruncateTimestamp(b))
}

// SameString сравнивает две опциональные строки.
func SameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
