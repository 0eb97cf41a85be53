package model

import (
	"errors"
	"slices"
)

// ErrRecordNotFound — PID не разрешается в запись владеющей платформы.
var ErrRecordNotFound = errors.New("запись с таким PID не найдена")

// Уровни доступа к записи владеющей платформы.
const (
	AccessPublic     = "public"
	AccessRestricted = "restricted"
)

// Record — запись владеющей платформы, полученная через resolver по PID.
// Не хранится в БД модуля: ID используется как ключ preservation_info.record_id.
type Record struct {
	// ID — внутренний стабильный UUID записи
	ID string `json:"id"`
	// PID — внешний персистентный идентификатор (например, "public_pid")
	PID string `json:"pid"`
	// Access — уровень доступа: public, restricted
	Access string `json:"access"`
	// Owners — субъекты (sub из JWT), управляющие записью
	Owners []string `json:"owners,omitempty"`
}

// IsPublic возвращает true для публично доступных записей.
// Пустой уровень доступа трактуется как restricted.
func (r *Record) IsPublic() bool {
	return r.Access == AccessPublic
}

// IsOwnedBy проверяет, является ли субъект владельцем записи.
func (r *Record) IsOwnedBy(subject string) bool {
	if subject == "" {
		return false
	}
	return slices.Contains(r.Owners, subject)
}
