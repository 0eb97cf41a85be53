// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"

	"github.com/bigkaa/goartstore/preservation-module/internal/domain/model"
)

var (
	// ErrMalformedRequest — отсутствуют или некорректны обязательные поля уведомления.
	ErrMalformedRequest = errors.New("некорректное уведомление о сохранении")
	// ErrInvalidStatus — статус вне закрытого набора (P, I, F, D).
	ErrInvalidStatus = model.ErrInvalidStatus
	// ErrReferenceNotFound — PID не разрешается в запись.
	ErrReferenceNotFound = model.ErrRecordNotFound
	// ErrPermissionDenied — у субъекта нет права на операцию с записью.
	ErrPermissionDenied = errors.New("недостаточно прав для работы с информацией о сохранении")
	// ErrDuplicateNotification — уведомление не меняет ни одного поля (уже применено).
	ErrDuplicateNotification = errors.New("информация о сохранении уже получена")
	// ErrModuleDisabled — приём уведомлений отключён (PM_ENABLED=false).
	ErrModuleDisabled = errors.New("модуль синхронизации сохранений отключён")
)
