// Пакет permission — политика доступа к истории сохранений записи.
//
// Запись (write): пользователь с ролью admin или Service Account со scope preservation:write.
// Чтение (read): публичные записи доступны всем, включая анонимных субъектов;
// restricted — admin, владельцу записи и SA со scope preservation:read/write.
// Управление (manage): admin или владелец записи.
package permission

import (
	"context"

	"github.com/bigkaa/goartstore/preservation-module/internal/domain/model"
)

// Policy — политика доступа по умолчанию.
type Policy struct{}

// NewPolicy создаёт политику доступа.
func NewPolicy() *Policy {
	return &Policy{}
}

// CanWrite проверяет право записи уведомлений о сохранении.
func (p *Policy) CanWrite(_ context.Context, identity *model.Identity, _ *model.Record) bool {
	if identity.IsAnonymous() {
		return false
	}
	return identity.HasRole(model.RoleAdmin) ||
		identity.HasAnyScope(model.ScopePreservationWrite)
}

// CanRead проверяет право чтения истории сохранений.
func (p *Policy) CanRead(_ context.Context, identity *model.Identity, record *model.Record) bool {
	if record == nil {
		return false
	}
	if record.IsPublic() {
		return true
	}
	if identity.IsAnonymous() {
		return false
	}
	return identity.HasRole(model.RoleAdmin) ||
		record.IsOwnedBy(identity.Subject) ||
		identity.HasAnyScope(model.ScopePreservationRead, model.ScopePreservationWrite)
}

// CanManage проверяет, управляет ли субъект записью.
func (p *Policy) CanManage(_ context.Context, identity *model.Identity, record *model.Record) bool {
	if record == nil || identity.IsAnonymous() {
		return false
	}
	return identity.HasRole(model.RoleAdmin) || record.IsOwnedBy(identity.Subject)
}
