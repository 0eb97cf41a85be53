package model

import "slices"

// SubjectType — тип субъекта запроса.
type SubjectType string

const (
	// SubjectTypeUser — пользователь (OIDC).
	SubjectTypeUser SubjectType = "user"
	// SubjectTypeSA — Service Account (Client Credentials), например платформа сохранения.
	SubjectTypeSA SubjectType = "service_account"
	// SubjectTypeAnonymous — запрос без токена (только для read endpoints).
	SubjectTypeAnonymous SubjectType = "anonymous"
)

// Роли пользователей.
const (
	RoleReadonly = "readonly"
	RoleAdmin    = "admin"
)

// Scopes Service Account для preservation API.
const (
	ScopePreservationRead  = "preservation:read"
	ScopePreservationWrite = "preservation:write"
)

// Identity — субъект, от имени которого выполняется операция.
// Формируется JWT middleware, в сервисный слой передаётся явно.
type Identity struct {
	// Subject — sub из JWT (пусто для анонимного субъекта)
	Subject string
	// SubjectType — тип субъекта
	SubjectType SubjectType
	// Username — preferred_username или client_id
	Username string
	// EffectiveRole — роль пользователя (admin, readonly, "")
	EffectiveRole string
	// Scopes — scopes Service Account
	Scopes []string
}

// AnonymousIdentity возвращает анонимного субъекта.
func AnonymousIdentity() *Identity {
	return &Identity{SubjectType: SubjectTypeAnonymous}
}

// IsAnonymous возвращает true для запросов без аутентификации.
func (i *Identity) IsAnonymous() bool {
	return i == nil || i.SubjectType == SubjectTypeAnonymous
}

// HasRole проверяет effective роль пользователя.
func (i *Identity) HasRole(role string) bool {
	return i != nil && i.SubjectType == SubjectTypeUser && i.EffectiveRole == role
}

// HasAnyScope проверяет наличие хотя бы одного из scopes у Service Account.
func (i *Identity) HasAnyScope(scopes ...string) bool {
	if i == nil || i.SubjectType != SubjectTypeSA {
		return false
	}
	for _, s := range scopes {
		if slices.Contains(i.Scopes, s) {
			return true
		}
	}
	return false
}
