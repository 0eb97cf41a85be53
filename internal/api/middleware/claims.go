package middleware

import (
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bigkaa/goartstore/preservation-module/internal/domain/model"
)

// keycloakClaims — claims токена Keycloak, используемые модулем.
type keycloakClaims struct {
	jwt.RegisteredClaims
	PreferredUsername string `json:"preferred_username"`
	RealmAccess       struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
	Groups []string `json:"groups,omitempty"`
	// Scope и ClientID присутствуют у Service Account
	Scope    string `json:"scope,omitempty"`
	ClientID string `json:"client_id,omitempty"`
}

// identity строит субъекта из claims.
// Токен с client_id и scope — Service Account, иначе пользователь.
func (c *keycloakClaims) identity(adminGroups, readonlyGroups []string) *model.Identity {
	if c.ClientID != "" && c.Scope != "" {
		username := c.PreferredUsername
		if username == "" {
			username = c.ClientID
		}
		return &model.Identity{
			Subject:     c.Subject,
			SubjectType: model.SubjectTypeSA,
			Username:    username,
			Scopes:      strings.Fields(c.Scope),
		}
	}

	return &model.Identity{
		Subject:       c.Subject,
		SubjectType:   model.SubjectTypeUser,
		Username:      c.PreferredUsername,
		EffectiveRole: resolveRole(c.Groups, c.RealmAccess.Roles, adminGroups, readonlyGroups),
	}
}

// resolveRole вычисляет роль пользователя.
// Группы IdP приоритетнее realm-ролей, из нескольких ролей побеждает admin.
func resolveRole(groups, realmRoles, adminGroups, readonlyGroups []string) string {
	switch {
	case intersects(groups, adminGroups):
		return model.RoleAdmin
	case intersects(groups, readonlyGroups):
		return model.RoleReadonly
	case slices.Contains(realmRoles, model.RoleAdmin):
		return model.RoleAdmin
	case slices.Contains(realmRoles, model.RoleReadonly):
		return model.RoleReadonly
	}
	return ""
}

func intersects(have, want []string) bool {
	return slices.ContainsFunc(have, func(g string) bool {
		return slices.Contains(want, g)
	})
}
