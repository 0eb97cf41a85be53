// auth.go — JWT-аутентификация запросов Preservation Module.
// Middleware только устанавливает субъекта (model.Identity) в контексте.
// Доступ к конкретной записи решает permission policy сервисного слоя.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/bigkaa/goartstore/preservation-module/internal/api/errors"
	"github.com/bigkaa/goartstore/preservation-module/internal/domain/model"
)

type ctxKey int

const (
	identityKey ctxKey = iota
	subjectSlotKey
)

// errNoToken — в запросе нет заголовка Authorization.
var errNoToken = errors.New("Отсутствует заголовок Authorization")

// JWTConfig — параметры проверки JWT.
type JWTConfig struct {
	// JWKSURL — JWKS endpoint провайдера идентификации
	JWKSURL string
	// CACertPath — CA-сертификат для TLS к JWKS (опционально)
	CACertPath string
	// Issuer — ожидаемый iss (пусто — не проверяется)
	Issuer string
	// AdminGroups, ReadonlyGroups — группы IdP, дающие роли admin и readonly
	AdminGroups    []string
	ReadonlyGroups []string

	// ClientTimeout — таймаут HTTP-клиента JWKS
	ClientTimeout time.Duration
	// RefreshInterval — период обновления ключей
	RefreshInterval time.Duration
	// Leeway — допуск расхождения часов для exp/nbf
	Leeway time.Duration
}

// JWTAuth проверяет Bearer-токены по ключам JWKS.
type JWTAuth struct {
	keys           keyfunc.Keyfunc
	parserOpts     []jwt.ParserOption
	adminGroups    []string
	readonlyGroups []string
	logger         *slog.Logger
}

// NewJWTAuth создаёт JWTAuth с фоновым обновлением JWKS.
// Недоступность провайдера при старте не ошибка: ключи подтянутся при обновлении.
func NewJWTAuth(cfg JWTConfig, logger *slog.Logger) (*JWTAuth, error) {
	client, err := httpClientWithCA(cfg.CACertPath, cfg.ClientTimeout)
	if err != nil {
		return nil, fmt.Errorf("CA-сертификат JWKS %s: %w", cfg.CACertPath, err)
	}

	storage, err := jwkset.NewStorageFromHTTP(cfg.JWKSURL, jwkset.HTTPClientStorageOptions{
		Client:                    client,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           cfg.RefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("url", cfg.JWKSURL),
				slog.String("error", err.Error()),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	kf, err := keyfunc.New(keyfunc.Options{Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	auth := NewJWTAuthWithKeyfunc(kf, cfg.Issuer, cfg.AdminGroups, cfg.ReadonlyGroups, logger)
	auth.parserOpts = append(auth.parserOpts, jwt.WithLeeway(cfg.Leeway))
	return auth, nil
}

// NewJWTAuthWithKeyfunc создаёт JWTAuth поверх готового keyfunc.
func NewJWTAuthWithKeyfunc(
	kf keyfunc.Keyfunc,
	issuer string,
	adminGroups, readonlyGroups []string,
	logger *slog.Logger,
) *JWTAuth {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	return &JWTAuth{
		keys:           kf,
		parserOpts:     opts,
		adminGroups:    adminGroups,
		readonlyGroups: readonlyGroups,
		logger:         logger.With(slog.String("component", "jwt_auth")),
	}
}

// Middleware — обязательная аутентификация: без валидного токена 401.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := j.authenticate(r)
			if err != nil {
				apierrors.Unauthorized(w, err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// OptionalMiddleware — необязательная аутентификация.
// Без заголовка Authorization запрос идёт от анонимного субъекта,
// предъявленный невалидный токен отклоняется с 401.
func (j *JWTAuth) OptionalMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := j.authenticate(r)
			switch {
			case errors.Is(err, errNoToken):
				next.ServeHTTP(w, r)
			case err != nil:
				apierrors.Unauthorized(w, err.Error())
			default:
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
			}
		})
	}
}

// authenticate проверяет Bearer-токен и строит субъекта.
// Текст ошибки уходит клиенту, детали — только в debug-лог.
func (j *JWTAuth) authenticate(r *http.Request) (*model.Identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, errNoToken
	}

	scheme, raw, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return nil, errors.New("Неверный формат Authorization: ожидается Bearer <token>")
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("Пустой Bearer token")
	}

	claims := &keycloakClaims{}
	if _, err := jwt.ParseWithClaims(raw, claims, j.keys.KeyfuncCtx(r.Context()), j.parserOpts...); err != nil {
		j.logger.Debug("Токен отклонён",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
		return nil, errors.New("Невалидный или просроченный токен")
	}
	if claims.Subject == "" {
		return nil, errors.New("Отсутствует sub в токене")
	}

	return claims.identity(j.adminGroups, j.readonlyGroups), nil
}

// --- Контекст запроса ---

// WithIdentity помещает субъекта в контекст.
func WithIdentity(ctx context.Context, identity *model.Identity) context.Context {
	if slot, ok := ctx.Value(subjectSlotKey).(*requestSubject); ok {
		slot.value = identity.Subject
	}
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext возвращает субъекта запроса.
// Без аутентификации — анонимный субъект.
func IdentityFromContext(ctx context.Context) *model.Identity {
	if identity, ok := ctx.Value(identityKey).(*model.Identity); ok && identity != nil {
		return identity
	}
	return model.AnonymousIdentity()
}

// requestSubject — субъект, видимый внешним middleware после обработки запроса.
type requestSubject struct {
	value string
}

func withSubjectSlot(ctx context.Context, slot *requestSubject) context.Context {
	return context.WithValue(ctx, subjectSlotKey, slot)
}
