// Пакет resolver — клиент Records API владеющей платформы.
// Разрешает внешний PID во внутреннюю запись: UUID, уровень доступа, владельцы.
package resolver

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/bigkaa/goartstore/preservation-module/internal/domain/model"
)

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pm_resolver_cache_hits_total",
		Help: "Попадания в кэш разрешения PID.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pm_resolver_cache_misses_total",
		Help: "Промахи кэша разрешения PID.",
	})
)

const defaultCacheSize = 1024

// Config — параметры клиента Records API.
type Config struct {
	// APIURL — базовый URL Records API
	APIURL string
	// TokenURL — token endpoint (пусто — {APIURL}/auth/token)
	TokenURL     string
	ClientID     string
	ClientSecret string //nolint:gosec // G101: поле конфигурации
	// CACertPath — CA-сертификат (пусто — системный пул)
	CACertPath string
	Timeout    time.Duration
	CacheSize  int
	CacheTTL   time.Duration
}

// Client — resolver PID → запись с LRU-кэшем.
// Отрицательные ответы не кэшируются.
type Client struct {
	apiURL string
	// plain — без авторизации (health), api — с SA-токеном
	plain  *http.Client
	api    *http.Client
	tokens *tokenSource
	cache  *expirable.LRU[string, *model.Record]
	logger *slog.Logger
}

// New создаёт клиент Records API.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.CACertPath != "" {
		pool, err := loadCertPool(cfg.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("CA-сертификат Records API: %w", err)
		}
		transport.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
		logger.Info("CA-сертификат Records API добавлен в пул доверия",
			slog.String("ca_cert", cfg.CACertPath),
		)
	}
	plain := &http.Client{Timeout: cfg.Timeout, Transport: transport}

	apiURL := strings.TrimRight(cfg.APIURL, "/")
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = apiURL + "/auth/token"
	}

	// Token endpoint запрашивается тем же клиентом: таймаут и пул доверия общие
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, plain)
	tokens := newTokenSource(tokenCtx, &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	})

	size := cfg.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}

	return &Client{
		apiURL: apiURL,
		plain:  plain,
		api: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: &oauth2.Transport{Source: tokens, Base: transport},
		},
		tokens: tokens,
		cache:  expirable.NewLRU[string, *model.Record](size, nil, cfg.CacheTTL),
		logger: logger.With(slog.String("component", "records_resolver")),
	}, nil
}

// Resolve разрешает PID в запись.
// 404 от Records API оборачивает model.ErrRecordNotFound, остальные сбои — нет.
func (c *Client) Resolve(ctx context.Context, pid string) (*model.Record, error) {
	if rec, ok := c.cache.Get(pid); ok {
		cacheHitsTotal.Inc()
		return rec, nil
	}
	cacheMissesTotal.Inc()

	rec, err := c.fetch(ctx, pid)
	if err != nil {
		return nil, err
	}
	c.cache.Add(pid, rec)
	return rec, nil
}

// Invalidate удаляет PID из кэша.
func (c *Client) Invalidate(pid string) {
	c.cache.Remove(pid)
}

// fetch — GET {api}/api/records/{pid}.
func (c *Client) fetch(ctx context.Context, pid string) (*model.Record, error) {
	reqURL := c.apiURL + "/api/records/" + url.PathEscape(pid)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("запрос записи %s: %w", pid, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.api.Do(req) //nolint:gosec // G107: URL из конфигурации
	if err != nil {
		return nil, fmt.Errorf("Records API: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", model.ErrRecordNotFound, pid)
	case http.StatusUnauthorized:
		c.tokens.reset()
		c.logger.Warn("Records API отклонил SA-токен, токен сброшен", slog.String("pid", pid))
		return nil, fmt.Errorf("Records API отклонил SA-токен для PID %s", pid)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("Records API вернул статус %d для PID %s: %s", resp.StatusCode, pid, body)
	}

	var rec model.Record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("ответ Records API для PID %s: %w", pid, err)
	}
	if _, err := uuid.Parse(rec.ID); err != nil {
		return nil, fmt.Errorf("некорректный id записи %q для PID %s: %w", rec.ID, pid, err)
	}
	if rec.PID == "" {
		rec.PID = pid
	}
	return &rec, nil
}

func loadCertPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pool, err := x509.SystemCertPool()
	if err != nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("%s не содержит PEM-сертификатов", path)
	}
	return pool, nil
}
