// Пакет config — загрузка и валидация конфигурации Preservation Module
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Preservation Module.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (диапазон 8040-8049)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- HTTP Server Timeouts ---

	// Таймаут чтения HTTP-сервера (по умолчанию 30s)
	HTTPReadTimeout time.Duration
	// Таймаут записи HTTP-сервера (по умолчанию 60s)
	HTTPWriteTimeout time.Duration
	// Таймаут простоя HTTP-сервера (по умолчанию 120s)
	HTTPIdleTimeout time.Duration

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	// --- Модуль ---

	// Enabled — приём уведомлений включён (PM_ENABLED)
	Enabled bool
	// ListPath — путь истории сохранений записи, содержит {pid}
	ListPath string
	// LatestPath — путь последнего статуса сохранения, содержит {pid}
	LatestPath string

	// --- JWT ---

	// JWKS endpoint провайдера идентификации
	JWTJWKSURL string
	// Ожидаемый issuer (пусто — не проверяется)
	JWTIssuer string
	// Путь к CA-сертификату для JWKS (опционально)
	JWTCACertPath string
	// Допустимое отклонение времени при проверке JWT (по умолчанию 5s)
	JWTLeeway time.Duration
	// Таймаут HTTP-клиента JWKS (по умолчанию 10s)
	JWKSClientTimeout time.Duration
	// Интервал обновления ключей JWKS (по умолчанию 15s)
	JWKSRefreshInterval time.Duration

	// --- Маппинг групп → ролей ---

	RoleAdminGroups    []string
	RoleReadonlyGroups []string

	// --- Records API (resolver) ---

	// Базовый URL API записей владеющей платформы
	RecordsAPIURL string
	// Token endpoint для client_credentials (по умолчанию {RecordsAPIURL}/auth/token)
	RecordsTokenURL string
	// Client ID Service Account модуля
	RecordsClientID string
	// Client Secret Service Account модуля
	RecordsClientSecret string
	// Путь к CA-сертификату Records API (опционально)
	RecordsCACertPath string
	// Таймаут запросов к Records API (по умолчанию 10s)
	RecordsAPITimeout time.Duration
	// Путь health endpoint Records API для topologymetrics (по умолчанию /health/ready)
	RecordsHealthPath string
	// Размер LRU-кэша PID → запись (по умолчанию 1024)
	ResolverCacheSize int
	// TTL записей кэша resolver (по умолчанию 5m)
	ResolverCacheTTL time.Duration

	// --- External resource (UI) ---

	// Заголовок ссылки на архивную копию
	UITitle string
	// Ссылка вместо URI архивной копии (пусто — URI)
	UILink string
	// URL иконки платформы сохранения (опционально)
	UIIconURL string
	// UILink применяется и к управляющим записью
	UIManagerLinkOverride bool

	// --- Мониторинг зависимостей ---

	// Интервал проверки зависимостей (по умолчанию 15s)
	DephealthCheckInterval time.Duration
	// Логическая группа сервиса в topologymetrics
	DephealthGroup string
	// Зависимости критичны для readiness
	DephealthIsEntry bool

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown (по умолчанию 5s)
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения.
// Возвращает ошибку, если обязательные переменные не заданы
// или значения некорректны.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// PM_PORT — порт HTTP-сервера (по умолчанию 8040)
	cfg.Port, err = getEnvInt("PM_PORT", 8040)
	if err != nil {
		return nil, fmt.Errorf("PM_PORT: %w", err)
	}
	if cfg.Port < 8040 || cfg.Port > 8049 {
		return nil, fmt.Errorf("PM_PORT: значение %d вне допустимого диапазона 8040-8049", cfg.Port)
	}

	// PM_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("PM_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("PM_LOG_LEVEL: %w", err)
	}

	// PM_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("PM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("PM_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- HTTP Server Timeouts ---

	cfg.HTTPReadTimeout, err = getEnvDuration("PM_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PM_HTTP_READ_TIMEOUT: %w", err)
	}
	cfg.HTTPWriteTimeout, err = getEnvDuration("PM_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PM_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("PM_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PM_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	// PM_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("PM_DB_HOST")
	if err != nil {
		return nil, err
	}

	// PM_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("PM_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("PM_DB_PORT: %w", err)
	}

	// PM_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("PM_DB_NAME")
	if err != nil {
		return nil, err
	}

	// PM_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("PM_DB_USER")
	if err != nil {
		return nil, err
	}

	// PM_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("PM_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// PM_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("PM_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("PM_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Модуль ---

	// PM_ENABLED — приём уведомлений (по умолчанию true)
	cfg.Enabled, err = getEnvBool("PM_ENABLED", true)
	if err != nil {
		return nil, fmt.Errorf("PM_ENABLED: %w", err)
	}

	cfg.ListPath = getEnvDefault("PM_LIST_PATH", "/records/{pid}/preservations")
	if err := validatePIDPath(cfg.ListPath); err != nil {
		return nil, fmt.Errorf("PM_LIST_PATH: %w", err)
	}

	cfg.LatestPath = getEnvDefault("PM_LATEST_PATH", "/records/{pid}/preservations/latest")
	if err := validatePIDPath(cfg.LatestPath); err != nil {
		return nil, fmt.Errorf("PM_LATEST_PATH: %w", err)
	}
	if cfg.LatestPath == cfg.ListPath {
		return nil, fmt.Errorf("PM_LATEST_PATH: совпадает с PM_LIST_PATH")
	}

	// --- JWT ---

	// PM_JWT_JWKS_URL — обязательный
	cfg.JWTJWKSURL, err = getEnvRequired("PM_JWT_JWKS_URL")
	if err != nil {
		return nil, err
	}

	cfg.JWTIssuer = getEnvDefault("PM_JWT_ISSUER", "")
	cfg.JWTCACertPath = getEnvDefault("PM_JWT_CA_CERT_PATH", "")

	cfg.JWTLeeway, err = getEnvDuration("PM_JWT_LEEWAY", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PM_JWT_LEEWAY: %w", err)
	}
	cfg.JWKSClientTimeout, err = getEnvDuration("PM_JWKS_CLIENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PM_JWKS_CLIENT_TIMEOUT: %w", err)
	}
	cfg.JWKSRefreshInterval, err = getEnvDuration("PM_JWKS_REFRESH_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PM_JWKS_REFRESH_INTERVAL: %w", err)
	}

	// --- Маппинг групп → ролей ---

	// PM_ROLE_ADMIN_GROUPS — группы для роли admin (по умолчанию "artstore-admins")
	cfg.RoleAdminGroups = parseCSV(getEnvDefault("PM_ROLE_ADMIN_GROUPS", "artstore-admins"))

	// PM_ROLE_READONLY_GROUPS — группы для роли readonly (по умолчанию "artstore-viewers")
	cfg.RoleReadonlyGroups = parseCSV(getEnvDefault("PM_ROLE_READONLY_GROUPS", "artstore-viewers"))

	// --- Records API ---

	// PM_RECORDS_API_URL — обязательный
	cfg.RecordsAPIURL, err = getEnvRequired("PM_RECORDS_API_URL")
	if err != nil {
		return nil, err
	}
	cfg.RecordsAPIURL = strings.TrimRight(cfg.RecordsAPIURL, "/")

	cfg.RecordsTokenURL = getEnvDefault("PM_RECORDS_TOKEN_URL", cfg.RecordsAPIURL+"/auth/token")

	// PM_RECORDS_CLIENT_ID — обязательный
	cfg.RecordsClientID, err = getEnvRequired("PM_RECORDS_CLIENT_ID")
	if err != nil {
		return nil, err
	}

	// PM_RECORDS_CLIENT_SECRET — обязательный
	cfg.RecordsClientSecret, err = getEnvRequired("PM_RECORDS_CLIENT_SECRET")
	if err != nil {
		return nil, err
	}

	cfg.RecordsCACertPath = getEnvDefault("PM_RECORDS_CA_CERT_PATH", "")

	cfg.RecordsAPITimeout, err = getEnvDurationPositive("PM_RECORDS_API_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PM_RECORDS_API_TIMEOUT: %w", err)
	}

	cfg.RecordsHealthPath = getEnvDefault("PM_RECORDS_HEALTH_PATH", "/health/ready")

	// PM_RESOLVER_CACHE_SIZE — размер кэша (по умолчанию 1024)
	cfg.ResolverCacheSize, err = getEnvInt("PM_RESOLVER_CACHE_SIZE", 1024)
	if err != nil {
		return nil, fmt.Errorf("PM_RESOLVER_CACHE_SIZE: %w", err)
	}
	if cfg.ResolverCacheSize < 1 || cfg.ResolverCacheSize > 1_000_000 {
		return nil, fmt.Errorf("PM_RESOLVER_CACHE_SIZE: значение %d вне допустимого диапазона 1-1000000", cfg.ResolverCacheSize)
	}

	cfg.ResolverCacheTTL, err = getEnvDurationPositive("PM_RESOLVER_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("PM_RESOLVER_CACHE_TTL: %w", err)
	}

	// --- External resource (UI) ---

	cfg.UITitle = getEnvDefault("PM_UI_TITLE", "Preservation Platform")
	cfg.UILink = getEnvDefault("PM_UI_LINK", "")
	cfg.UIIconURL = getEnvDefault("PM_UI_ICON_URL", "")
	cfg.UIManagerLinkOverride, err = getEnvBool("PM_UI_MANAGER_LINK_OVERRIDE", true)
	if err != nil {
		return nil, fmt.Errorf("PM_UI_MANAGER_LINK_OVERRIDE: %w", err)
	}

	// --- Мониторинг зависимостей ---

	cfg.DephealthCheckInterval, err = getEnvDuration("PM_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}
	cfg.DephealthGroup = getEnvDefault("PM_DEPHEALTH_GROUP", "artstore")
	cfg.DephealthIsEntry, err = getEnvBool("PM_DEPHEALTH_ISENTRY", false)
	if err != nil {
		return nil, fmt.Errorf("PM_DEPHEALTH_ISENTRY: %w", err)
	}

	// --- Graceful shutdown ---

	// PM_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("PM_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PM_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL (формат key=value для pgxpool).
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL подключения к PostgreSQL (формат postgres://).
// Используется dephealth и golang-migrate.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// getEnvDurationPositive — как getEnvDuration, но значение должно быть > 0.
func getEnvDurationPositive(key string, defaultVal time.Duration) (time.Duration, error) {
	d, err := getEnvDuration(key, defaultVal)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("значение должно быть > 0")
	}
	return d, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q (допустимые: true, false, 1, 0)", val)
	}
	return b, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// validatePIDPath проверяет, что путь абсолютный и содержит ровно один параметр {pid}.
func validatePIDPath(path string) error {
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("путь %q должен начинаться с /", path)
	}
	if strings.Count(path, "{pid}") != 1 {
		return fmt.Errorf("путь %q должен содержать ровно один параметр {pid}", path)
	}
	return nil
}
