// Точка входа Preservation Module — приём уведомлений внешней платформы
// долговременного сохранения и выдача истории сохранений записей.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// создаёт resolver Records API, сервисный слой и API handlers,
// запускает topologymetrics и HTTP-сервер с JWT middleware.
package main

import (
	"context"
	"log/slog"
	"os"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/goartstore/preservation-module/internal/api/handlers"
	"github.com/bigkaa/goartstore/preservation-module/internal/api/middleware"
	"github.com/bigkaa/goartstore/preservation-module/internal/api/validation"
	"github.com/bigkaa/goartstore/preservation-module/internal/config"
	"github.com/bigkaa/goartstore/preservation-module/internal/database"
	"github.com/bigkaa/goartstore/preservation-module/internal/permission"
	"github.com/bigkaa/goartstore/preservation-module/internal/repository"
	"github.com/bigkaa/goartstore/preservation-module/internal/resolver"
	"github.com/bigkaa/goartstore/preservation-module/internal/server"
	"github.com/bigkaa/goartstore/preservation-module/internal/service"
)

const serviceID = "preservation-module"

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Preservation Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.Bool("enabled", cfg.Enabled),
	)

	if os.Getenv("PM_DEPHEALTH_GROUP") == "" {
		logger.Warn("PM_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Resolver PID → запись (Records API)
	resolverClient, err := resolver.New(resolver.Config{
		APIURL:       cfg.RecordsAPIURL,
		TokenURL:     cfg.RecordsTokenURL,
		ClientID:     cfg.RecordsClientID,
		ClientSecret: cfg.RecordsClientSecret,
		CACertPath:   cfg.RecordsCACertPath,
		Timeout:      cfg.RecordsAPITimeout,
		CacheSize:    cfg.ResolverCacheSize,
		CacheTTL:     cfg.ResolverCacheTTL,
	}, logger)
	if err != nil {
		logger.Error("Ошибка создания клиента Records API", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 6. Repositories
	preservationRepo := repository.NewPreservationRepository(pool)
	eventRepo := repository.NewEventRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	// 7. Services
	preservationSvc := service.NewPreservationService(
		preservationRepo, txRunner,
		resolverClient, permission.NewPolicy(),
		cfg.Enabled,
		service.UIConfig{
			Title:               cfg.UITitle,
			Link:                cfg.UILink,
			IconURL:             cfg.UIIconURL,
			ManagerLinkOverride: cfg.UIManagerLinkOverride,
		},
		logger,
	)

	// 8. Валидатор тел запросов по OpenAPI контракту
	validator, err := validation.New(ctx)
	if err != nil {
		logger.Error("Ошибка загрузки OpenAPI контракта", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 9. Readiness checkers
	keycloakChecker, err := middleware.NewKeycloakReadinessChecker(
		cfg.JWTJWKSURL, cfg.JWTCACertPath, cfg.JWKSClientTimeout,
	)
	if err != nil {
		logger.Error("Ошибка создания Keycloak readiness checker", slog.String("error", err.Error()))
		os.Exit(1)
	}
	healthHandler := handlers.NewHealthHandler(
		database.NewReadinessChecker(pool),
		resolverClient.NewReadinessChecker(cfg.RecordsHealthPath),
		keycloakChecker,
	)

	// 10. API handler
	apiHandler := handlers.NewAPIHandler(healthHandler, preservationSvc, eventRepo, validator, logger)

	// 11. JWT middleware
	jwtAuth, err := middleware.NewJWTAuth(middleware.JWTConfig{
		JWKSURL:         cfg.JWTJWKSURL,
		CACertPath:      cfg.JWTCACertPath,
		Issuer:          cfg.JWTIssuer,
		AdminGroups:     cfg.RoleAdminGroups,
		ReadonlyGroups:  cfg.RoleReadonlyGroups,
		ClientTimeout:   cfg.JWKSClientTimeout,
		RefreshInterval: cfg.JWKSRefreshInterval,
		Leeway:          cfg.JWTLeeway,
	}, logger)
	if err != nil {
		logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 12. topologymetrics (опционально: при ошибке сервис работает без мониторинга)
	dephealthSvc, err := service.NewDephealthService(service.DephealthConfig{
		ServiceID:         serviceID,
		Group:             cfg.DephealthGroup,
		PgConnURL:         cfg.DatabaseURL(),
		RecordsAPIURL:     cfg.RecordsAPIURL,
		RecordsHealthPath: cfg.RecordsHealthPath,
		CheckInterval:     cfg.DephealthCheckInterval,
		IsEntry:           cfg.DephealthIsEntry,
	}, pgDB, logger)
	if err != nil {
		logger.Warn("Ошибка создания topologymetrics, мониторинг зависимостей отключён",
			slog.String("error", err.Error()),
		)
		dephealthSvc = nil
	}
	if dephealthSvc != nil {
		if err := dephealthSvc.Start(ctx); err != nil {
			logger.Warn("Ошибка запуска topologymetrics", slog.String("error", err.Error()))
			dephealthSvc = nil
		}
	}

	// 13. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, jwtAuth,
		chimw.RequestID,
		chimw.Recoverer,
		middleware.RequestLogger(logger),
		middleware.MetricsMiddleware(),
	)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 14. Остановка фоновых задач
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Preservation Module остановлен")
}
