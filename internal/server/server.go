// Пакет server — HTTP-сервер Preservation Module с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на API Gateway.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goartstore/preservation-module/internal/api/errors"
	"github.com/bigkaa/goartstore/preservation-module/internal/config"
)

// Пути, не зависящие от конфигурации.
const (
	ReceiverPath          = "/hooks/receivers/preservation/events"
	ExternalResourcesPath = "/records/{pid}/preservations/external-resources"
)

// Handler — обработчики маршрутов API (реализуется handlers.APIHandler).
type Handler interface {
	HealthLive(w http.ResponseWriter, r *http.Request)
	HealthReady(w http.ResponseWriter, r *http.Request)
	GetMetrics(w http.ResponseWriter, r *http.Request)
	ReceivePreservationEvent(w http.ResponseWriter, r *http.Request)
	ListPreservations(w http.ResponseWriter, r *http.Request)
	LatestPreservation(w http.ResponseWriter, r *http.Request)
	PreservationExternalResources(w http.ResponseWriter, r *http.Request)
}

// Authenticator — JWT middleware (реализуется middleware.JWTAuth).
type Authenticator interface {
	// Middleware — обязательная аутентификация (вебхук).
	Middleware() func(http.Handler) http.Handler
	// OptionalMiddleware — аутентификация при наличии токена (чтение).
	OptionalMiddleware() func(http.Handler) http.Handler
}

// Routes — настраиваемые пути endpoints чтения.
type Routes struct {
	// ListPath — история сохранений (PM_LIST_PATH)
	ListPath string
	// LatestPath — последняя запись (PM_LATEST_PATH)
	LatestPath string
}

// Server — HTTP-сервер Preservation Module.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт новый HTTP-сервер с настроенными routes и middleware.
// middlewares — общие middleware (request id, logging, metrics), добавляются в порядке переданного среза.
func New(
	cfg *config.Config,
	logger *slog.Logger,
	handler Handler,
	auth Authenticator,
	middlewares ...func(http.Handler) http.Handler,
) *Server {
	router := NewRouter(Routes{ListPath: cfg.ListPath, LatestPath: cfg.LatestPath}, handler, auth, middlewares...)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter собирает chi-роутер Preservation Module.
// Health и метрики — без аутентификации, вебхук — обязательный JWT,
// endpoints чтения — необязательный JWT.
func NewRouter(
	routes Routes,
	handler Handler,
	auth Authenticator,
	middlewares ...func(http.Handler) http.Handler,
) chi.Router {
	router := chi.NewRouter()

	for _, mw := range middlewares {
		router.Use(mw)
	}

	router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		apierrors.NotFound(w, "Ресурс не найден")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		apierrors.MethodNotAllowed(w, "Метод не поддерживается")
	})

	router.Get("/health/live", handler.HealthLive)
	router.Get("/health/ready", handler.HealthReady)
	router.Get("/metrics", handler.GetMetrics)

	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware())
		r.Post(ReceiverPath, handler.ReceivePreservationEvent)
	})

	router.Group(func(r chi.Router) {
		r.Use(auth.OptionalMiddleware())
		r.Get(routes.ListPath, handler.ListPreservations)
		r.Get(routes.LatestPath, handler.LatestPreservation)
		r.Get(ExternalResourcesPath, handler.PreservationExternalResources)
	})

	return router
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err, ok := <-errCh:
		if ok && err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
