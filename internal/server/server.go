// Пакет server — HTTP-сервер media-service с TLS и graceful shutdown.
// Маршруты собираются вручную: системные endpoints открыты, файловые,
// атлетские и streaming-группы закрываются JWT-аутентификацией, когда
// она включена конфигурацией.
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/bigkaa/gomediastore/internal/api"
	"github.com/bigkaa/gomediastore/internal/api/handlers"
	"github.com/bigkaa/gomediastore/internal/api/middleware"
	"github.com/bigkaa/gomediastore/internal/config"
)

// Server — HTTP-сервер media-service.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// Handlers — обработчики, монтируемые на маршруты сервера.
type Handlers struct {
	Files    *handlers.FilesHandler
	Athletes *handlers.AthletesHandler
	Stream   *handlers.StreamHandler
	Health   *handlers.HealthHandler
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
// jwtAuth — nil, когда аутентификация выключена (MS_AUTH_ENABLED=false):
// в этом случае маршруты монтируются без проверки токена и scope.
func New(cfg *config.Config, logger *slog.Logger, h Handlers, jwtAuth *middleware.JWTAuth) *Server {
	router := chi.NewRouter()

	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.MetricsMiddleware())
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Range"},
		// Плеерам в браузере нужны заголовки Range-ответов
		ExposedHeaders: []string{"Content-Range", "Accept-Ranges", "Content-Length"},
		MaxAge:         300,
	}))

	authn := noopMiddleware
	requireRead := noopMiddleware
	requireWrite := noopMiddleware
	if jwtAuth != nil {
		authn = jwtAuth.Middleware()
		requireRead = middleware.RequireScope(middleware.ScopeMediaRead)
		requireWrite = middleware.RequireScope(middleware.ScopeMediaWrite)
	}

	// Системные endpoints — без аутентификации
	router.Get("/health/live", h.Health.HealthLive)
	router.Get("/health/ready", h.Health.HealthReady)
	router.Get("/metrics", h.Health.GetMetrics)
	router.Get("/api/v1/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(api.SpecYAML())
	})

	// Реестр файлов и потоки загрузки
	router.Route("/api/v1/files", func(r chi.Router) {
		r.Use(authn)
		r.With(requireWrite).Post("/upload/presigned", h.Files.PresignUpload)
		r.With(requireWrite).Post("/upload/direct", h.Files.DirectUpload)
		r.With(requireRead).Get("/", h.Files.ListFiles)
		r.Route("/{id}", func(r chi.Router) {
			r.With(requireRead).Get("/", h.Files.GetFile)
			r.With(requireWrite).Patch("/", h.Files.UpdateFile)
			r.With(requireWrite).Delete("/", h.Files.DeleteFile)
			r.With(requireWrite).Post("/confirm", h.Files.ConfirmUpload)
			r.With(requireRead).Get("/download", h.Files.DownloadFile)
			r.With(requireRead).Get("/presigned-url", h.Files.GetPresignedURL)
		})
	})

	// Реестр спортсменов
	router.Route("/api/v1/athletes", func(r chi.Router) {
		r.Use(authn)
		r.With(requireWrite).Post("/", h.Athletes.CreateAthlete)
		r.With(requireRead).Get("/", h.Athletes.ListAthletes)
		r.Route("/{id}", func(r chi.Router) {
			r.With(requireRead).Get("/", h.Athletes.GetAthlete)
			r.With(requireWrite).Patch("/", h.Athletes.UpdateAthlete)
			r.With(requireWrite).Delete("/", h.Athletes.DeleteAthlete)
		})
	})

	// Потоковая раздача
	router.Route("/stream/{id}", func(r chi.Router) {
		r.Use(authn)
		r.With(requireRead).Get("/video", h.Stream.StreamVideo)
		r.With(requireRead).Get("/image", h.Stream.StreamImage)
		r.With(requireRead).Get("/raw", h.Stream.StreamRaw)
		r.With(requireRead).Get("/info", h.Stream.StreamInfo)
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
		// WriteTimeout 0 не ограничивает длительность ответа:
		// стриминг больших видео может идти дольше любого фиксированного таймаута
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Настройка TLS
	if cfg.TLSEnabled() {
		srv.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// noopMiddleware пропускает запрос без изменений.
func noopMiddleware(next http.Handler) http.Handler {
	return next
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown с таймаутом
// MS_SHUTDOWN_TIMEOUT.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
			slog.Bool("tls", s.cfg.TLSEnabled()),
		)

		var err error
		if s.cfg.TLSEnabled() {
			err = s.httpServer.ListenAndServeTLS(s.cfg.TLSCert, s.cfg.TLSKey)
		} else {
			err = s.httpServer.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
