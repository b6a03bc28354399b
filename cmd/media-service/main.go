// Точка входа Media Service — сервис хранения и раздачи медиафайлов
// спортсменов. Загружает конфигурацию, применяет миграции, подключается
// к PostgreSQL и S3-хранилищу, создаёт сервисный слой и API handlers,
// запускает фоновую очистку брошенных загрузок, topologymetrics и
// HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/gomediastore/internal/api"
	"github.com/bigkaa/gomediastore/internal/api/handlers"
	"github.com/bigkaa/gomediastore/internal/api/middleware"
	"github.com/bigkaa/gomediastore/internal/config"
	"github.com/bigkaa/gomediastore/internal/database"
	"github.com/bigkaa/gomediastore/internal/repository"
	"github.com/bigkaa/gomediastore/internal/server"
	"github.com/bigkaa/gomediastore/internal/service"
	"github.com/bigkaa/gomediastore/internal/storage"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Media Service запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// 3. Валидация встроенной OpenAPI-спецификации.
	// Повреждённый контракт — ошибка сборки, падаем сразу.
	ctx := context.Background()
	if _, err := api.Spec(ctx); err != nil {
		logger.Error("Ошибка валидации OpenAPI-спецификации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 5. Подключение к PostgreSQL (pgxpool)
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 5.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode).
	// Проверка здоровья PostgreSQL идёт через существующий пул соединений,
	// что позволяет обнаружить его исчерпание.
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 6. Подключение к S3-хранилищу
	objectStorage, err := storage.NewMinioStorage(ctx, storage.MinioConfig{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
		UseSSL:    cfg.S3UseSSL,
		Region:    cfg.S3Region,
	}, logger)
	if err != nil {
		logger.Error("Ошибка подключения к S3-хранилищу",
			slog.String("endpoint", cfg.S3Endpoint),
			slog.String("bucket", cfg.S3Bucket),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// 7. Repositories
	fileRepo := repository.NewFileRepository(pool)
	athleteRepo := repository.NewAthleteRepository(pool)

	// 8. Services
	cache := service.NewCacheService(cfg.CacheSize, cfg.CacheTTL)
	validationSvc := service.NewValidationService(cfg, logger)
	registrySvc := service.NewRegistryService(fileRepo, athleteRepo, objectStorage, cache, logger)
	uploadSvc := service.NewUploadService(validationSvc, registrySvc, objectStorage, cfg, logger)
	streamSvc := service.NewStreamingService(registrySvc, objectStorage, cfg.StreamChunkSize, logger)

	// 9. Фоновая очистка брошенных pending-загрузок
	sweeperSvc := service.NewSweeperService(
		fileRepo, objectStorage, cache,
		cfg.SweepInterval, cfg.AbandonWindow,
		logger,
	)
	sweeperSvc.Start(ctx)

	// 10. Readiness checkers (PostgreSQL + S3)
	pgChecker := database.NewReadinessChecker(pool)
	s3Checker := storage.NewReadinessChecker(objectStorage)
	healthHandler := handlers.NewHealthHandler(pgChecker, s3Checker)

	// 11. API handlers
	filesHandler := handlers.NewFilesHandler(uploadSvc, registrySvc, cfg.MaxFileSize, logger)
	athletesHandler := handlers.NewAthletesHandler(athleteRepo, logger)
	streamHandler := handlers.NewStreamHandler(streamSvc, logger)

	// 12. JWT middleware (опционально, если MS_AUTH_ENABLED=true)
	var jwtAuth *middleware.JWTAuth
	if cfg.AuthEnabled {
		jwtAuth, err = middleware.NewJWTAuth(middleware.JWTAuthConfig{
			JWKSURL:         cfg.JWKSUrl,
			CACertPath:      cfg.JWKSCACert,
			ClientTimeout:   cfg.JWKSClientTimeout,
			RefreshInterval: cfg.JWKSRefreshInterval,
			JWTLeeway:       cfg.JWTLeeway,
		}, logger)
		if err != nil {
			logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer jwtAuth.Close()
		logger.Info("JWT middleware инициализирован", slog.String("jwks_url", cfg.JWKSUrl))
	} else {
		logger.Info("Аутентификация отключена (MS_AUTH_ENABLED=false)")
	}

	// 13. topologymetrics — мониторинг зависимостей (PostgreSQL + S3)
	var dephealthSvc *service.DephealthService
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"media-service",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL(),
		cfg.S3URL(),
		cfg.DephealthCheckInterval,
		cfg.DephealthIsEntry,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 14. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, server.Handlers{
		Files:    filesHandler,
		Athletes: athletesHandler,
		Stream:   streamHandler,
		Health:   healthHandler,
	}, jwtAuth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 15. Graceful shutdown фоновых задач
	logger.Info("Останавливаем фоновые задачи...")

	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}
	sweeperSvc.Stop()

	logger.Info("Media Service остановлен")
}
