// Пакет config — загрузка и валидация конфигурации media-service
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации media-service.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (диапазон 8040-8049)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймаут чтения запроса
	ReadTimeout time.Duration
	// Таймаут записи ответа (0 — без таймаута, потоковая отдача больших файлов)
	WriteTimeout time.Duration
	// Таймаут простоя keep-alive соединений
	IdleTimeout time.Duration
	// Путь к TLS-сертификату (опционально, вместе с MS_TLS_KEY)
	TLSCert string
	// Путь к приватному ключу TLS (опционально, вместе с MS_TLS_CERT)
	TLSKey string

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- S3-хранилище ---

	// Endpoint S3-совместимого хранилища (host:port, без схемы)
	S3Endpoint string
	// Access key S3
	S3AccessKey string
	// Secret key S3
	S3SecretKey string
	// Имя bucket для медиафайлов
	S3Bucket string
	// Использовать TLS при подключении к S3
	S3UseSSL bool
	// Регион S3
	S3Region string
	// Публичный базовый URL хранилища для redirect-скачивания (опционально)
	S3PublicURL string

	// --- Валидация файлов ---

	// Максимальный размер файла в байтах
	MaxFileSize int64
	// Максимальная ширина/высота изображения в пикселях
	MaxImageDimension int
	// Допустимые MIME-типы изображений
	AllowedImageTypes []string
	// Допустимые MIME-типы видео
	AllowedVideoTypes []string

	// --- Presigned URL ---

	// TTL presigned URL по умолчанию
	PresignDefaultTTL time.Duration
	// Максимальный TTL presigned URL
	PresignMaxTTL time.Duration

	// --- Кэш метаданных ---

	// Размер LRU-кэша (количество записей)
	CacheSize int
	// TTL записи в кэше
	CacheTTL time.Duration

	// --- Стриминг ---

	// Размер блока при потоковой передаче, байт
	StreamChunkSize int

	// --- Фоновая очистка ---

	// Интервал запуска очистки (0 — очистка отключена)
	SweepInterval time.Duration
	// Возраст pending-записи, после которого загрузка считается брошенной
	AbandonWindow time.Duration

	// --- JWT / JWKS ---

	// Включена ли проверка JWT (при false запросы не аутентифицируются)
	AuthEnabled bool
	// URL JWKS endpoint (обязателен при AuthEnabled)
	JWKSUrl string
	// Путь к CA-сертификату для JWKS endpoint (опционально)
	JWKSCACert string
	// Таймаут HTTP-клиента JWKS
	JWKSClientTimeout time.Duration
	// Интервал обновления JWKS-ключей
	JWKSRefreshInterval time.Duration
	// Допустимое отклонение времени при проверке JWT
	JWTLeeway time.Duration

	// --- Dephealth ---

	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Имя группы в метриках topologymetrics
	DephealthGroup string
	// Помечать зависимости лейблом isentry=yes
	DephealthIsEntry bool

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
// Файл .env, если присутствует, подхватывается до чтения окружения.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	var err error

	// --- Сервер ---

	// MS_PORT — порт HTTP-сервера (по умолчанию 8040)
	cfg.Port, err = getEnvInt("MS_PORT", 8040)
	if err != nil {
		return nil, fmt.Errorf("MS_PORT: %w", err)
	}
	if cfg.Port < 8040 || cfg.Port > 8049 {
		return nil, fmt.Errorf("MS_PORT: значение %d вне допустимого диапазона 8040-8049", cfg.Port)
	}

	// MS_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("MS_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("MS_LOG_LEVEL: %w", err)
	}

	// MS_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("MS_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("MS_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// MS_READ_TIMEOUT — таймаут чтения запроса (по умолчанию 30s)
	cfg.ReadTimeout, err = getEnvDuration("MS_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MS_READ_TIMEOUT: %w", err)
	}

	// MS_WRITE_TIMEOUT — таймаут записи ответа (по умолчанию 0: отдача
	// больших видео по медленному каналу не должна обрываться сервером)
	cfg.WriteTimeout, err = getEnvDuration("MS_WRITE_TIMEOUT", 0)
	if err != nil {
		return nil, fmt.Errorf("MS_WRITE_TIMEOUT: %w", err)
	}

	// MS_IDLE_TIMEOUT — таймаут keep-alive (по умолчанию 120s)
	cfg.IdleTimeout, err = getEnvDuration("MS_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MS_IDLE_TIMEOUT: %w", err)
	}

	// MS_TLS_CERT / MS_TLS_KEY — опциональная пара, либо оба, либо ни одного
	cfg.TLSCert = getEnvDefault("MS_TLS_CERT", "")
	cfg.TLSKey = getEnvDefault("MS_TLS_KEY", "")
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return nil, fmt.Errorf("MS_TLS_CERT и MS_TLS_KEY должны задаваться вместе")
	}

	// --- PostgreSQL ---

	// MS_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("MS_DB_HOST")
	if err != nil {
		return nil, err
	}

	// MS_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("MS_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("MS_DB_PORT: %w", err)
	}

	// MS_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("MS_DB_NAME")
	if err != nil {
		return nil, err
	}

	// MS_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("MS_DB_USER")
	if err != nil {
		return nil, err
	}

	// MS_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("MS_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// MS_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("MS_DB_SSL_MODE", "disable")
	switch cfg.DBSSLMode {
	case "disable", "require", "verify-ca", "verify-full":
	default:
		return nil, fmt.Errorf(
			"MS_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full",
			cfg.DBSSLMode)
	}

	// --- S3-хранилище ---

	// MS_S3_ENDPOINT — обязательный
	cfg.S3Endpoint, err = getEnvRequired("MS_S3_ENDPOINT")
	if err != nil {
		return nil, err
	}

	// MS_S3_ACCESS_KEY — обязательный
	cfg.S3AccessKey, err = getEnvRequired("MS_S3_ACCESS_KEY")
	if err != nil {
		return nil, err
	}

	// MS_S3_SECRET_KEY — обязательный
	cfg.S3SecretKey, err = getEnvRequired("MS_S3_SECRET_KEY")
	if err != nil {
		return nil, err
	}

	// MS_S3_BUCKET — обязательный
	cfg.S3Bucket, err = getEnvRequired("MS_S3_BUCKET")
	if err != nil {
		return nil, err
	}

	// MS_S3_USE_SSL — TLS при подключении к S3 (по умолчанию true)
	cfg.S3UseSSL, err = getEnvBool("MS_S3_USE_SSL", true)
	if err != nil {
		return nil, fmt.Errorf("MS_S3_USE_SSL: %w", err)
	}

	// MS_S3_REGION — регион S3 (по умолчанию us-east-1)
	cfg.S3Region = getEnvDefault("MS_S3_REGION", "us-east-1")

	// MS_S3_PUBLIC_URL — публичный базовый URL хранилища (опционально)
	cfg.S3PublicURL = strings.TrimRight(getEnvDefault("MS_S3_PUBLIC_URL", ""), "/")

	// --- Валидация файлов ---

	// MS_MAX_FILE_SIZE — максимальный размер файла (по умолчанию 100 MiB)
	cfg.MaxFileSize, err = getEnvInt64("MS_MAX_FILE_SIZE", 104857600)
	if err != nil {
		return nil, fmt.Errorf("MS_MAX_FILE_SIZE: %w", err)
	}
	if cfg.MaxFileSize <= 0 {
		return nil, fmt.Errorf("MS_MAX_FILE_SIZE: значение должно быть положительным, получено %d", cfg.MaxFileSize)
	}

	// MS_MAX_IMAGE_DIMENSION — максимальная сторона изображения (по умолчанию 10000)
	cfg.MaxImageDimension, err = getEnvInt("MS_MAX_IMAGE_DIMENSION", 10000)
	if err != nil {
		return nil, fmt.Errorf("MS_MAX_IMAGE_DIMENSION: %w", err)
	}
	if cfg.MaxImageDimension <= 0 {
		return nil, fmt.Errorf("MS_MAX_IMAGE_DIMENSION: значение должно быть положительным, получено %d",
			cfg.MaxImageDimension)
	}

	// MS_ALLOWED_IMAGE_TYPES — допустимые MIME-типы изображений
	cfg.AllowedImageTypes = parseCSV(getEnvDefault("MS_ALLOWED_IMAGE_TYPES",
		"image/jpeg,image/png,image/webp,image/gif"))
	if len(cfg.AllowedImageTypes) == 0 {
		return nil, fmt.Errorf("MS_ALLOWED_IMAGE_TYPES: список не может быть пустым")
	}

	// MS_ALLOWED_VIDEO_TYPES — допустимые MIME-типы видео
	cfg.AllowedVideoTypes = parseCSV(getEnvDefault("MS_ALLOWED_VIDEO_TYPES",
		"video/mp4,video/x-msvideo,video/avi,video/quicktime,video/x-ms-wmv,video/webm"))
	if len(cfg.AllowedVideoTypes) == 0 {
		return nil, fmt.Errorf("MS_ALLOWED_VIDEO_TYPES: список не может быть пустым")
	}

	// --- Presigned URL ---

	// MS_PRESIGN_DEFAULT_TTL — TTL presigned URL по умолчанию (1h)
	cfg.PresignDefaultTTL, err = getEnvDuration("MS_PRESIGN_DEFAULT_TTL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("MS_PRESIGN_DEFAULT_TTL: %w", err)
	}

	// MS_PRESIGN_MAX_TTL — максимальный TTL presigned URL (24h)
	cfg.PresignMaxTTL, err = getEnvDuration("MS_PRESIGN_MAX_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("MS_PRESIGN_MAX_TTL: %w", err)
	}
	if cfg.PresignDefaultTTL <= 0 || cfg.PresignMaxTTL <= 0 {
		return nil, fmt.Errorf("MS_PRESIGN_DEFAULT_TTL и MS_PRESIGN_MAX_TTL должны быть положительными")
	}
	if cfg.PresignDefaultTTL > cfg.PresignMaxTTL {
		return nil, fmt.Errorf("MS_PRESIGN_DEFAULT_TTL (%s) превышает MS_PRESIGN_MAX_TTL (%s)",
			cfg.PresignDefaultTTL, cfg.PresignMaxTTL)
	}

	// --- Кэш метаданных ---

	// MS_CACHE_SIZE — размер LRU-кэша (по умолчанию 1000)
	cfg.CacheSize, err = getEnvInt("MS_CACHE_SIZE", 1000)
	if err != nil {
		return nil, fmt.Errorf("MS_CACHE_SIZE: %w", err)
	}
	if cfg.CacheSize <= 0 {
		return nil, fmt.Errorf("MS_CACHE_SIZE: значение должно быть положительным, получено %d", cfg.CacheSize)
	}

	// MS_CACHE_TTL — TTL записи в кэше (по умолчанию 5m)
	cfg.CacheTTL, err = getEnvDuration("MS_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("MS_CACHE_TTL: %w", err)
	}

	// --- Стриминг ---

	// MS_STREAM_CHUNK_SIZE — размер блока потоковой передачи (по умолчанию 8192)
	cfg.StreamChunkSize, err = getEnvInt("MS_STREAM_CHUNK_SIZE", 8192)
	if err != nil {
		return nil, fmt.Errorf("MS_STREAM_CHUNK_SIZE: %w", err)
	}
	if cfg.StreamChunkSize <= 0 {
		return nil, fmt.Errorf("MS_STREAM_CHUNK_SIZE: значение должно быть положительным, получено %d",
			cfg.StreamChunkSize)
	}

	// --- Фоновая очистка ---

	// MS_SWEEP_INTERVAL — интервал очистки (по умолчанию 1h, 0 отключает)
	cfg.SweepInterval, err = getEnvDuration("MS_SWEEP_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("MS_SWEEP_INTERVAL: %w", err)
	}

	// MS_ABANDON_WINDOW — возраст брошенной pending-загрузки (по умолчанию 24h)
	cfg.AbandonWindow, err = getEnvDuration("MS_ABANDON_WINDOW", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("MS_ABANDON_WINDOW: %w", err)
	}
	if cfg.AbandonWindow <= 0 {
		return nil, fmt.Errorf("MS_ABANDON_WINDOW: значение должно быть положительным, получено %s",
			cfg.AbandonWindow)
	}

	// --- JWT / JWKS ---

	// MS_AUTH_ENABLED — проверка JWT (по умолчанию false)
	cfg.AuthEnabled, err = getEnvBool("MS_AUTH_ENABLED", false)
	if err != nil {
		return nil, fmt.Errorf("MS_AUTH_ENABLED: %w", err)
	}

	// MS_JWKS_URL — обязателен только при включённой аутентификации
	cfg.JWKSUrl = getEnvDefault("MS_JWKS_URL", "")
	if cfg.AuthEnabled && cfg.JWKSUrl == "" {
		return nil, fmt.Errorf("MS_JWKS_URL: обязателен при MS_AUTH_ENABLED=true")
	}

	// MS_JWKS_CA_CERT — путь к CA-сертификату для JWKS endpoint (опционально)
	cfg.JWKSCACert = getEnvDefault("MS_JWKS_CA_CERT", "")

	// MS_JWKS_CLIENT_TIMEOUT — таймаут HTTP-клиента JWKS (по умолчанию 10s)
	cfg.JWKSClientTimeout, err = getEnvDuration("MS_JWKS_CLIENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MS_JWKS_CLIENT_TIMEOUT: %w", err)
	}

	// MS_JWKS_REFRESH_INTERVAL — интервал обновления JWKS-ключей (по умолчанию 1h)
	cfg.JWKSRefreshInterval, err = getEnvDuration("MS_JWKS_REFRESH_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("MS_JWKS_REFRESH_INTERVAL: %w", err)
	}

	// MS_JWT_LEEWAY — допуск рассинхронизации часов при проверке JWT (по умолчанию 30s)
	cfg.JWTLeeway, err = getEnvDuration("MS_JWT_LEEWAY", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MS_JWT_LEEWAY: %w", err)
	}

	// --- Dephealth ---

	// MS_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("MS_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MS_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// MS_DEPHEALTH_GROUP — имя группы в метриках (по умолчанию media)
	cfg.DephealthGroup = getEnvDefault("MS_DEPHEALTH_GROUP", "media")

	// DEPHEALTH_ISENTRY — общий для SDK флаг точки входа (по умолчанию false)
	cfg.DephealthIsEntry, err = getEnvBool("DEPHEALTH_ISENTRY", false)
	if err != nil {
		return nil, fmt.Errorf("DEPHEALTH_ISENTRY: %w", err)
	}

	// --- Graceful shutdown ---

	// MS_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 30s)
	cfg.ShutdownTimeout, err = getEnvDuration("MS_SHUTDOWN_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MS_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате key=value.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL подключения к PostgreSQL.
// Используется для лейблов dephealth, пароль не включается.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s@%s:%d/%s", c.DBUser, c.DBHost, c.DBPort, c.DBName)
}

// S3URL возвращает URL объектного хранилища со схемой.
// Используется для проверки здоровья S3 через dephealth.
func (c *Config) S3URL() string {
	scheme := "http"
	if c.S3UseSSL {
		scheme = "https"
	}
	return scheme + "://" + c.S3Endpoint
}

// TLSEnabled сообщает, настроен ли сервер на обслуживание по TLS.
func (c *Config) TLSEnabled() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
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

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
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
