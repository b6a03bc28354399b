// metrics.go — Prometheus HTTP метрики media-service.
// Регистрирует метрики: ms_http_requests_total, ms_http_request_duration_seconds.
// Нормализация путей предотвращает взрывной рост кардинальности.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики media-service
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ms_http_requests_total",
			Help: "Общее количество HTTP-запросов к media-service",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ms_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к media-service в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик
			// (заменяем UUID на {id} для предотвращения кардинальности)
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Длина текстового представления UUID в сегментах пути.
const uuidLen = 36

// normalizePath заменяет UUID-сегменты пути на {id} для предотвращения
// взрывного роста кардинальности метрик.
// /api/v1/files/a1b2c3d4-... → /api/v1/files/{id}
// /api/v1/files/a1b2c3d4-.../confirm → /api/v1/files/{id}/confirm
// /stream/a1b2c3d4-.../video → /stream/{id}/video
func normalizePath(path string) string {
	// Статические пути — возвращаем как есть
	switch path {
	case "/health/live", "/health/ready", "/metrics",
		"/api/v1/openapi.yaml", "/api/v1/files", "/api/v1/athletes",
		"/api/v1/files/upload/presigned", "/api/v1/files/upload/direct":
		return path
	}

	// Динамические пути с UUID
	const filesPrefix = "/api/v1/files/"
	if len(path) > len(filesPrefix) && path[:len(filesPrefix)] == filesPrefix {
		suffix := ""
		if len(path) > len(filesPrefix)+uuidLen {
			suffix = path[len(filesPrefix)+uuidLen:]
		}
		switch suffix {
		case "/confirm":
			return "/api/v1/files/{id}/confirm"
		case "/download":
			return "/api/v1/files/{id}/download"
		case "/presigned-url":
			return "/api/v1/files/{id}/presigned-url"
		default:
			return "/api/v1/files/{id}"
		}
	}

	const athletesPrefix = "/api/v1/athletes/"
	if len(path) > len(athletesPrefix) && path[:len(athletesPrefix)] == athletesPrefix {
		return "/api/v1/athletes/{id}"
	}

	const streamPrefix = "/stream/"
	if len(path) > len(streamPrefix)+uuidLen && path[:len(streamPrefix)] == streamPrefix {
		switch path[len(streamPrefix)+uuidLen:] {
		case "/video":
			return "/stream/{id}/video"
		case "/image":
			return "/stream/{id}/image"
		case "/raw":
			return "/stream/{id}/raw"
		case "/info":
			return "/stream/{id}/info"
		}
	}

	return path
}
