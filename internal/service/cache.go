// cache.go — LRU-кэш метаданных медиафайлов с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable. Снимает нагрузку с PostgreSQL
// на горячем пути стриминга: каждый запрос диапазона начинается с чтения
// метаданных файла.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/gomediastore/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ms_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш метаданных.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ms_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша метаданных.",
	})
)

// CacheService — LRU-кэш метаданных файлов с автоматическим TTL.
// Каждый экземпляр media-service имеет собственный in-memory кэш
// (per-instance, stateless архитектура).
type CacheService struct {
	cache *expirable.LRU[string, *model.MediaFile]
}

// NewCacheService создаёт LRU-кэш с указанным максимальным размером и TTL.
// maxSize — максимальное количество записей в кэше.
// ttl — время жизни записи после добавления.
func NewCacheService(maxSize int, ttl time.Duration) *CacheService {
	cache := expirable.NewLRU[string, *model.MediaFile](maxSize, nil, ttl)
	return &CacheService{cache: cache}
}

// Get возвращает MediaFile из кэша по fileID.
// Возвращает (запись, true) при hit или (nil, false) при miss.
// Обновляет Prometheus-метрики hit/miss.
func (c *CacheService) Get(fileID string) (*model.MediaFile, bool) {
	val, ok := c.cache.Get(fileID)
	if ok {
		cacheHitsTotal.Inc()
		return val, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет запись в кэше.
func (c *CacheService) Set(fileID string, file *model.MediaFile) {
	c.cache.Add(fileID, file)
}

// Delete удаляет запись из кэша.
// Инвалидация при изменении статуса и при lazy cleanup.
func (c *CacheService) Delete(fileID string) {
	c.cache.Remove(fileID)
}
