// streaming.go — движок раздачи байтов медиафайлов.
// Полный pipeline: метаданные (кэш/БД) → разбор Range → поток из объектного
// хранилища → chunked copy клиенту. Ленивая очистка при отсутствии объекта.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/gomediastore/internal/domain/lifecycle"
	"github.com/bigkaa/gomediastore/internal/domain/model"
	"github.com/bigkaa/gomediastore/internal/storage"
)

// Prometheus-метрики стриминга.
var (
	streamsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ms_streams_total",
		Help: "Общее количество запросов стриминга (по статусу).",
	}, []string{"status"})

	streamDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ms_stream_duration_seconds",
		Help:    "Длительность стриминга (от запроса до завершения передачи).",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	})

	streamBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ms_stream_bytes_total",
		Help: "Общее количество переданных байт при стриминге.",
	})

	activeStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ms_active_streams",
		Help: "Количество активных (in-progress) стримов.",
	})

	lazyCleanupTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ms_lazy_cleanup_total",
		Help: "Количество операций lazy cleanup (объект отсутствует в хранилище).",
	})
)

// byteRange — разобранный диапазон байт, границы включающие.
type byteRange struct {
	start int64
	end   int64
}

// StreamingService — движок раздачи байтов медиафайлов.
type StreamingService struct {
	registry  *RegistryService
	storage   storage.ObjectStorage
	chunkSize int
	logger    *slog.Logger
}

// NewStreamingService создаёт движок раздачи.
// chunkSize — размер буфера chunked copy в байтах.
func NewStreamingService(
	registry *RegistryService,
	objectStorage storage.ObjectStorage,
	chunkSize int,
	logger *slog.Logger,
) *StreamingService {
	return &StreamingService{
		registry:  registry,
		storage:   objectStorage,
		chunkSize: chunkSize,
		logger:    logger.With(slog.String("component", "streaming_service")),
	}
}

// ChunkSize возвращает размер chunk'а раздачи в байтах.
func (s *StreamingService) ChunkSize() int {
	return s.chunkSize
}

// Stream отдаёт байты файла клиенту с поддержкой Range-запросов.
//
// Pipeline:
//  1. Получить метаданные файла (кэш или БД), проверить статус и категорию
//  2. Разобрать Range-заголовок против полного размера объекта
//  3. Открыть поток из хранилища: весь объект или диапазон
//  4. Если объект отсутствует → lazy cleanup (mark deleted + invalidate cache)
//  5. Сформировать рамку ответа (200/206/416) и выполнить chunked copy
//
// want ограничивает категорию файла (эндпоинты видео и изображений);
// пустое значение пропускает любую категорию.
func (s *StreamingService) Stream(ctx context.Context, w http.ResponseWriter, fileID, rangeHeader string, want model.FileCategory) error {
	started := time.Now()
	activeStreams.Inc()
	defer activeStreams.Dec()

	// 1. Метаданные и проверки доступности
	f, err := s.lookup(ctx, fileID, want)
	if err != nil {
		streamsTotal.WithLabelValues("not_found").Inc()
		return err
	}
	total := *f.Size

	// 2. Разбор диапазона
	rng, err := parseRange(rangeHeader, total)
	if err != nil {
		// Диапазон целиком за пределами объекта: 416 с указанием полного
		// размера, чтобы клиент мог повторить запрос корректно
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", total))
		w.Header().Set("Accept-Ranges", "bytes")
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		streamsTotal.WithLabelValues("range_not_satisfiable").Inc()
		s.logger.Debug("Неудовлетворимый диапазон",
			slog.String("file_id", fileID),
			slog.String("range", rangeHeader),
			slog.Int64("size", total),
		)
		return nil
	}

	// 3. Поток из хранилища
	var body io.ReadCloser
	if rng == nil {
		body, err = s.storage.Get(ctx, f.StorageKey)
	} else {
		body, err = s.storage.GetRange(ctx, f.StorageKey, rng.start, rng.end)
	}
	if err != nil {
		// 4. Объект исчез из хранилища → lazy cleanup
		if errors.Is(err, storage.ErrObjectNotFound) {
			lazyCleanupTotal.Inc()
			s.registry.MarkMissing(ctx, fileID)
			streamsTotal.WithLabelValues("lazy_cleanup").Inc()
			return ErrNotFound
		}
		streamsTotal.WithLabelValues("storage_error").Inc()
		return fmt.Errorf("%w: открытие потока %s: %v", ErrStorageUnavailable, f.StorageKey, err)
	}
	defer body.Close()

	// 5. Рамка ответа и передача байтов
	s.writeMediaHeaders(w, f)
	if rng == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(total, 10))
		w.WriteHeader(http.StatusOK)
	} else {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", rng.start, rng.end, total))
		w.Header().Set("Content-Length", strconv.FormatInt(rng.end-rng.start+1, 10))
		w.WriteHeader(http.StatusPartialContent)
	}

	buf := make([]byte, s.chunkSize)
	written, err := io.CopyBuffer(w, body, buf)
	if err != nil {
		// Заголовки уже отправлены — клиенту ошибку не вернуть, только лог.
		// Обрыв соединения клиентом попадает сюда же.
		s.logger.Debug("Стриминг прерван",
			slog.String("file_id", fileID),
			slog.Int64("bytes_written", written),
			slog.String("error", err.Error()),
		)
		streamsTotal.WithLabelValues("stream_error").Inc()
		return nil
	}

	duration := time.Since(started)
	streamsTotal.WithLabelValues("success").Inc()
	streamDuration.Observe(duration.Seconds())
	streamBytesTotal.Add(float64(written))

	s.logger.Debug("Стриминг завершён",
		slog.String("file_id", fileID),
		slog.Int64("bytes", written),
		slog.Duration("duration", duration),
		slog.Bool("partial", rng != nil),
	)

	return nil
}

// Info возвращает метаданные файла для эндпоинта /stream/info.
// Доступно только для подтверждённых файлов.
func (s *StreamingService) Info(ctx context.Context, fileID string) (*model.MediaFile, error) {
	return s.lookup(ctx, fileID, "")
}

// lookup получает запись файла и проверяет, что раздача допустима:
// статус confirmed, размер известен, категория соответствует запрошенной.
func (s *StreamingService) lookup(ctx context.Context, fileID string, want model.FileCategory) (*model.MediaFile, error) {
	f, err := s.registry.Get(ctx, fileID)
	if err != nil {
		return nil, err
	}

	if want != "" && f.Category != want {
		return nil, ErrNotFound
	}

	if !lifecycle.CanPerform(f.Status, lifecycle.OpStream) {
		if f.Status == lifecycle.StatusDeleted {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: загрузка файла не подтверждена", ErrUploadNotFound)
	}
	if f.Size == nil {
		return nil, fmt.Errorf("%w: размер файла неизвестен", ErrUploadNotFound)
	}

	return f, nil
}

// writeMediaHeaders формирует заголовки раздачи по категории файла.
// Изображения кэшируются сутки, видео — час, прочее не кэшируется.
func (s *StreamingService) writeMediaHeaders(w http.ResponseWriter, f *model.MediaFile) {
	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.OriginalFilename))

	switch f.Category {
	case model.CategoryImage:
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Header().Set("X-Content-Type-Options", "nosniff")
	case model.CategoryVideo:
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("X-Content-Type-Options", "nosniff")
	}
}

// parseRange разбирает заголовок Range. Поддерживается единственный
// диапазон в формах bytes=a-b, bytes=a- и bytes=-N.
//
// Возвращает (nil, nil) для отсутствующего или синтаксически
// нераспознанного заголовка — в этом случае отдаётся полный объект.
// Диапазон, начинающийся за пределами объекта, — ErrRangeNotSatisfiable.
// Конец за пределами объекта усекается до последнего байта.
func parseRange(header string, size int64) (*byteRange, error) {
	if header == "" {
		return nil, nil
	}

	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return nil, nil
	}
	// Множественные диапазоны не поддерживаются — отдаётся полный объект
	if strings.Contains(spec, ",") {
		return nil, nil
	}

	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok {
		return nil, nil
	}
	startStr = strings.TrimSpace(startStr)
	endStr = strings.TrimSpace(endStr)

	// bytes=-N — последние N байт объекта
	if startStr == "" {
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n < 0 {
			return nil, nil
		}
		start := size - n
		if start < 0 {
			start = 0
		}
		if start >= size {
			return nil, ErrRangeNotSatisfiable
		}
		return &byteRange{start: start, end: size - 1}, nil
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return nil, nil
	}
	if start >= size {
		return nil, ErrRangeNotSatisfiable
	}

	end := size - 1
	if endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < start {
			return nil, nil
		}
		if end > size-1 {
			end = size - 1
		}
	}

	return &byteRange{start: start, end: end}, nil
}
