// sweeper.go — фоновая очистка брошенных загрузок.
//
// Pending-запись без подтверждения живёт не дольше окна MS_ABANDON_WINDOW:
// sweeper удаляет и запись, и частично загруженные байты из хранилища
// (pending → purge, минуя confirmed). Брошенные записи убираются только
// здесь, асинхронно — путь обработки неудавшегося запроса их не трогает.
//
// Запускается как горутина с периодическим тикером (MS_SWEEP_INTERVAL).
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/gomediastore/internal/repository"
	"github.com/bigkaa/gomediastore/internal/storage"
)

// Размер пачки pending-записей за одну итерацию.
const sweepBatchSize = 500

// Prometheus метрики sweeper'а.
var (
	sweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ms_sweep_runs_total",
		Help: "Общее количество запусков очистки брошенных загрузок",
	})

	sweepPurgedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ms_sweep_purged_total",
		Help: "Общее количество удалённых брошенных загрузок",
	})

	sweepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ms_sweep_duration_seconds",
		Help:    "Длительность одного цикла очистки в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// SweepResult — результат одного цикла очистки.
type SweepResult struct {
	// PurgedCount — количество удалённых брошенных загрузок
	PurgedCount int
	// Errors — количество ошибок при обработке записей
	Errors int
	// Duration — длительность выполнения
	Duration time.Duration
}

// SweeperService — фоновая очистка брошенных pending-записей.
type SweeperService struct {
	fileRepo repository.FileRepository
	storage  storage.ObjectStorage
	cache    *CacheService
	interval time.Duration
	window   time.Duration
	logger   *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
}

// NewSweeperService создаёт sweeper.
// interval — период между циклами, 0 отключает фоновый запуск.
// window — возраст pending-записи, после которого загрузка считается брошенной.
func NewSweeperService(
	fileRepo repository.FileRepository,
	objectStorage storage.ObjectStorage,
	cache *CacheService,
	interval, window time.Duration,
	logger *slog.Logger,
) *SweeperService {
	return &SweeperService{
		fileRepo: fileRepo,
		storage:  objectStorage,
		cache:    cache,
		interval: interval,
		window:   window,
		logger:   logger.With(slog.String("component", "sweeper")),
	}
}

// Start запускает фоновую горутину с периодическим тикером.
// Вызывается один раз при старте приложения.
func (sw *SweeperService) Start(ctx context.Context) {
	if sw.interval <= 0 {
		sw.logger.Info("Очистка брошенных загрузок отключена (MS_SWEEP_INTERVAL=0)")
		return
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	sw.cancel = cancel

	go sw.run(sweepCtx)

	sw.logger.Info("Очистка брошенных загрузок запущена",
		slog.String("interval", sw.interval.String()),
		slog.String("window", sw.window.String()),
	)
}

// Stop останавливает фоновый процесс.
func (sw *SweeperService) Stop() {
	if sw.cancel != nil {
		sw.cancel()
	}
	sw.logger.Info("Очистка брошенных загрузок остановлена")
}

// run — основной цикл фоновой горутины.
func (sw *SweeperService) run(ctx context.Context) {
	// Первый запуск — сразу после старта
	sw.RunOnce(ctx)

	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sw.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один цикл очистки.
// Потокобезопасен: mutex защищает от параллельного запуска.
//
// Порядок для каждой записи: сначала условное удаление записи (только
// пока она pending), затем удаление объекта. Если клиент успел
// подтвердить загрузку между выборкой и удалением, запись сменила статус,
// условие не сработает и байты подтверждённого файла останутся целы.
func (sw *SweeperService) RunOnce(ctx context.Context) *SweepResult {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	start := time.Now()
	result := &SweepResult{}

	olderThan := time.Now().UTC().Add(-sw.window)

	for {
		stale, err := sw.fileRepo.ListStalePending(ctx, olderThan, sweepBatchSize)
		if err != nil {
			sw.logger.Error("Ошибка выборки брошенных загрузок",
				slog.String("error", err.Error()),
			)
			result.Errors++
			break
		}
		if len(stale) == 0 {
			break
		}

		purgedBatch := 0
		for _, f := range stale {
			purged, err := sw.purgeOne(ctx, f.FileID, f.StorageKey)
			if err != nil {
				result.Errors++
				continue
			}
			if purged {
				result.PurgedCount++
				purgedBatch++
			}
		}

		if len(stale) < sweepBatchSize {
			break
		}
		// Полная пачка без единого удаления: записи с ошибками остались
		// pending и вернулись бы той же выборкой. Оставляем их следующему циклу.
		if purgedBatch == 0 {
			break
		}
	}

	result.Duration = time.Since(start)

	sweepRunsTotal.Inc()
	sweepPurgedTotal.Add(float64(result.PurgedCount))
	sweepDurationSeconds.Observe(result.Duration.Seconds())

	sw.logger.Info("Очистка брошенных загрузок завершена",
		slog.Int("purged", result.PurgedCount),
		slog.Int("errors", result.Errors),
		slog.Duration("duration", result.Duration),
	)

	return result
}

// purgeOne удаляет одну брошенную загрузку: запись, объект, кэш.
// Возвращает false без ошибки, если запись уже не pending.
func (sw *SweeperService) purgeOne(ctx context.Context, fileID, storageKey string) (bool, error) {
	err := sw.fileRepo.PurgeStalePending(ctx, fileID)
	if errors.Is(err, repository.ErrNotFound) {
		sw.logger.Debug("Запись уже не pending, пропускаем",
			slog.String("file_id", fileID),
		)
		return false, nil
	}
	if err != nil {
		sw.logger.Error("Ошибка удаления записи брошенной загрузки",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
		return false, err
	}

	// Запись удалена, объект больше никому не принадлежит.
	// Delete идемпотентен: байты могли вообще не дойти до хранилища.
	if err := sw.storage.Delete(ctx, storageKey); err != nil {
		sw.logger.Error("Ошибка удаления объекта брошенной загрузки",
			slog.String("file_id", fileID),
			slog.String("storage_key", storageKey),
			slog.String("error", err.Error()),
		)
		return false, err
	}

	sw.cache.Delete(fileID)

	sw.logger.Debug("Брошенная загрузка удалена",
		slog.String("file_id", fileID),
		slog.String("storage_key", storageKey),
	)

	return true, nil
}
