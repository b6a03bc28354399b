// registry.go — реестр медиафайлов: единственный владелец записей
// media_files и переходов их жизненного цикла.
//
// Подтверждение загрузки сверяется с объектным хранилищем (head), а не
// полагается на слово клиента: confirmed-запись всегда соответствует
// реально существующему объекту с ненулевым размером.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/gomediastore/internal/domain/lifecycle"
	"github.com/bigkaa/gomediastore/internal/domain/model"
	"github.com/bigkaa/gomediastore/internal/repository"
	"github.com/bigkaa/gomediastore/internal/storage"
)

// CreateParams — дескриптор новой записи файла.
type CreateParams struct {
	AthleteID       *string
	Filename        string
	Category        model.FileCategory
	ContentType     string
	Visibility      model.Visibility
	Width           *int
	Height          *int
	DurationSeconds *float64
}

// RegistryService — реестр медиафайлов.
type RegistryService struct {
	fileRepo    repository.FileRepository
	athleteRepo repository.AthleteRepository
	storage     storage.ObjectStorage
	cache       *CacheService
	logger      *slog.Logger
}

// NewRegistryService создаёт реестр медиафайлов.
func NewRegistryService(
	fileRepo repository.FileRepository,
	athleteRepo repository.AthleteRepository,
	objectStorage storage.ObjectStorage,
	cache *CacheService,
	logger *slog.Logger,
) *RegistryService {
	return &RegistryService{
		fileRepo:    fileRepo,
		athleteRepo: athleteRepo,
		storage:     objectStorage,
		cache:       cache,
		logger:      logger.With(slog.String("component", "registry_service")),
	}
}

// Create создаёт запись файла в статусе pending и назначает ключ хранилища.
// Ключ назначается ровно один раз и никогда не переиспользуется другой
// записью. Если указан атлет, проверяется его существование.
func (s *RegistryService) Create(ctx context.Context, p CreateParams) (*model.MediaFile, error) {
	if p.AthleteID != nil {
		if _, err := s.athleteRepo.GetByID(ctx, *p.AthleteID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: атлет '%s' не найден", ErrValidation, *p.AthleteID)
			}
			return nil, fmt.Errorf("проверка атлета: %w", err)
		}
	}

	visibility := p.Visibility
	if visibility == "" {
		visibility = model.VisibilityPrivate
	}

	f := &model.MediaFile{
		FileID:           uuid.New().String(),
		AthleteID:        p.AthleteID,
		StorageKey:       storage.BuildKey(p.AthleteID, p.Filename, p.ContentType, time.Now().UTC()),
		OriginalFilename: p.Filename,
		Category:         p.Category,
		ContentType:      p.ContentType,
		Visibility:       visibility,
		Status:           lifecycle.StatusPending,
		Width:            p.Width,
		Height:           p.Height,
		DurationSeconds:  p.DurationSeconds,
	}

	if err := s.fileRepo.Create(ctx, f); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: запись файла уже существует", ErrConflict)
		}
		return nil, fmt.Errorf("создание записи файла: %w", err)
	}

	s.logger.Info("Создана запись файла",
		slog.String("file_id", f.FileID),
		slog.String("storage_key", f.StorageKey),
		slog.String("category", string(f.Category)),
	)

	return f, nil
}

// Confirm переводит запись pending → confirmed после проверки наличия
// объекта в хранилище. Размер и content type фиксируются из хранилища,
// а не из заявленных клиентом значений.
//
// Идемпотентен: повторное подтверждение confirmed-записи возвращает её
// без обращения к хранилищу. Отсутствующий или пустой объект —
// ErrUploadNotFound, запись остаётся pending.
func (s *RegistryService) Confirm(ctx context.Context, fileID string) (*model.MediaFile, error) {
	f, err := s.fileRepo.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение записи файла: %w", err)
	}

	// Повторное подтверждение — идемпотентный успех
	if f.Status == lifecycle.StatusConfirmed {
		return f, nil
	}
	if err := lifecycle.Transition(f.Status, lifecycle.StatusConfirmed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	info, err := s.storage.Head(ctx, f.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: ключ %s", ErrUploadNotFound, f.StorageKey)
		}
		return nil, fmt.Errorf("%w: head %s: %v", ErrStorageUnavailable, f.StorageKey, err)
	}
	if info.Size == 0 {
		return nil, fmt.Errorf("%w: объект %s пустой", ErrUploadNotFound, f.StorageKey)
	}

	confirmed, err := s.fileRepo.ConfirmUpload(ctx, fileID, info.Size, normalizeContentType(info.ContentType))
	if err != nil {
		if errors.Is(err, repository.ErrInvalidState) {
			// Конкурентное удаление выиграло переход
			return nil, fmt.Errorf("%w: %v", ErrConflict, err)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("подтверждение загрузки: %w", err)
	}

	s.cache.Set(confirmed.FileID, confirmed)

	s.logger.Info("Загрузка подтверждена",
		slog.String("file_id", confirmed.FileID),
		slog.Int64("size", info.Size),
		slog.String("content_type", confirmed.ContentType),
	)

	return confirmed, nil
}

// Get возвращает запись файла по ID, включая soft-deleted.
// Метаданные удалённых записей остаются адресуемыми до purge.
func (s *RegistryService) Get(ctx context.Context, fileID string) (*model.MediaFile, error) {
	if f, ok := s.cache.Get(fileID); ok {
		return f, nil
	}

	f, err := s.fileRepo.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение записи файла: %w", err)
	}

	s.cache.Set(fileID, f)
	return f, nil
}

// List возвращает файлы по фильтрам с пагинацией и общее количество.
func (s *RegistryService) List(ctx context.Context, filters repository.FileListFilters, sortBy, sortOrder string, limit, offset int) ([]*model.MediaFile, int, error) {
	files, total, err := s.fileRepo.List(ctx, filters, sortBy, sortOrder, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("получение списка файлов: %w", err)
	}
	return files, total, nil
}

// UpdateMetadata изменяет мутируемые поля записи: видимость, описательные
// метаданные, привязку к атлету. Ключ хранилища и идентификатор неизменяемы.
func (s *RegistryService) UpdateMetadata(ctx context.Context, fileID string, upd repository.FileUpdate) (*model.MediaFile, error) {
	if upd.AthleteID != nil {
		if _, err := s.athleteRepo.GetByID(ctx, *upd.AthleteID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: атлет '%s' не найден", ErrValidation, *upd.AthleteID)
			}
			return nil, fmt.Errorf("проверка атлета: %w", err)
		}
	}

	f, err := s.fileRepo.UpdateMetadata(ctx, fileID, upd)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrNotFound
		case errors.Is(err, repository.ErrInvalidState):
			return nil, fmt.Errorf("%w: файл удалён", ErrInvalidState)
		}
		return nil, fmt.Errorf("обновление метаданных: %w", err)
	}

	s.cache.Set(fileID, f)

	s.logger.Info("Метаданные файла обновлены", slog.String("file_id", fileID))
	return f, nil
}

// SoftDelete помечает запись удалённой. Объект в хранилище не трогается,
// запись скрывается из выдачи и раздачи. Идемпотентен.
func (s *RegistryService) SoftDelete(ctx context.Context, fileID string) error {
	if err := s.fileRepo.SoftDelete(ctx, fileID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("soft delete файла: %w", err)
	}

	s.cache.Delete(fileID)

	s.logger.Info("Файл помечен как удалённый", slog.String("file_id", fileID))
	return nil
}

// Purge необратимо удаляет запись вместе с объектом хранилища.
// Допустим из любого статуса. Сначала удаляется объект (идемпотентно),
// затем запись: при сбое на втором шаге повторный purge доудалит строку.
func (s *RegistryService) Purge(ctx context.Context, fileID string) error {
	f, err := s.fileRepo.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("получение записи файла: %w", err)
	}

	if err := s.storage.Delete(ctx, f.StorageKey); err != nil {
		return fmt.Errorf("%w: удаление объекта %s: %v", ErrStorageUnavailable, f.StorageKey, err)
	}

	if err := s.fileRepo.PurgeRow(ctx, fileID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Конкурентный purge уже удалил строку
			s.cache.Delete(fileID)
			return nil
		}
		return fmt.Errorf("удаление записи файла: %w", err)
	}

	s.cache.Delete(fileID)

	s.logger.Info("Файл удалён безвозвратно",
		slog.String("file_id", fileID),
		slog.String("storage_key", f.StorageKey),
	)

	return nil
}

// MarkMissing помечает запись удалённой, когда объект исчез из хранилища
// (lazy cleanup на пути чтения).
func (s *RegistryService) MarkMissing(ctx context.Context, fileID string) {
	if err := s.fileRepo.MarkDeleted(ctx, fileID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Error("Не удалось пометить файл с отсутствующим объектом",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
		return
	}

	s.cache.Delete(fileID)

	s.logger.Warn("Объект отсутствует в хранилище, запись помечена удалённой",
		slog.String("file_id", fileID),
	)
}
