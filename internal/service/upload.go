// upload.go — оркестратор загрузок: композиция валидации, реестра
// и объектного хранилища для двух потоков загрузки.
//
// Presigned-поток — большие файлы, байты идут от клиента напрямую
// в хранилище мимо сервиса, наличие проверяется при подтверждении.
// Прямой поток — небольшие файлы со строгой серверной валидацией
// содержимого и немедленным подтверждением.
//
// Оркестратор не хранит состояния: брошенные pending-записи убирает
// фоновый sweeper, а не путь обработки неудавшегося запроса.
package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bigkaa/gomediastore/internal/config"
	"github.com/bigkaa/gomediastore/internal/domain/lifecycle"
	"github.com/bigkaa/gomediastore/internal/domain/model"
	"github.com/bigkaa/gomediastore/internal/storage"
)

// UploadRequest — дескриптор загрузки, общий для обоих потоков.
type UploadRequest struct {
	Filename   string
	Category   model.FileCategory
	Visibility model.Visibility
	AthleteID  *string
}

// PresignResult — результат инициации presigned-загрузки.
type PresignResult struct {
	File      *model.MediaFile
	UploadURL string
	// ExpiresIn — срок действия URL в секундах
	ExpiresIn int
}

// UploadService — оркестратор загрузок.
type UploadService struct {
	validation *ValidationService
	registry   *RegistryService
	storage    storage.ObjectStorage
	defaultTTL time.Duration
	maxTTL     time.Duration
	publicURL  string
	logger     *slog.Logger
}

// NewUploadService создаёт оркестратор загрузок.
func NewUploadService(
	validation *ValidationService,
	registry *RegistryService,
	objectStorage storage.ObjectStorage,
	cfg *config.Config,
	logger *slog.Logger,
) *UploadService {
	return &UploadService{
		validation: validation,
		registry:   registry,
		storage:    objectStorage,
		defaultTTL: cfg.PresignDefaultTTL,
		maxTTL:     cfg.PresignMaxTTL,
		publicURL:  cfg.S3PublicURL,
		logger:     logger.With(slog.String("component", "upload_service")),
	}
}

// Presign инициирует presigned-загрузку.
//
//  1. Валидация заявленного дескриптора (содержимого ещё нет).
//  2. Создание pending-записи с назначенным ключом.
//  3. Выдача presigned URL на этот ключ с ограниченным сроком действия.
//
// При сбое выдачи URL pending-запись остаётся: её уберёт sweeper по
// истечении окна подтверждения.
func (s *UploadService) Presign(ctx context.Context, req UploadRequest) (*PresignResult, error) {
	// 1. Валидация дескриптора
	contentType, err := s.validation.ValidateDeclared(req.Filename, req.Category)
	if err != nil {
		return nil, err
	}

	// 2. Pending-запись
	f, err := s.registry.Create(ctx, CreateParams{
		AthleteID:   req.AthleteID,
		Filename:    req.Filename,
		Category:    req.Category,
		ContentType: contentType,
		Visibility:  req.Visibility,
	})
	if err != nil {
		return nil, err
	}

	// 3. Presigned URL загрузки
	uploadURL, err := s.storage.PresignUpload(ctx, f.StorageKey, contentType, s.defaultTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: выдача URL загрузки: %v", ErrStorageUnavailable, err)
	}

	s.logger.Info("Инициирована presigned-загрузка",
		slog.String("file_id", f.FileID),
		slog.String("storage_key", f.StorageKey),
		slog.Int("expires_in", int(s.defaultTTL.Seconds())),
	)

	return &PresignResult{
		File:      f,
		UploadURL: uploadURL,
		ExpiresIn: int(s.defaultTTL.Seconds()),
	}, nil
}

// Direct выполняет прямую загрузку: валидация содержимого, pending-запись,
// запись байтов в хранилище, немедленное подтверждение. Клиент получает
// уже confirmed-запись.
func (s *UploadService) Direct(ctx context.Context, req UploadRequest, data []byte) (*model.MediaFile, error) {
	// 1. Валидация содержимого
	result, err := s.validation.ValidateContent(data, req.Filename, req.Category)
	if err != nil {
		return nil, err
	}

	// 2. Pending-запись с метаданными контента
	f, err := s.registry.Create(ctx, CreateParams{
		AthleteID:       req.AthleteID,
		Filename:        req.Filename,
		Category:        req.Category,
		ContentType:     result.ContentType,
		Visibility:      req.Visibility,
		Width:           result.Width,
		Height:          result.Height,
		DurationSeconds: result.DurationSeconds,
	})
	if err != nil {
		return nil, err
	}

	// 3. Запись байтов
	if err := s.storage.Put(ctx, f.StorageKey, bytes.NewReader(data), result.Size, result.ContentType); err != nil {
		return nil, fmt.Errorf("%w: запись объекта %s: %v", ErrStorageUnavailable, f.StorageKey, err)
	}

	// 4. Подтверждение: head сверит размер с хранилищем
	confirmed, err := s.registry.Confirm(ctx, f.FileID)
	if err != nil {
		return nil, fmt.Errorf("подтверждение прямой загрузки: %w", err)
	}

	s.logger.Info("Прямая загрузка завершена",
		slog.String("file_id", confirmed.FileID),
		slog.Int64("size", result.Size),
		slog.String("content_type", result.ContentType),
	)

	return confirmed, nil
}

// DownloadLink — выданная ссылка скачивания.
type DownloadLink struct {
	URL string
	// ExpiresIn — срок действия в секундах; 0 для постоянных публичных URL
	ExpiresIn int
}

// DownloadURL возвращает ссылку скачивания подтверждённого файла.
// Для public-файлов при настроенном публичном эндпоинте — постоянный
// публичный URL, иначе presigned URL с указанным сроком действия.
// expiry за пределами (0, max] — ошибка валидации; 0 — срок по умолчанию.
func (s *UploadService) DownloadURL(ctx context.Context, fileID string, expiry time.Duration) (*DownloadLink, error) {
	if expiry == 0 {
		expiry = s.defaultTTL
	}
	if expiry < 0 || expiry > s.maxTTL {
		return nil, fmt.Errorf("%w: срок действия URL должен быть в пределах от 1 секунды до %d секунд",
			ErrValidation, int(s.maxTTL.Seconds()))
	}

	f, err := s.registry.Get(ctx, fileID)
	if err != nil {
		return nil, err
	}

	if !lifecycle.CanPerform(f.Status, lifecycle.OpDownload) {
		if f.Status == lifecycle.StatusDeleted {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: загрузка файла не подтверждена", ErrUploadNotFound)
	}

	if f.Visibility == model.VisibilityPublic && s.publicURL != "" {
		return &DownloadLink{URL: s.publicURL + "/" + f.StorageKey}, nil
	}

	disposition := fmt.Sprintf("attachment; filename=%q", f.OriginalFilename)
	url, err := s.storage.PresignDownload(ctx, f.StorageKey, expiry, disposition)
	if err != nil {
		return nil, fmt.Errorf("%w: выдача URL скачивания: %v", ErrStorageUnavailable, err)
	}
	return &DownloadLink{URL: url, ExpiresIn: int(expiry.Seconds())}, nil
}
