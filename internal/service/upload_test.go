package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/bigkaa/gomediastore/internal/config"
	"github.com/bigkaa/gomediastore/internal/domain/lifecycle"
	"github.com/bigkaa/gomediastore/internal/domain/model"
	"github.com/bigkaa/gomediastore/internal/repository"
	"github.com/bigkaa/gomediastore/internal/storage"
)

// newTestUpload создаёт оркестратор загрузок с моками.
func newTestUpload(fileRepo repository.FileRepository, st storage.ObjectStorage, publicURL string) *UploadService {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	cfg := &config.Config{
		MaxFileSize:       10 << 20,
		MaxImageDimension: 10000,
		AllowedImageTypes: []string{"image/jpeg", "image/png", "image/webp", "image/gif"},
		AllowedVideoTypes: []string{"video/mp4", "video/quicktime", "video/webm"},
		PresignDefaultTTL: time.Hour,
		PresignMaxTTL:     24 * time.Hour,
		S3PublicURL:       publicURL,
	}
	validation := NewValidationService(cfg, logger)
	registry := NewRegistryService(fileRepo, &mockAthleteRepo{}, st, NewCacheService(100, time.Minute), logger)
	return NewUploadService(validation, registry, st, cfg, logger)
}

func TestUploadService_Presign(t *testing.T) {
	var created *model.MediaFile
	repo := &mockFileRepo{
		createFn: func(_ context.Context, f *model.MediaFile) error {
			created = f
			return nil
		},
	}

	var presignedKey, presignedCT string
	st := &mockStorage{
		presignUploadFn: func(_ context.Context, key, contentType string, expiry time.Duration) (string, error) {
			presignedKey = key
			presignedCT = contentType
			if expiry != time.Hour {
				t.Errorf("expiry = %v, ожидался 1h", expiry)
			}
			return "https://s3.test/upload/" + key, nil
		},
	}

	svc := newTestUpload(repo, st, "")

	result, err := svc.Presign(context.Background(), UploadRequest{
		Filename: "photo.jpg",
		Category: model.CategoryImage,
	})
	if err != nil {
		t.Fatalf("Presign: %v", err)
	}

	if created == nil {
		t.Fatal("pending-запись не создана")
	}
	if created.Status != lifecycle.StatusPending {
		t.Errorf("Status = %s, ожидался pending", created.Status)
	}
	if presignedKey != created.StorageKey {
		t.Errorf("URL выдан на ключ %q, запись создана с ключом %q", presignedKey, created.StorageKey)
	}
	if presignedCT != "image/jpeg" {
		t.Errorf("content type в presigned URL = %q, ожидался image/jpeg", presignedCT)
	}
	if result.ExpiresIn != 3600 {
		t.Errorf("ExpiresIn = %d, ожидался 3600", result.ExpiresIn)
	}
	if result.UploadURL == "" {
		t.Error("UploadURL пустой")
	}
}

func TestUploadService_Presign_BadExtension(t *testing.T) {
	createCalled := false
	repo := &mockFileRepo{
		createFn: func(_ context.Context, _ *model.MediaFile) error {
			createCalled = true
			return nil
		},
	}

	svc := newTestUpload(repo, &mockStorage{}, "")

	_, err := svc.Presign(context.Background(), UploadRequest{
		Filename: "archive.zip",
		Category: model.CategoryImage,
	})
	if err == nil {
		t.Fatal("ожидалась ошибка валидации")
	}
	if !errors.Is(err, ErrValidation) {
		t.Errorf("ошибка не является ErrValidation: %v", err)
	}
	if createCalled {
		t.Error("запись не должна создаваться для отклонённого дескриптора")
	}
}

func TestUploadService_Direct(t *testing.T) {
	data := encodePNG(t, 16, 9)

	var stored *model.MediaFile
	repo := &mockFileRepo{
		createFn: func(_ context.Context, f *model.MediaFile) error {
			stored = f
			return nil
		},
		getByIDFn: func(_ context.Context, id string) (*model.MediaFile, error) {
			if stored != nil && stored.FileID == id {
				return stored, nil
			}
			return nil, repository.ErrNotFound
		},
		confirmUploadFn: func(_ context.Context, _ string, size int64, contentType string) (*model.MediaFile, error) {
			confirmed := *stored
			confirmed.Status = lifecycle.StatusConfirmed
			confirmed.Size = &size
			confirmed.ContentType = contentType
			return &confirmed, nil
		},
	}

	var putData []byte
	st := &mockStorage{
		putFn: func(_ context.Context, _ string, r io.Reader, size int64, contentType string) error {
			var err error
			putData, err = io.ReadAll(r)
			if err != nil {
				return err
			}
			if size != int64(len(putData)) {
				t.Errorf("заявленный размер %d не совпадает с фактическим %d", size, len(putData))
			}
			if contentType != "image/png" {
				t.Errorf("content type = %q, ожидался image/png", contentType)
			}
			return nil
		},
		headFn: func(_ context.Context, key string) (*storage.ObjectInfo, error) {
			return &storage.ObjectInfo{Key: key, Size: int64(len(putData)), ContentType: "image/png"}, nil
		},
	}

	svc := newTestUpload(repo, st, "")

	f, err := svc.Direct(context.Background(), UploadRequest{
		Filename: "logo.png",
		Category: model.CategoryImage,
	}, data)
	if err != nil {
		t.Fatalf("Direct: %v", err)
	}

	if f.Status != lifecycle.StatusConfirmed {
		t.Errorf("Status = %s, ожидался confirmed", f.Status)
	}
	if f.Size == nil || *f.Size != int64(len(data)) {
		t.Errorf("Size = %v, ожидался %d", f.Size, len(data))
	}
	if len(putData) != len(data) {
		t.Errorf("в хранилище записано %d байт, ожидалось %d", len(putData), len(data))
	}
	if stored.Width == nil || *stored.Width != 16 {
		t.Errorf("Width = %v, ожидался 16", stored.Width)
	}
}

func TestUploadService_Direct_ValidationRejects(t *testing.T) {
	createCalled := false
	putCalled := false

	repo := &mockFileRepo{
		createFn: func(_ context.Context, _ *model.MediaFile) error {
			createCalled = true
			return nil
		},
	}
	st := &mockStorage{
		putFn: func(_ context.Context, _ string, _ io.Reader, _ int64, _ string) error {
			putCalled = true
			return nil
		},
	}

	svc := newTestUpload(repo, st, "")

	_, err := svc.Direct(context.Background(), UploadRequest{
		Filename: "note.txt",
		Category: model.CategoryImage,
	}, []byte("это не изображение"))
	if err == nil {
		t.Fatal("ожидалась ошибка валидации")
	}
	if !errors.Is(err, ErrValidation) {
		t.Errorf("ошибка не является ErrValidation: %v", err)
	}
	if createCalled {
		t.Error("запись не должна создаваться для отклонённого содержимого")
	}
	if putCalled {
		t.Error("объект не должен записываться в хранилище")
	}
}

func TestUploadService_Direct_StorageFailure(t *testing.T) {
	confirmCalled := false
	repo := &mockFileRepo{
		confirmUploadFn: func(_ context.Context, _ string, _ int64, _ string) (*model.MediaFile, error) {
			confirmCalled = true
			return nil, nil
		},
	}
	st := &mockStorage{
		putFn: func(_ context.Context, _ string, _ io.Reader, _ int64, _ string) error {
			return errors.New("connection refused")
		},
	}

	svc := newTestUpload(repo, st, "")

	_, err := svc.Direct(context.Background(), UploadRequest{
		Filename: "logo.png",
		Category: model.CategoryImage,
	}, encodePNG(t, 4, 4))
	if err == nil {
		t.Fatal("ожидалась ошибка недоступности хранилища")
	}
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("ошибка не является ErrStorageUnavailable: %v", err)
	}
	if confirmCalled {
		t.Error("подтверждение не должно вызываться при сбое записи")
	}
}

func TestUploadService_DownloadURL_Private(t *testing.T) {
	size := int64(1024)
	repo := &mockFileRepo{
		getByIDFn: func(_ context.Context, _ string) (*model.MediaFile, error) {
			return &model.MediaFile{
				FileID:           "file-1",
				StorageKey:       "general/2026/03/file-1.png",
				OriginalFilename: "dog.png",
				Status:           lifecycle.StatusConfirmed,
				Visibility:       model.VisibilityPrivate,
				Size:             &size,
			}, nil
		},
	}

	var gotExpiry time.Duration
	var gotDisposition string
	st := &mockStorage{
		presignDownloadFn: func(_ context.Context, key string, expiry time.Duration, disposition string) (string, error) {
			gotExpiry = expiry
			gotDisposition = disposition
			return "https://s3.test/signed/" + key, nil
		},
	}

	svc := newTestUpload(repo, st, "https://cdn.test")

	link, err := svc.DownloadURL(context.Background(), "file-1", 2*time.Hour)
	if err != nil {
		t.Fatalf("DownloadURL: %v", err)
	}

	if link.URL != "https://s3.test/signed/general/2026/03/file-1.png" {
		t.Errorf("url = %q, ожидался presigned", link.URL)
	}
	if link.ExpiresIn != 7200 {
		t.Errorf("ExpiresIn = %d, ожидалось 7200", link.ExpiresIn)
	}
	if gotExpiry != 2*time.Hour {
		t.Errorf("expiry = %v, ожидался 2h", gotExpiry)
	}
	if gotDisposition != `attachment; filename="dog.png"` {
		t.Errorf("disposition = %q, ожидался attachment с именем файла", gotDisposition)
	}
}

func TestUploadService_DownloadURL_Public(t *testing.T) {
	size := int64(1024)
	repo := &mockFileRepo{
		getByIDFn: func(_ context.Context, _ string) (*model.MediaFile, error) {
			return &model.MediaFile{
				FileID:     "file-1",
				StorageKey: "general/2026/03/file-1.png",
				Status:     lifecycle.StatusConfirmed,
				Visibility: model.VisibilityPublic,
				Size:       &size,
			}, nil
		},
	}

	presignCalled := false
	st := &mockStorage{
		presignDownloadFn: func(_ context.Context, key string, _ time.Duration, _ string) (string, error) {
			presignCalled = true
			return "https://s3.test/signed/" + key, nil
		},
	}

	svc := newTestUpload(repo, st, "https://cdn.test")

	link, err := svc.DownloadURL(context.Background(), "file-1", 0)
	if err != nil {
		t.Fatalf("DownloadURL: %v", err)
	}

	if link.URL != "https://cdn.test/general/2026/03/file-1.png" {
		t.Errorf("url = %q, ожидался публичный", link.URL)
	}
	if link.ExpiresIn != 0 {
		t.Errorf("ExpiresIn = %d, для публичного URL ожидался 0", link.ExpiresIn)
	}
	if presignCalled {
		t.Error("для public-файла presigned URL не нужен")
	}
}

func TestUploadService_DownloadURL_ExpiryTooLong(t *testing.T) {
	svc := newTestUpload(&mockFileRepo{}, &mockStorage{}, "")

	_, err := svc.DownloadURL(context.Background(), "file-1", 48*time.Hour)
	if err == nil {
		t.Fatal("ожидалась ошибка валидации")
	}
	if !errors.Is(err, ErrValidation) {
		t.Errorf("ошибка не является ErrValidation: %v", err)
	}
}

func TestUploadService_DownloadURL_Pending(t *testing.T) {
	repo := &mockFileRepo{
		getByIDFn: func(_ context.Context, _ string) (*model.MediaFile, error) {
			return &model.MediaFile{
				FileID: "file-1",
				Status: lifecycle.StatusPending,
			}, nil
		},
	}

	svc := newTestUpload(repo, &mockStorage{}, "")

	_, err := svc.DownloadURL(context.Background(), "file-1", 0)
	if err == nil {
		t.Fatal("ожидалась ошибка")
	}
	if !errors.Is(err, ErrUploadNotFound) {
		t.Errorf("ошибка не является ErrUploadNotFound: %v", err)
	}
}

func TestUploadService_DownloadURL_Deleted(t *testing.T) {
	repo := &mockFileRepo{
		getByIDFn: func(_ context.Context, _ string) (*model.MediaFile, error) {
			return &model.MediaFile{
				FileID: "file-1",
				Status: lifecycle.StatusDeleted,
			}, nil
		},
	}

	svc := newTestUpload(repo, &mockStorage{}, "")

	_, err := svc.DownloadURL(context.Background(), "file-1", 0)
	if err == nil {
		t.Fatal("ожидалась ошибка")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ошибка не является ErrNotFound: %v", err)
	}
}
