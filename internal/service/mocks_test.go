// mocks_test.go — мок-реализации зависимостей для unit-тестов сервисов.
package service

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/bigkaa/gomediastore/internal/domain/model"
	"github.com/bigkaa/gomediastore/internal/repository"
	"github.com/bigkaa/gomediastore/internal/storage"
)

// --- Mock FileRepository ---

// mockFileRepo — мок FileRepository для unit-тестов.
type mockFileRepo struct {
	createFn            func(ctx context.Context, f *model.MediaFile) error
	getByIDFn           func(ctx context.Context, fileID string) (*model.MediaFile, error)
	listFn              func(ctx context.Context, filters repository.FileListFilters, sortBy, sortOrder string, limit, offset int) ([]*model.MediaFile, int, error)
	confirmUploadFn     func(ctx context.Context, fileID string, size int64, contentType string) (*model.MediaFile, error)
	updateMetadataFn    func(ctx context.Context, fileID string, upd repository.FileUpdate) (*model.MediaFile, error)
	softDeleteFn        func(ctx context.Context, fileID string) error
	markDeletedFn       func(ctx context.Context, fileID string) error
	purgeRowFn          func(ctx context.Context, fileID string) error
	purgeStalePendingFn func(ctx context.Context, fileID string) error
	listStalePendingFn  func(ctx context.Context, olderThan time.Time, limit int) ([]*model.MediaFile, error)
}

func (m *mockFileRepo) Create(ctx context.Context, f *model.MediaFile) error {
	if m.createFn != nil {
		return m.createFn(ctx, f)
	}
	return nil
}

func (m *mockFileRepo) GetByID(ctx context.Context, fileID string) (*model.MediaFile, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, fileID)
	}
	return nil, repository.ErrNotFound
}

func (m *mockFileRepo) List(ctx context.Context, filters repository.FileListFilters, sortBy, sortOrder string, limit, offset int) ([]*model.MediaFile, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filters, sortBy, sortOrder, limit, offset)
	}
	return nil, 0, nil
}

func (m *mockFileRepo) ConfirmUpload(ctx context.Context, fileID string, size int64, contentType string) (*model.MediaFile, error) {
	if m.confirmUploadFn != nil {
		return m.confirmUploadFn(ctx, fileID, size, contentType)
	}
	return nil, repository.ErrNotFound
}

func (m *mockFileRepo) UpdateMetadata(ctx context.Context, fileID string, upd repository.FileUpdate) (*model.MediaFile, error) {
	if m.updateMetadataFn != nil {
		return m.updateMetadataFn(ctx, fileID, upd)
	}
	return nil, repository.ErrNotFound
}

func (m *mockFileRepo) SoftDelete(ctx context.Context, fileID string) error {
	if m.softDeleteFn != nil {
		return m.softDeleteFn(ctx, fileID)
	}
	return nil
}

func (m *mockFileRepo) MarkDeleted(ctx context.Context, fileID string) error {
	if m.markDeletedFn != nil {
		return m.markDeletedFn(ctx, fileID)
	}
	return nil
}

func (m *mockFileRepo) PurgeRow(ctx context.Context, fileID string) error {
	if m.purgeRowFn != nil {
		return m.purgeRowFn(ctx, fileID)
	}
	return nil
}

func (m *mockFileRepo) PurgeStalePending(ctx context.Context, fileID string) error {
	if m.purgeStalePendingFn != nil {
		return m.purgeStalePendingFn(ctx, fileID)
	}
	return nil
}

func (m *mockFileRepo) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*model.MediaFile, error) {
	if m.listStalePendingFn != nil {
		return m.listStalePendingFn(ctx, olderThan, limit)
	}
	return nil, nil
}

// --- Mock AthleteRepository ---

// mockAthleteRepo — мок AthleteRepository. По умолчанию все атлеты существуют.
type mockAthleteRepo struct {
	getByIDFn func(ctx context.Context, id string) (*model.Athlete, error)
}

func (m *mockAthleteRepo) Create(_ context.Context, _ *model.Athlete) error { return nil }

func (m *mockAthleteRepo) GetByID(ctx context.Context, id string) (*model.Athlete, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return &model.Athlete{ID: id, Name: "Тестовый Атлет"}, nil
}

func (m *mockAthleteRepo) List(_ context.Context, _ repository.AthleteListFilters, _, _ int) ([]*model.Athlete, int, error) {
	return nil, 0, nil
}

func (m *mockAthleteRepo) Update(_ context.Context, _ string, _ repository.AthleteUpdate) (*model.Athlete, error) {
	return nil, repository.ErrNotFound
}

func (m *mockAthleteRepo) SoftDelete(_ context.Context, _ string) error { return nil }

// --- Mock ObjectStorage ---

// mockStorage — мок ObjectStorage для unit-тестов.
type mockStorage struct {
	presignUploadFn   func(ctx context.Context, key, contentType string, expiry time.Duration) (string, error)
	presignDownloadFn func(ctx context.Context, key string, expiry time.Duration, disposition string) (string, error)
	putFn             func(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	getFn             func(ctx context.Context, key string) (io.ReadCloser, error)
	getRangeFn        func(ctx context.Context, key string, start, end int64) (io.ReadCloser, error)
	headFn            func(ctx context.Context, key string) (*storage.ObjectInfo, error)
	deleteFn          func(ctx context.Context, key string) error
}

func (m *mockStorage) PresignUpload(ctx context.Context, key, contentType string, expiry time.Duration) (string, error) {
	if m.presignUploadFn != nil {
		return m.presignUploadFn(ctx, key, contentType, expiry)
	}
	return "https://s3.test/upload/" + key, nil
}

func (m *mockStorage) PresignDownload(ctx context.Context, key string, expiry time.Duration, disposition string) (string, error) {
	if m.presignDownloadFn != nil {
		return m.presignDownloadFn(ctx, key, expiry, disposition)
	}
	return "https://s3.test/download/" + key, nil
}

func (m *mockStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if m.putFn != nil {
		return m.putFn(ctx, key, r, size, contentType)
	}
	return nil
}

func (m *mockStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return io.NopCloser(bytes.NewReader(nil)), nil
}

func (m *mockStorage) GetRange(ctx context.Context, key string, start, end int64) (io.ReadCloser, error) {
	if m.getRangeFn != nil {
		return m.getRangeFn(ctx, key, start, end)
	}
	return io.NopCloser(bytes.NewReader(nil)), nil
}

func (m *mockStorage) Head(ctx context.Context, key string) (*storage.ObjectInfo, error) {
	if m.headFn != nil {
		return m.headFn(ctx, key)
	}
	return nil, storage.ErrObjectNotFound
}

func (m *mockStorage) Delete(ctx context.Context, key string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, key)
	}
	return nil
}

func (m *mockStorage) Ping(_ context.Context) error { return nil }
