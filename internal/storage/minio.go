// minio.go — реализация ObjectStorage поверх MinIO Go SDK.
//
// SDK работает с любым S3-совместимым хранилищем: локальный MinIO,
// Cloudflare R2, ArvanCloud и т.д. Переключение backend — смена endpoint
// и учётных данных в конфигурации, код не меняется.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStorage — клиент S3-совместимого хранилища.
type MinioStorage struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

// MinioConfig — параметры подключения к хранилищу.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
}

// NewMinioStorage создаёт клиент хранилища и проверяет существование bucket.
// Bucket должен быть создан заранее средствами инфраструктуры: сервис
// не создаёт его автоматически, отсутствие bucket — ошибка конфигурации.
func NewMinioStorage(ctx context.Context, cfg MinioConfig, logger *slog.Logger) (*MinioStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания клиента хранилища: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("ошибка проверки bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %q: %w", cfg.Bucket, ErrBucketNotFound)
	}

	logger.Info("Подключение к объектному хранилищу установлено",
		slog.String("endpoint", cfg.Endpoint),
		slog.String("bucket", cfg.Bucket))

	return &MinioStorage{
		client: client,
		bucket: cfg.Bucket,
		logger: logger.With(slog.String("component", "storage")),
	}, nil
}

// PresignUpload выдаёт presigned URL для прямой загрузки клиентом.
// Content-Type входит в подпись: PUT с другим заголовком хранилище отклонит.
func (s *MinioStorage) PresignUpload(ctx context.Context, key, contentType string, expiry time.Duration) (string, error) {
	headers := http.Header{}
	headers.Set("Content-Type", contentType)

	u, err := s.client.PresignHeader(ctx, http.MethodPut, s.bucket, key, expiry, url.Values{}, headers)
	if err != nil {
		return "", fmt.Errorf("ошибка генерации presigned URL загрузки для %q: %w", key, err)
	}
	return u.String(), nil
}

// PresignDownload выдаёт presigned URL для скачивания объекта.
// disposition подписывается как response-content-disposition: хранилище
// вернёт его в заголовке ответа, подменить параметр без переподписи нельзя.
func (s *MinioStorage) PresignDownload(ctx context.Context, key string, expiry time.Duration, disposition string) (string, error) {
	params := url.Values{}
	if disposition != "" {
		params.Set("response-content-disposition", disposition)
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, params)
	if err != nil {
		return "", fmt.Errorf("ошибка генерации presigned URL скачивания для %q: %w", key, err)
	}
	return u.String(), nil
}

// Put загружает объект на стороне сервера.
func (s *MinioStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("ошибка загрузки объекта %q: %w", key, err)
	}
	return nil
}

// Get открывает поток чтения всего объекта.
func (s *MinioStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.open(ctx, key, minio.GetObjectOptions{})
}

// GetRange открывает поток чтения диапазона байт [start, end].
func (s *MinioStorage) GetRange(ctx context.Context, key string, start, end int64) (io.ReadCloser, error) {
	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(start, end); err != nil {
		return nil, fmt.Errorf("ошибка установки диапазона %d-%d: %w", start, end, err)
	}
	return s.open(ctx, key, opts)
}

// open запрашивает объект и форсирует выполнение запроса через Stat.
// GetObject у SDK ленивый: без Stat ошибка отсутствующего объекта всплыла бы
// только при первом Read, когда заголовки ответа уже отправлены клиенту.
func (s *MinioStorage) open(ctx context.Context, key string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, opts)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения объекта %q: %w", key, err)
	}

	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		if isNotFound(err) {
			return nil, fmt.Errorf("объект %q: %w", key, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("ошибка чтения объекта %q: %w", key, err)
	}

	return obj, nil
}

// Head возвращает метаданные объекта.
func (s *MinioStorage) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("объект %q: %w", key, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("ошибка запроса метаданных объекта %q: %w", key, err)
	}

	return &ObjectInfo{
		Key:          info.Key,
		Size:         info.Size,
		ContentType:  info.ContentType,
		ETag:         info.ETag,
		LastModified: info.LastModified,
	}, nil
}

// Delete удаляет объект. Отсутствие объекта ошибкой не считается.
func (s *MinioStorage) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("ошибка удаления объекта %q: %w", key, err)
	}
	return nil
}

// Ping проверяет доступность хранилища.
func (s *MinioStorage) Ping(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("хранилище недоступно: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %q: %w", s.bucket, ErrBucketNotFound)
	}
	return nil
}

// isNotFound распознаёт ответ хранилища "объект не существует".
func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}
