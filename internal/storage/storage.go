// Пакет storage — шлюз к S3-совместимому объектному хранилищу медиафайлов.
//
// Сервис хранит только метаданные, содержимое файлов живёт в объектном
// хранилище (MinIO, Cloudflare R2, любой S3-совместимый backend). Пакет
// инкапсулирует все операции с объектами: presigned URL для прямой загрузки
// и скачивания, серверная загрузка, потоковое чтение с поддержкой диапазонов,
// проверка существования и удаление.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Ошибки уровня хранилища.
var (
	// ErrObjectNotFound — объект с указанным ключом отсутствует в bucket.
	ErrObjectNotFound = errors.New("объект не найден в хранилище")
	// ErrBucketNotFound — настроенный bucket не существует.
	ErrBucketNotFound = errors.New("bucket не найден")
)

// ObjectInfo — метаданные объекта в хранилище.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	ETag         string
	LastModified time.Time
}

// ObjectStorage — операции с объектным хранилищем медиафайлов.
// Реализация предоставляется инфраструктурным слоем (MinIO SDK).
type ObjectStorage interface {
	// PresignUpload выдаёт presigned URL для прямой загрузки клиентом (HTTP PUT).
	// Content-Type подписывается вместе с URL: загрузка с другим типом будет
	// отклонена хранилищем.
	PresignUpload(ctx context.Context, key, contentType string, expiry time.Duration) (string, error)

	// PresignDownload выдаёт presigned URL для скачивания объекта (HTTP GET).
	// Непустой disposition подписывается в URL и переопределяет заголовок
	// Content-Disposition ответа хранилища.
	PresignDownload(ctx context.Context, key string, expiry time.Duration, disposition string) (string, error)

	// Put загружает объект на стороне сервера. size должен быть точным
	// количеством байт содержимого.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// Get открывает поток чтения всего объекта.
	// Закрытие потока — обязанность вызывающего.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// GetRange открывает поток чтения диапазона байт [start, end]
	// (границы включающие). Закрытие потока — обязанность вызывающего.
	GetRange(ctx context.Context, key string, start, end int64) (io.ReadCloser, error)

	// Head возвращает метаданные объекта без чтения содержимого.
	// Для отсутствующего объекта возвращает ErrObjectNotFound.
	Head(ctx context.Context, key string) (*ObjectInfo, error)

	// Delete удаляет объект. Удаление отсутствующего объекта не является ошибкой.
	Delete(ctx context.Context, key string) error

	// Ping проверяет доступность хранилища и существование bucket.
	Ping(ctx context.Context) error
}

// ReadinessChecker — проверка готовности объектного хранилища для health endpoint.
// Реализует интерфейс handlers.ReadinessChecker.
type ReadinessChecker struct {
	storage ObjectStorage
}

// NewReadinessChecker создаёт проверку готовности хранилища.
func NewReadinessChecker(storage ObjectStorage) *ReadinessChecker {
	return &ReadinessChecker{storage: storage}
}

// CheckReady проверяет доступность хранилища через ping.
// Возвращает статус ("ok", "fail") и сообщение.
func (c *ReadinessChecker) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := c.storage.Ping(ctx); err != nil {
		return "fail", fmt.Sprintf("хранилище недоступно: %v", err)
	}
	return "ok", "bucket доступен"
}
