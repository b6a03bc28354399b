// Пакет model — доменные модели media-service.
// MediaFile — маппинг таблицы media_files, Athlete — таблицы athletes.
package model

import (
	"fmt"
	"time"

	"github.com/bigkaa/gomediastore/internal/domain/lifecycle"
)

// FileCategory — категория контента файла.
type FileCategory string

// Категории контента.
const (
	CategoryImage FileCategory = "image"
	CategoryVideo FileCategory = "video"
	CategoryOther FileCategory = "other"
)

// Visibility — видимость файла на границе раздачи.
// private ограничивает только контроль доступа, раскладку ключей не меняет.
type Visibility string

// Уровни видимости.
const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// MediaFile — запись файла в реестре media_files.
type MediaFile struct {
	// FileID — UUID файла, присваивается при создании записи
	FileID string
	// AthleteID — UUID владеющего атлета (опционально)
	AthleteID *string
	// StorageKey — ключ в объектном хранилище; назначается один раз и не переиспользуется
	StorageKey string
	// OriginalFilename — имя файла, заявленное клиентом
	OriginalFilename string
	// Category — категория контента: image, video, other
	Category FileCategory
	// ContentType — MIME-тип файла
	ContentType string
	// Size — размер в байтах; NULL до подтверждения загрузки
	Size *int64
	// Visibility — видимость: public, private
	Visibility Visibility
	// Status — статус жизненного цикла: pending, confirmed, deleted
	Status lifecycle.Status
	// Width, Height — размеры изображения в пикселях (опционально)
	Width  *int
	Height *int
	// DurationSeconds — длительность видео в секундах (опционально)
	DurationSeconds *float64
	// Codec — кодек видео (опционально)
	Codec *string
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
	// DeletedAt — отметка мягкого удаления; NULL для живых записей
	DeletedAt *time.Time
}

// IsDeleted сообщает, помечена ли запись на удаление.
func (f *MediaFile) IsDeleted() bool {
	return f.Status == lifecycle.StatusDeleted || f.DeletedAt != nil
}

// ParseCategory преобразует строку в FileCategory.
// Неизвестные значения отображаются в CategoryOther.
func ParseCategory(s string) FileCategory {
	switch FileCategory(s) {
	case CategoryImage, CategoryVideo:
		return FileCategory(s)
	default:
		return CategoryOther
	}
}

// ParseVisibility преобразует строку в Visibility.
// Пустая строка отображается в private.
func ParseVisibility(s string) (Visibility, error) {
	switch Visibility(s) {
	case VisibilityPublic, VisibilityPrivate:
		return Visibility(s), nil
	case "":
		return VisibilityPrivate, nil
	default:
		return "", fmt.Errorf("недопустимая видимость: %q, допустимые: public, private", s)
	}
}
