// handler.go — общие помощники HTTP-обработчиков media-service.
// DTO для API-ответов, преобразование доменных моделей и отображение
// ошибок сервисного слоя в коды ответов.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	apierrors "github.com/bigkaa/gomediastore/internal/api/errors"
	"github.com/bigkaa/gomediastore/internal/domain/model"
	"github.com/bigkaa/gomediastore/internal/service"
)

// fileResponse — API-представление записи файла.
// Не содержит StorageKey: раскладка ключей в бакете — внутреннее дело сервиса.
type fileResponse struct {
	FileID           string   `json:"file_id"`
	AthleteID        *string  `json:"athlete_id,omitempty"`
	OriginalFilename string   `json:"original_filename"`
	Category         string   `json:"category"`
	ContentType      string   `json:"content_type"`
	Size             *int64   `json:"size,omitempty"`
	Visibility       string   `json:"visibility"`
	Status           string   `json:"status"`
	Width            *int     `json:"width,omitempty"`
	Height           *int     `json:"height,omitempty"`
	DurationSeconds  *float64 `json:"duration_seconds,omitempty"`
	Codec            *string  `json:"codec,omitempty"`
	CreatedAt        string   `json:"created_at"`
	UpdatedAt        string   `json:"updated_at"`
	DeletedAt        *string  `json:"deleted_at,omitempty"`
}

// fileListResponse — страница списка файлов.
type fileListResponse struct {
	Items   []fileResponse `json:"items"`
	Total   int            `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
	HasMore bool           `json:"has_more"`
}

// athleteResponse — API-представление атлета.
type athleteResponse struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Country   *string  `json:"country,omitempty"`
	BirthDate *string  `json:"birth_date,omitempty"`
	Height    *float64 `json:"height,omitempty"`
	Weight    *float64 `json:"weight,omitempty"`
	Sport     *string  `json:"sport,omitempty"`
	NickName  *string  `json:"nick_name,omitempty"`
	Bio       *string  `json:"bio,omitempty"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
}

// athleteListResponse — страница списка атлетов.
type athleteListResponse struct {
	Items   []athleteResponse `json:"items"`
	Total   int               `json:"total"`
	Limit   int               `json:"limit"`
	Offset  int               `json:"offset"`
	HasMore bool              `json:"has_more"`
}

// fileToAPI преобразует доменную модель файла в API-формат.
func fileToAPI(f *model.MediaFile) fileResponse {
	resp := fileResponse{
		FileID:           f.FileID,
		AthleteID:        f.AthleteID,
		OriginalFilename: f.OriginalFilename,
		Category:         string(f.Category),
		ContentType:      f.ContentType,
		Size:             f.Size,
		Visibility:       string(f.Visibility),
		Status:           string(f.Status),
		Width:            f.Width,
		Height:           f.Height,
		DurationSeconds:  f.DurationSeconds,
		Codec:            f.Codec,
		CreatedAt:        formatTime(f.CreatedAt),
		UpdatedAt:        formatTime(f.UpdatedAt),
	}

	if f.DeletedAt != nil {
		deletedAt := formatTime(*f.DeletedAt)
		resp.DeletedAt = &deletedAt
	}

	return resp
}

// athleteToAPI преобразует доменную модель атлета в API-формат.
func athleteToAPI(a *model.Athlete) athleteResponse {
	resp := athleteResponse{
		ID:        a.ID,
		Name:      a.Name,
		Country:   a.Country,
		Height:    a.Height,
		Weight:    a.Weight,
		Sport:     a.Sport,
		NickName:  a.NickName,
		Bio:       a.Bio,
		CreatedAt: formatTime(a.CreatedAt),
		UpdatedAt: formatTime(a.UpdatedAt),
	}

	if a.BirthDate != nil {
		birthDate := a.BirthDate.Format("2006-01-02")
		resp.BirthDate = &birthDate
	}

	return resp
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// formatTime форматирует время для API-ответов.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// writeServiceError отображает ошибку сервисного слоя в HTTP-ответ.
// Каждый вид ошибки получает свой статус и код, неопознанные ошибки
// логируются и отдаются как 500 без деталей.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrFileTooLarge):
		apierrors.FileTooLarge(w, err.Error())
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrUploadNotFound):
		apierrors.UploadNotFound(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, err.Error())
	case errors.Is(err, service.ErrInvalidState):
		apierrors.InvalidTransition(w, err.Error())
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, err.Error())
	case errors.Is(err, service.ErrRangeNotSatisfiable):
		apierrors.InvalidRange(w, err.Error())
	case errors.Is(err, service.ErrStorageUnavailable):
		apierrors.StorageUnavailable(w, err.Error())
	default:
		logger.Error("Необработанная ошибка сервисного слоя", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Внутренняя ошибка сервиса")
	}
}

// parsePagination извлекает limit и offset из query-параметров.
// При некорректном значении пишет ответ 400 и возвращает ok=false.
func parsePagination(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	limit = 100
	offset = 0

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			apierrors.ValidationError(w, "Параметр limit должен быть от 1 до 1000")
			return 0, 0, false
		}
		limit = n
	}

	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			apierrors.ValidationError(w, "Параметр offset не может быть отрицательным")
			return 0, 0, false
		}
		offset = n
	}

	return limit, offset, true
}

// optionalString возвращает указатель на значение query-параметра
// или nil, если параметр не задан.
func optionalString(r *http.Request, name string) *string {
	if v := r.URL.Query().Get(name); v != "" {
		return &v
	}
	return nil
}
