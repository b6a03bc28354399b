// files.go — HTTP handlers файловых операций media-service.
// Загрузка (presigned и прямая), подтверждение, список, метаданные,
// обновление, удаление, выдача ссылок скачивания.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/gomediastore/internal/api/errors"
	"github.com/bigkaa/gomediastore/internal/domain/lifecycle"
	"github.com/bigkaa/gomediastore/internal/domain/model"
	"github.com/bigkaa/gomediastore/internal/repository"
	"github.com/bigkaa/gomediastore/internal/service"
)

// FilesHandler — обработчик файловых endpoints.
type FilesHandler struct {
	uploadSvc   *service.UploadService
	registrySvc *service.RegistryService
	maxFileSize int64
	logger      *slog.Logger
}

// NewFilesHandler создаёт обработчик файловых endpoints.
func NewFilesHandler(
	uploadSvc *service.UploadService,
	registrySvc *service.RegistryService,
	maxFileSize int64,
	logger *slog.Logger,
) *FilesHandler {
	return &FilesHandler{
		uploadSvc:   uploadSvc,
		registrySvc: registrySvc,
		maxFileSize: maxFileSize,
		logger:      logger.With(slog.String("component", "files_handler")),
	}
}

// presignUploadRequest — тело запроса инициации presigned-загрузки.
type presignUploadRequest struct {
	Filename   string  `json:"filename"`
	Category   string  `json:"category"`
	Visibility string  `json:"visibility"`
	AthleteID  *string `json:"athlete_id"`
}

// presignUploadResponse — ответ инициации presigned-загрузки.
type presignUploadResponse struct {
	File      fileResponse `json:"file"`
	UploadURL string       `json:"upload_url"`
	ExpiresIn int          `json:"expires_in"`
}

// downloadLinkResponse — выданная ссылка скачивания.
type downloadLinkResponse struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expires_in,omitempty"`
}

// updateFileRequest — тело запроса обновления метаданных файла.
type updateFileRequest struct {
	AthleteID        *string  `json:"athlete_id"`
	OriginalFilename *string  `json:"original_filename"`
	Visibility       *string  `json:"visibility"`
	Width            *int     `json:"width"`
	Height           *int     `json:"height"`
	DurationSeconds  *float64 `json:"duration_seconds"`
	Codec            *string  `json:"codec"`
}

// PresignUpload обрабатывает POST /api/v1/files/upload/presigned.
// Создаёт pending-запись и возвращает presigned URL для прямой
// загрузки байтов в хранилище. Запись подтверждается отдельным вызовом.
func (h *FilesHandler) PresignUpload(w http.ResponseWriter, r *http.Request) {
	var req presignUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Некорректный JSON: %s", err.Error()))
		return
	}

	if req.Filename == "" {
		apierrors.ValidationError(w, "Поле filename обязательно")
		return
	}

	category, ok := parseCategoryParam(w, req.Category)
	if !ok {
		return
	}

	visibility, err := model.ParseVisibility(req.Visibility)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	result, err := h.uploadSvc.Presign(r.Context(), service.UploadRequest{
		Filename:   req.Filename,
		Category:   category,
		Visibility: visibility,
		AthleteID:  req.AthleteID,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, presignUploadResponse{
		File:      fileToAPI(result.File),
		UploadURL: result.UploadURL,
		ExpiresIn: result.ExpiresIn,
	})
}

// DirectUpload обрабатывает POST /api/v1/files/upload/direct.
// Multipart form: file (обязательно), category (обязательно),
// visibility и athlete_id (опционально). Байты проходят серверную
// валидацию содержимого, запись возвращается уже подтверждённой.
func (h *FilesHandler) DirectUpload(w http.ResponseWriter, r *http.Request) {
	// Ограничение тела запроса: лимит файла + запас на заголовки формы
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+(32<<20))

	if err := r.ParseMultipartForm(32 << 20); err != nil { // 32 MB buffer
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			apierrors.FileTooLarge(w, fmt.Sprintf("Размер файла превышает лимит %d байт", h.maxFileSize))
			return
		}
		apierrors.ValidationError(w, fmt.Sprintf("Ошибка парсинга multipart: %s", err.Error()))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "Поле 'file' обязательно")
		return
	}
	defer file.Close()

	category, ok := parseCategoryParam(w, r.FormValue("category"))
	if !ok {
		return
	}

	visibility, err := model.ParseVisibility(r.FormValue("visibility"))
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	var athleteID *string
	if v := r.FormValue("athlete_id"); v != "" {
		athleteID = &v
	}

	data, err := io.ReadAll(file)
	if err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Ошибка чтения файла: %s", err.Error()))
		return
	}

	confirmed, err := h.uploadSvc.Direct(r.Context(), service.UploadRequest{
		Filename:   header.Filename,
		Category:   category,
		Visibility: visibility,
		AthleteID:  athleteID,
	}, data)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, fileToAPI(confirmed))
}

// ConfirmUpload обрабатывает POST /api/v1/files/{id}/confirm.
// Сверяет объект с хранилищем и переводит запись pending → confirmed.
// Повторное подтверждение возвращает ту же запись без изменений.
func (h *FilesHandler) ConfirmUpload(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "id")

	f, err := h.registrySvc.Confirm(r.Context(), fileID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, fileToAPI(f))
}

// ListFiles обрабатывает GET /api/v1/files.
// Фильтры: athlete_id, category, visibility, status, include_deleted.
// Сортировка: sort_by, sort_order. Пагинация: limit, offset.
func (h *FilesHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := parsePagination(w, r)
	if !ok {
		return
	}

	filters := repository.FileListFilters{
		AthleteID:  optionalString(r, "athlete_id"),
		Category:   optionalString(r, "category"),
		Visibility: optionalString(r, "visibility"),
		Status:     optionalString(r, "status"),
	}
	filters.IncludeDeleted = r.URL.Query().Get("include_deleted") == "true"

	if filters.Category != nil {
		if _, ok := parseCategoryParam(w, *filters.Category); !ok {
			return
		}
	}
	if filters.Visibility != nil {
		if _, err := model.ParseVisibility(*filters.Visibility); err != nil {
			apierrors.ValidationError(w, err.Error())
			return
		}
	}
	if filters.Status != nil {
		if _, err := lifecycle.ParseStatus(*filters.Status); err != nil {
			apierrors.ValidationError(w, err.Error())
			return
		}
	}

	sortBy := r.URL.Query().Get("sort_by")
	sortOrder := r.URL.Query().Get("sort_order")

	items, total, err := h.registrySvc.List(r.Context(), filters, sortBy, sortOrder, limit, offset)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	apiItems := make([]fileResponse, 0, len(items))
	for _, item := range items {
		apiItems = append(apiItems, fileToAPI(item))
	}

	writeJSON(w, http.StatusOK, fileListResponse{
		Items:   apiItems,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	})
}

// GetFile обрабатывает GET /api/v1/files/{id}.
func (h *FilesHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "id")

	f, err := h.registrySvc.Get(r.Context(), fileID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, fileToAPI(f))
}

// UpdateFile обрабатывает PATCH /api/v1/files/{id}.
// Обновляет присвоенные метаданные: владельца, имя, видимость,
// размеры и кодек. Ключ хранилища и категория неизменны.
func (h *FilesHandler) UpdateFile(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "id")

	var req updateFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Некорректный JSON: %s", err.Error()))
		return
	}

	if req.Visibility != nil {
		if _, err := model.ParseVisibility(*req.Visibility); err != nil {
			apierrors.ValidationError(w, err.Error())
			return
		}
	}

	upd := repository.FileUpdate{
		AthleteID:        req.AthleteID,
		OriginalFilename: req.OriginalFilename,
		Visibility:       req.Visibility,
		Width:            req.Width,
		Height:           req.Height,
		DurationSeconds:  req.DurationSeconds,
		Codec:            req.Codec,
	}
	if upd.IsEmpty() {
		apierrors.ValidationError(w, "Необходимо указать хотя бы одно поле для обновления")
		return
	}

	f, err := h.registrySvc.UpdateMetadata(r.Context(), fileID, upd)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, fileToAPI(f))
}

// DeleteFile обрабатывает DELETE /api/v1/files/{id}.
// По умолчанию — мягкое удаление с сохранением записи и байтов.
// С параметром hard=true — необратимое удаление записи и объекта.
func (h *FilesHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "id")

	var err error
	if r.URL.Query().Get("hard") == "true" {
		err = h.registrySvc.Purge(r.Context(), fileID)
	} else {
		err = h.registrySvc.SoftDelete(r.Context(), fileID)
	}
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DownloadFile обрабатывает GET /api/v1/files/{id}/download.
// Отвечает редиректом на публичный или presigned URL:
// байты идут клиенту напрямую из хранилища мимо сервиса.
func (h *FilesHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "id")

	expiry, ok := parseExpiry(w, r)
	if !ok {
		return
	}

	link, err := h.uploadSvc.DownloadURL(r.Context(), fileID, expiry)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	http.Redirect(w, r, link.URL, http.StatusFound)
}

// GetPresignedURL обрабатывает GET /api/v1/files/{id}/presigned-url.
// Возвращает ссылку скачивания в теле ответа вместо редиректа.
func (h *FilesHandler) GetPresignedURL(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "id")

	expiry, ok := parseExpiry(w, r)
	if !ok {
		return
	}

	link, err := h.uploadSvc.DownloadURL(r.Context(), fileID, expiry)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, downloadLinkResponse{
		URL:       link.URL,
		ExpiresIn: link.ExpiresIn,
	})
}

// parseCategoryParam проверяет и преобразует категорию контента.
// При недопустимом значении пишет ответ 400 и возвращает ok=false.
func parseCategoryParam(w http.ResponseWriter, s string) (model.FileCategory, bool) {
	if s == "" {
		apierrors.ValidationError(w, "Поле category обязательно")
		return "", false
	}
	category := model.FileCategory(s)
	switch category {
	case model.CategoryImage, model.CategoryVideo, model.CategoryOther:
		return category, true
	default:
		apierrors.ValidationError(w, fmt.Sprintf("Недопустимая категория: %s, допустимые: image, video, other", s))
		return "", false
	}
}

// parseExpiry извлекает срок действия ссылки из query-параметра expires_in.
// Отсутствующий параметр означает срок по умолчанию.
func parseExpiry(w http.ResponseWriter, r *http.Request) (time.Duration, bool) {
	v := r.URL.Query().Get("expires_in")
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		apierrors.ValidationError(w, "Параметр expires_in должен быть положительным числом секунд")
		return 0, false
	}
	return time.Duration(n) * time.Second, true
}
