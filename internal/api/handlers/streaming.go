// streaming.go — HTTP handlers потоковой раздачи медиа.
// Байты идут через сервис chunked copy, в отличие от редиректов
// /download, где клиент ходит в хранилище напрямую.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/gomediastore/internal/domain/model"
	"github.com/bigkaa/gomediastore/internal/service"
)

// StreamHandler — обработчик endpoints потоковой раздачи.
type StreamHandler struct {
	streamSvc *service.StreamingService
	logger    *slog.Logger
}

// NewStreamHandler создаёт обработчик потоковой раздачи.
func NewStreamHandler(streamSvc *service.StreamingService, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{
		streamSvc: streamSvc,
		logger:    logger.With(slog.String("component", "stream_handler")),
	}
}

// streamInfoResponse — метаданные раздачи для плееров.
type streamInfoResponse struct {
	FileID          string   `json:"file_id"`
	Category        string   `json:"category"`
	ContentType     string   `json:"content_type"`
	Size            int64    `json:"size"`
	Width           *int     `json:"width,omitempty"`
	Height          *int     `json:"height,omitempty"`
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
	Codec           *string  `json:"codec,omitempty"`
	AcceptRanges    bool     `json:"accept_ranges"`
	ChunkSize       int      `json:"chunk_size"`
}

// StreamVideo обрабатывает GET /stream/{id}/video.
// Отдаёт только файлы категории video, с поддержкой Range-запросов
// для перемотки. Файлы других категорий — 404.
func (h *StreamHandler) StreamVideo(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, model.CategoryVideo)
}

// StreamImage обрабатывает GET /stream/{id}/image.
// Отдаёт только файлы категории image.
func (h *StreamHandler) StreamImage(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, model.CategoryImage)
}

// StreamRaw обрабатывает GET /stream/{id}/raw.
// Отдаёт файл любой категории как attachment.
func (h *StreamHandler) StreamRaw(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, "")
}

func (h *StreamHandler) stream(w http.ResponseWriter, r *http.Request, want model.FileCategory) {
	fileID := chi.URLParam(r, "id")

	err := h.streamSvc.Stream(r.Context(), w, fileID, r.Header.Get("Range"), want)
	if err != nil {
		// Ошибки возвращаются только до записи заголовков,
		// после начала передачи сервис сам завершает ответ
		writeServiceError(w, h.logger, err)
	}
}

// StreamInfo обрабатывает GET /stream/{id}/info.
// Возвращает метаданные раздачи без передачи байтов.
func (h *StreamHandler) StreamInfo(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "id")

	f, err := h.streamSvc.Info(r.Context(), fileID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, streamInfoResponse{
		FileID:          f.FileID,
		Category:        string(f.Category),
		ContentType:     f.ContentType,
		Size:            *f.Size,
		Width:           f.Width,
		Height:          f.Height,
		DurationSeconds: f.DurationSeconds,
		Codec:           f.Codec,
		AcceptRanges:    true,
		ChunkSize:       h.streamSvc.ChunkSize(),
	})
}
