// athletes.go — HTTP handlers реестра спортсменов.
// CRUD без бизнес-логики, обработчик работает с репозиторием напрямую.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apierrors "github.com/bigkaa/gomediastore/internal/api/errors"
	"github.com/bigkaa/gomediastore/internal/domain/model"
	"github.com/bigkaa/gomediastore/internal/repository"
)

// AthletesHandler — обработчик endpoints реестра спортсменов.
type AthletesHandler struct {
	repo   repository.AthleteRepository
	logger *slog.Logger
}

// NewAthletesHandler создаёт обработчик реестра спортсменов.
func NewAthletesHandler(repo repository.AthleteRepository, logger *slog.Logger) *AthletesHandler {
	return &AthletesHandler{
		repo:   repo,
		logger: logger.With(slog.String("component", "athletes_handler")),
	}
}

// athleteRequest — тело запроса создания и обновления спортсмена.
// При создании обязательно только name, при обновлении все поля опциональны.
type athleteRequest struct {
	Name      *string  `json:"name"`
	Country   *string  `json:"country"`
	Sport     *string  `json:"sport"`
	NickName  *string  `json:"nick_name"`
	Bio       *string  `json:"bio"`
	BirthDate *string  `json:"birth_date"`
	Height    *float64 `json:"height"`
	Weight    *float64 `json:"weight"`
}

// CreateAthlete обрабатывает POST /api/v1/athletes.
func (h *AthletesHandler) CreateAthlete(w http.ResponseWriter, r *http.Request) {
	var req athleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Некорректный JSON: %s", err.Error()))
		return
	}

	if req.Name == nil || *req.Name == "" {
		apierrors.ValidationError(w, "Поле name обязательно")
		return
	}

	birthDate, ok := parseBirthDate(w, req.BirthDate)
	if !ok {
		return
	}
	if !validateMeasurements(w, req.Height, req.Weight) {
		return
	}

	a := &model.Athlete{
		ID:        uuid.New().String(),
		Name:      *req.Name,
		Country:   req.Country,
		Sport:     req.Sport,
		NickName:  req.NickName,
		Bio:       req.Bio,
		BirthDate: birthDate,
		Height:    req.Height,
		Weight:    req.Weight,
	}

	if err := h.repo.Create(r.Context(), a); err != nil {
		h.writeRepoError(w, err)
		return
	}

	h.logger.Info("Зарегистрирован спортсмен",
		slog.String("athlete_id", a.ID),
		slog.String("name", a.Name),
	)

	writeJSON(w, http.StatusCreated, athleteToAPI(a))
}

// GetAthlete обрабатывает GET /api/v1/athletes/{id}.
func (h *AthletesHandler) GetAthlete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	a, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.writeRepoError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, athleteToAPI(a))
}

// ListAthletes обрабатывает GET /api/v1/athletes.
// Фильтры: name (partial match), country, sport. Пагинация: limit, offset.
func (h *AthletesHandler) ListAthletes(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := parsePagination(w, r)
	if !ok {
		return
	}

	filters := repository.AthleteListFilters{
		Name:    optionalString(r, "name"),
		Country: optionalString(r, "country"),
		Sport:   optionalString(r, "sport"),
	}

	items, total, err := h.repo.List(r.Context(), filters, limit, offset)
	if err != nil {
		h.writeRepoError(w, err)
		return
	}

	apiItems := make([]athleteResponse, 0, len(items))
	for _, item := range items {
		apiItems = append(apiItems, athleteToAPI(item))
	}

	writeJSON(w, http.StatusOK, athleteListResponse{
		Items:   apiItems,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	})
}

// UpdateAthlete обрабатывает PATCH /api/v1/athletes/{id}.
// Обновляет только указанные поля.
func (h *AthletesHandler) UpdateAthlete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req athleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Некорректный JSON: %s", err.Error()))
		return
	}

	if req.Name != nil && *req.Name == "" {
		apierrors.ValidationError(w, "Поле name не может быть пустым")
		return
	}

	birthDate, ok := parseBirthDate(w, req.BirthDate)
	if !ok {
		return
	}
	if !validateMeasurements(w, req.Height, req.Weight) {
		return
	}

	upd := repository.AthleteUpdate{
		Name:      req.Name,
		Country:   req.Country,
		Sport:     req.Sport,
		NickName:  req.NickName,
		Bio:       req.Bio,
		BirthDate: birthDate,
		Height:    req.Height,
		Weight:    req.Weight,
	}

	a, err := h.repo.Update(r.Context(), id, upd)
	if err != nil {
		h.writeRepoError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, athleteToAPI(a))
}

// DeleteAthlete обрабатывает DELETE /api/v1/athletes/{id}.
// Мягкое удаление: файлы спортсмена остаются, ссылка на владельца
// в записях файлов не меняется.
func (h *AthletesHandler) DeleteAthlete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.repo.SoftDelete(r.Context(), id); err != nil {
		h.writeRepoError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeRepoError отображает ошибку репозитория в HTTP-ответ.
func (h *AthletesHandler) writeRepoError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		apierrors.NotFound(w, "Спортсмен не найден")
	case errors.Is(err, repository.ErrConflict):
		apierrors.Conflict(w, err.Error())
	default:
		h.logger.Error("Ошибка репозитория спортсменов", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Внутренняя ошибка сервиса")
	}
}

// parseBirthDate разбирает дату рождения в формате YYYY-MM-DD.
// nil на входе — поле не задано. При ошибке пишет ответ 400.
func parseBirthDate(w http.ResponseWriter, s *string) (*time.Time, bool) {
	if s == nil {
		return nil, true
	}
	t, err := time.Parse("2006-01-02", *s)
	if err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Некорректная дата рождения: %s, ожидается формат YYYY-MM-DD", *s))
		return nil, false
	}
	return &t, true
}

// validateMeasurements проверяет, что рост и вес положительны.
// При ошибке пишет ответ 400.
func validateMeasurements(w http.ResponseWriter, height, weight *float64) bool {
	if height != nil && *height <= 0 {
		apierrors.ValidationError(w, "Рост должен быть положительным числом")
		return false
	}
	if weight != nil && *weight <= 0 {
		apierrors.ValidationError(w, "Вес должен быть положительным числом")
		return false
	}
	return true
}
