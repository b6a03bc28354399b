package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/gomediastore/internal/domain/lifecycle"
	"github.com/bigkaa/gomediastore/internal/domain/model"
)

// fileColumns — список столбцов таблицы media_files для SELECT-запросов.
// DRY: одно место для всех SELECT'ов.
const fileColumns = `file_id, athlete_id, storage_key, original_filename, category,
	content_type, size, visibility, status, width, height, duration_seconds, codec,
	created_at, updated_at, deleted_at`

// FileListFilters — фильтры списка файлов.
// Все поля-указатели: nil = фильтр не применяется.
type FileListFilters struct {
	// AthleteID — фильтр по спортсмену (exact match)
	AthleteID *string
	// Category — фильтр по категории (image/video/other)
	Category *string
	// Visibility — фильтр по видимости (public/private)
	Visibility *string
	// Status — фильтр по статусу жизненного цикла
	Status *string
	// IncludeDeleted — включать soft-deleted записи.
	// Игнорируется, если задан явный фильтр Status.
	IncludeDeleted bool
}

// FileUpdate — изменяемые поля метаданных файла.
// Все поля-указатели: nil = поле не меняется.
type FileUpdate struct {
	AthleteID        *string
	OriginalFilename *string
	Visibility       *string
	Width            *int
	Height           *int
	DurationSeconds  *float64
	Codec            *string
}

// IsEmpty сообщает, что ни одно поле не задано.
func (u FileUpdate) IsEmpty() bool {
	return u.AthleteID == nil && u.OriginalFilename == nil && u.Visibility == nil &&
		u.Width == nil && u.Height == nil && u.DurationSeconds == nil && u.Codec == nil
}

// FileRepository — доступ к метаданным медиафайлов в media_files.
//
// Переходы жизненного цикла выполняются условными UPDATE по текущему
// статусу: параллельные переходы сериализуются на уровне строки,
// выигрывает ровно один, остальные видят уже изменённое состояние.
type FileRepository interface {
	// Create регистрирует новую запись файла в статусе pending.
	Create(ctx context.Context, f *model.MediaFile) error
	// GetByID возвращает файл по UUID независимо от статуса.
	GetByID(ctx context.Context, fileID string) (*model.MediaFile, error)
	// List возвращает файлы по фильтрам с пагинацией и общее количество.
	List(ctx context.Context, filters FileListFilters, sortBy, sortOrder string, limit, offset int) ([]*model.MediaFile, int, error)
	// ConfirmUpload переводит pending → confirmed, фиксируя фактический
	// размер и content type из хранилища. Идемпотентен для confirmed.
	ConfirmUpload(ctx context.Context, fileID string, size int64, contentType string) (*model.MediaFile, error)
	// UpdateMetadata изменяет метаданные файла. Для deleted — ErrInvalidState.
	UpdateMetadata(ctx context.Context, fileID string, upd FileUpdate) (*model.MediaFile, error)
	// SoftDelete переводит файл в deleted. Идемпотентен.
	SoftDelete(ctx context.Context, fileID string) error
	// MarkDeleted — синоним SoftDelete для lazy cleanup: запись помечается
	// удалённой, когда объект исчез из хранилища.
	MarkDeleted(ctx context.Context, fileID string) error
	// PurgeRow физически удаляет запись. Вызывается после удаления объекта.
	PurgeRow(ctx context.Context, fileID string) error
	// PurgeStalePending физически удаляет запись, только если она всё ещё
	// pending. ErrNotFound означает, что конкурентное подтверждение или
	// другой цикл очистки выиграли — объект трогать нельзя.
	PurgeStalePending(ctx context.Context, fileID string) error
	// ListStalePending возвращает pending-записи старше olderThan
	// (брошенные загрузки) для фоновой очистки.
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*model.MediaFile, error)
}

// fileRepo — реализация FileRepository через pgx.
type fileRepo struct {
	db DBTX
}

// NewFileRepository создаёт репозиторий медиафайлов.
func NewFileRepository(db DBTX) FileRepository {
	return &fileRepo{db: db}
}

// Create регистрирует файл. Статус всегда pending: подтверждение
// наличия объекта в хранилище — отдельный шаг жизненного цикла.
func (r *fileRepo) Create(ctx context.Context, f *model.MediaFile) error {
	query := `
		INSERT INTO media_files (file_id, athlete_id, storage_key, original_filename,
			category, content_type, size, visibility, status, width, height,
			duration_seconds, codec)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		f.FileID, f.AthleteID, f.StorageKey, f.OriginalFilename,
		f.Category, f.ContentType, f.Size, f.Visibility, f.Status,
		f.Width, f.Height, f.DurationSeconds, f.Codec,
	).Scan(&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: файл с таким ID или ключом уже зарегистрирован", ErrConflict)
		}
		return fmt.Errorf("ошибка регистрации файла: %w", err)
	}
	return nil
}

// GetByID возвращает файл по UUID или ErrNotFound.
func (r *fileRepo) GetByID(ctx context.Context, fileID string) (*model.MediaFile, error) {
	query := fmt.Sprintf(`SELECT %s FROM media_files WHERE file_id = $1`, fileColumns)

	f := &model.MediaFile{}
	err := r.db.QueryRow(ctx, query, fileID).Scan(
		&f.FileID, &f.AthleteID, &f.StorageKey, &f.OriginalFilename, &f.Category,
		&f.ContentType, &f.Size, &f.Visibility, &f.Status, &f.Width, &f.Height,
		&f.DurationSeconds, &f.Codec, &f.CreatedAt, &f.UpdatedAt, &f.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}
	return f, nil
}

// List возвращает файлы по фильтрам с пагинацией.
// Возвращает (результаты, общее количество, ошибка).
func (r *fileRepo) List(ctx context.Context, filters FileListFilters, sortBy, sortOrder string, limit, offset int) ([]*model.MediaFile, int, error) {
	// Построение WHERE-условия
	where, args := buildListWhere(filters, 1)
	argNum := len(args) + 1

	// Сортировка (безопасный whitelist)
	orderBy := buildOrderBy(sortBy, sortOrder)

	// Запрос данных с пагинацией
	dataQuery := fmt.Sprintf(
		`SELECT %s FROM media_files %s %s LIMIT $%d OFFSET $%d`,
		fileColumns, where, orderBy, argNum, argNum+1,
	)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}
	defer rows.Close()

	var result []*model.MediaFile
	for rows.Next() {
		f := &model.MediaFile{}
		if err := rows.Scan(
			&f.FileID, &f.AthleteID, &f.StorageKey, &f.OriginalFilename, &f.Category,
			&f.ContentType, &f.Size, &f.Visibility, &f.Status, &f.Width, &f.Height,
			&f.DurationSeconds, &f.Codec, &f.CreatedAt, &f.UpdatedAt, &f.DeletedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("ошибка сканирования файла: %w", err)
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ошибка итерации результатов: %w", err)
	}

	// Запрос общего количества (те же фильтры, без LIMIT/OFFSET)
	countWhere, countArgs := buildListWhere(filters, 1)
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM media_files %s`, countWhere)

	var total int
	if err := r.db.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчёта файлов: %w", err)
	}

	return result, total, nil
}

// ConfirmUpload переводит pending → confirmed условным UPDATE.
// Победитель гонки выполняет переход, остальные вызовы видят confirmed
// и получают запись без изменений (идемпотентность подтверждения).
func (r *fileRepo) ConfirmUpload(ctx context.Context, fileID string, size int64, contentType string) (*model.MediaFile, error) {
	query := fmt.Sprintf(`
		UPDATE media_files
		SET status = $2, size = $3,
			content_type = COALESCE(NULLIF($4, ''), content_type),
			updated_at = now()
		WHERE file_id = $1 AND status = $5
		RETURNING %s`, fileColumns)

	f := &model.MediaFile{}
	err := r.db.QueryRow(ctx, query,
		fileID, lifecycle.StatusConfirmed, size, contentType, lifecycle.StatusPending,
	).Scan(
		&f.FileID, &f.AthleteID, &f.StorageKey, &f.OriginalFilename, &f.Category,
		&f.ContentType, &f.Size, &f.Visibility, &f.Status, &f.Width, &f.Height,
		&f.DurationSeconds, &f.Codec, &f.CreatedAt, &f.UpdatedAt, &f.DeletedAt,
	)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("ошибка подтверждения загрузки: %w", err)
	}

	// Условие не сработало: запись отсутствует либо уже не pending
	current, getErr := r.GetByID(ctx, fileID)
	if getErr != nil {
		return nil, getErr
	}
	if current.Status == lifecycle.StatusConfirmed {
		return current, nil
	}
	return nil, fmt.Errorf("%w: статус %s", ErrInvalidState, current.Status)
}

// UpdateMetadata изменяет метаданные файла.
// Deleted-записи неизменяемы: для них возвращается ErrInvalidState.
func (r *fileRepo) UpdateMetadata(ctx context.Context, fileID string, upd FileUpdate) (*model.MediaFile, error) {
	if upd.IsEmpty() {
		return r.GetByID(ctx, fileID)
	}

	set, args := buildUpdateSet(upd, 2)
	args = append([]any{fileID}, args...)

	query := fmt.Sprintf(`
		UPDATE media_files
		SET %s, updated_at = now()
		WHERE file_id = $1 AND status != '%s'
		RETURNING %s`, set, lifecycle.StatusDeleted, fileColumns)

	f := &model.MediaFile{}
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&f.FileID, &f.AthleteID, &f.StorageKey, &f.OriginalFilename, &f.Category,
		&f.ContentType, &f.Size, &f.Visibility, &f.Status, &f.Width, &f.Height,
		&f.DurationSeconds, &f.Codec, &f.CreatedAt, &f.UpdatedAt, &f.DeletedAt,
	)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("ошибка обновления метаданных: %w", err)
	}

	current, getErr := r.GetByID(ctx, fileID)
	if getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("%w: статус %s", ErrInvalidState, current.Status)
}

// SoftDelete переводит файл в deleted. Повторное удаление — no-op.
func (r *fileRepo) SoftDelete(ctx context.Context, fileID string) error {
	query := fmt.Sprintf(`
		UPDATE media_files
		SET status = '%[1]s', deleted_at = now(), updated_at = now()
		WHERE file_id = $1 AND status != '%[1]s'`, lifecycle.StatusDeleted)

	tag, err := r.db.Exec(ctx, query, fileID)
	if err != nil {
		return fmt.Errorf("ошибка удаления файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Либо запись отсутствует, либо уже deleted (идемпотентность)
		if _, err := r.GetByID(ctx, fileID); err != nil {
			return err
		}
	}
	return nil
}

// MarkDeleted помечает файл удалённым (lazy cleanup).
// Используется, когда объект исчез из хранилища раньше записи.
func (r *fileRepo) MarkDeleted(ctx context.Context, fileID string) error {
	return r.SoftDelete(ctx, fileID)
}

// PurgeRow физически удаляет запись из media_files.
func (r *fileRepo) PurgeRow(ctx context.Context, fileID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM media_files WHERE file_id = $1`, fileID)
	if err != nil {
		return fmt.Errorf("ошибка удаления записи файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PurgeStalePending физически удаляет pending-запись из media_files.
// Условие по статусу закрывает гонку с подтверждением: если клиент успел
// подтвердить загрузку между выборкой и удалением, запись не тронется.
func (r *fileRepo) PurgeStalePending(ctx context.Context, fileID string) error {
	query := fmt.Sprintf(
		`DELETE FROM media_files WHERE file_id = $1 AND status = '%s'`,
		lifecycle.StatusPending)

	tag, err := r.db.Exec(ctx, query, fileID)
	if err != nil {
		return fmt.Errorf("ошибка удаления брошенной записи: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListStalePending возвращает брошенные загрузки: pending-записи,
// созданные раньше olderThan.
func (r *fileRepo) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*model.MediaFile, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM media_files
		WHERE status = '%s' AND created_at < $1
		ORDER BY created_at
		LIMIT $2`, fileColumns, lifecycle.StatusPending)

	rows, err := r.db.Query(ctx, query, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска брошенных загрузок: %w", err)
	}
	defer rows.Close()

	var result []*model.MediaFile
	for rows.Next() {
		f := &model.MediaFile{}
		if err := rows.Scan(
			&f.FileID, &f.AthleteID, &f.StorageKey, &f.OriginalFilename, &f.Category,
			&f.ContentType, &f.Size, &f.Visibility, &f.Status, &f.Width, &f.Height,
			&f.DurationSeconds, &f.Codec, &f.CreatedAt, &f.UpdatedAt, &f.DeletedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования файла: %w", err)
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации результатов: %w", err)
	}
	return result, nil
}

// buildListWhere строит WHERE-условие и аргументы для фильтрации файлов.
// startArg — номер первого $-параметра (для корректной нумерации).
func buildListWhere(filters FileListFilters, startArg int) (whereClause string, args []any) {
	var conditions []string
	argNum := startArg

	// Фильтр по спортсмену
	if filters.AthleteID != nil && *filters.AthleteID != "" {
		conditions = append(conditions, fmt.Sprintf("athlete_id = $%d", argNum))
		args = append(args, *filters.AthleteID)
		argNum++
	}

	// Фильтр по категории
	if filters.Category != nil && *filters.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argNum))
		args = append(args, *filters.Category)
		argNum++
	}

	// Фильтр по видимости
	if filters.Visibility != nil && *filters.Visibility != "" {
		conditions = append(conditions, fmt.Sprintf("visibility = $%d", argNum))
		args = append(args, *filters.Visibility)
		argNum++
	}

	// Фильтр по статусу. Без явного фильтра deleted-записи скрываются,
	// если не запрошено обратное.
	switch {
	case filters.Status != nil && *filters.Status != "":
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, *filters.Status)
	case !filters.IncludeDeleted:
		conditions = append(conditions, fmt.Sprintf("status != '%s'", lifecycle.StatusDeleted))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	return where, args
}

// buildUpdateSet строит SET-часть UPDATE для заданных полей.
// startArg — номер первого $-параметра.
func buildUpdateSet(upd FileUpdate, startArg int) (setClause string, args []any) {
	var sets []string
	argNum := startArg

	add := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argNum))
		args = append(args, value)
		argNum++
	}

	if upd.AthleteID != nil {
		add("athlete_id", *upd.AthleteID)
	}
	if upd.OriginalFilename != nil {
		add("original_filename", *upd.OriginalFilename)
	}
	if upd.Visibility != nil {
		add("visibility", *upd.Visibility)
	}
	if upd.Width != nil {
		add("width", *upd.Width)
	}
	if upd.Height != nil {
		add("height", *upd.Height)
	}
	if upd.DurationSeconds != nil {
		add("duration_seconds", *upd.DurationSeconds)
	}
	if upd.Codec != nil {
		add("codec", *upd.Codec)
	}

	return strings.Join(sets, ", "), args
}

// Допустимые поля сортировки (whitelist для предотвращения SQL-инъекций).
const defaultSortColumn = "created_at"

// buildOrderBy строит ORDER BY с безопасным whitelist полей.
// Предотвращает SQL-инъекции — только разрешённые значения.
func buildOrderBy(sortBy, sortOrder string) string {
	// Whitelist допустимых полей сортировки
	column := defaultSortColumn
	switch sortBy {
	case "original_filename":
		column = "original_filename"
	case "size":
		column = "size"
	case defaultSortColumn:
		column = defaultSortColumn
	}

	// Whitelist направлений сортировки
	direction := "DESC"
	if strings.EqualFold(sortOrder, "asc") {
		direction = "ASC"
	}

	return fmt.Sprintf("ORDER BY %s %s", column, direction)
}
