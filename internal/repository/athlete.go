package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/gomediastore/internal/domain/model"
)

// athleteColumns — список столбцов таблицы athletes для SELECT-запросов.
const athleteColumns = `id, name, country, sport, nick_name, bio, birth_date,
	height, weight, created_at, updated_at, deleted_at`

// AthleteListFilters — фильтры списка спортсменов.
type AthleteListFilters struct {
	// Name — фильтр по имени (partial match)
	Name *string
	// Country — фильтр по стране (exact match)
	Country *string
	// Sport — фильтр по виду спорта (exact match)
	Sport *string
}

// AthleteUpdate — изменяемые поля спортсмена. nil = поле не меняется.
type AthleteUpdate struct {
	Name      *string
	Country   *string
	Sport     *string
	NickName  *string
	Bio       *string
	BirthDate *time.Time
	Height    *float64
	Weight    *float64
}

// AthleteRepository — доступ к реестру спортсменов.
type AthleteRepository interface {
	// Create регистрирует спортсмена.
	Create(ctx context.Context, a *model.Athlete) error
	// GetByID возвращает спортсмена по UUID.
	GetByID(ctx context.Context, id string) (*model.Athlete, error)
	// List возвращает спортсменов по фильтрам и общее количество.
	List(ctx context.Context, filters AthleteListFilters, limit, offset int) ([]*model.Athlete, int, error)
	// Update изменяет данные спортсмена.
	Update(ctx context.Context, id string, upd AthleteUpdate) (*model.Athlete, error)
	// SoftDelete помечает спортсмена удалённым.
	SoftDelete(ctx context.Context, id string) error
}

// athleteRepo — реализация AthleteRepository через pgx.
type athleteRepo struct {
	db DBTX
}

// NewAthleteRepository создаёт репозиторий спортсменов.
func NewAthleteRepository(db DBTX) AthleteRepository {
	return &athleteRepo{db: db}
}

func (r *athleteRepo) Create(ctx context.Context, a *model.Athlete) error {
	query := `
		INSERT INTO athletes (id, name, country, sport, nick_name, bio,
			birth_date, height, weight)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		a.ID, a.Name, a.Country, a.Sport, a.NickName, a.Bio,
		a.BirthDate, a.Height, a.Weight,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: спортсмен с таким ID уже зарегистрирован", ErrConflict)
		}
		return fmt.Errorf("ошибка регистрации спортсмена: %w", err)
	}
	return nil
}

func (r *athleteRepo) GetByID(ctx context.Context, id string) (*model.Athlete, error) {
	query := fmt.Sprintf(`SELECT %s FROM athletes WHERE id = $1 AND deleted_at IS NULL`, athleteColumns)

	a := &model.Athlete{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.Name, &a.Country, &a.Sport, &a.NickName, &a.Bio, &a.BirthDate,
		&a.Height, &a.Weight, &a.CreatedAt, &a.UpdatedAt, &a.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения спортсмена: %w", err)
	}
	return a, nil
}

func (r *athleteRepo) List(ctx context.Context, filters AthleteListFilters, limit, offset int) ([]*model.Athlete, int, error) {
	where, args := buildAthleteWhere(filters, 1)
	argNum := len(args) + 1

	dataQuery := fmt.Sprintf(
		`SELECT %s FROM athletes %s ORDER BY name LIMIT $%d OFFSET $%d`,
		athleteColumns, where, argNum, argNum+1,
	)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка получения списка спортсменов: %w", err)
	}
	defer rows.Close()

	var result []*model.Athlete
	for rows.Next() {
		a := &model.Athlete{}
		if err := rows.Scan(
			&a.ID, &a.Name, &a.Country, &a.Sport, &a.NickName, &a.Bio, &a.BirthDate,
			&a.Height, &a.Weight, &a.CreatedAt, &a.UpdatedAt, &a.DeletedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("ошибка сканирования спортсмена: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ошибка итерации результатов: %w", err)
	}

	countWhere, countArgs := buildAthleteWhere(filters, 1)
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM athletes %s`, countWhere)

	var total int
	if err := r.db.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчёта спортсменов: %w", err)
	}

	return result, total, nil
}

func (r *athleteRepo) Update(ctx context.Context, id string, upd AthleteUpdate) (*model.Athlete, error) {
	set, args := buildAthleteSet(upd, 2)
	if set == "" {
		return r.GetByID(ctx, id)
	}
	args = append([]any{id}, args...)

	query := fmt.Sprintf(`
		UPDATE athletes
		SET %s, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING %s`, set, athleteColumns)

	a := &model.Athlete{}
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&a.ID, &a.Name, &a.Country, &a.Sport, &a.NickName, &a.Bio, &a.BirthDate,
		&a.Height, &a.Weight, &a.CreatedAt, &a.UpdatedAt, &a.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка обновления спортсмена: %w", err)
	}
	return a, nil
}

func (r *athleteRepo) SoftDelete(ctx context.Context, id string) error {
	query := `
		UPDATE athletes
		SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления спортсмена: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// buildAthleteWhere строит WHERE-условие для фильтрации спортсменов.
// Deleted-записи скрываются всегда.
func buildAthleteWhere(filters AthleteListFilters, startArg int) (whereClause string, args []any) {
	conditions := []string{"deleted_at IS NULL"}
	argNum := startArg

	if filters.Name != nil && *filters.Name != "" {
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", argNum))
		args = append(args, "%"+*filters.Name+"%")
		argNum++
	}
	if filters.Country != nil && *filters.Country != "" {
		conditions = append(conditions, fmt.Sprintf("country = $%d", argNum))
		args = append(args, *filters.Country)
		argNum++
	}
	if filters.Sport != nil && *filters.Sport != "" {
		conditions = append(conditions, fmt.Sprintf("sport = $%d", argNum))
		args = append(args, *filters.Sport)
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

// buildAthleteSet строит SET-часть UPDATE для заданных полей.
func buildAthleteSet(upd AthleteUpdate, startArg int) (setClause string, args []any) {
	var sets []string
	argNum := startArg

	add := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argNum))
		args = append(args, value)
		argNum++
	}

	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.Country != nil {
		add("country", *upd.Country)
	}
	if upd.Sport != nil {
		add("sport", *upd.Sport)
	}
	if upd.NickName != nil {
		add("nick_name", *upd.NickName)
	}
	if upd.Bio != nil {
		add("bio", *upd.Bio)
	}
	if upd.BirthDate != nil {
		add("birth_date", *upd.BirthDate)
	}
	if upd.Height != nil {
		add("height", *upd.Height)
	}
	if upd.Weight != nil {
		add("weight", *upd.Weight)
	}

	return strings.Join(sets, ", "), args
}
