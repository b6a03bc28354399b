package repository

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/gomediastore/internal/config"
	"github.com/bigkaa/gomediastore/internal/database"
	"github.com/bigkaa/gomediastore/internal/domain/lifecycle"
	"github.com/bigkaa/gomediastore/internal/domain/model"
)

// setupTestPool запускает PostgreSQL в Docker-контейнере через testcontainers,
// применяет миграции и возвращает пул подключений.
func setupTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("mediastore_test"),
		postgres.WithUsername("mediastore"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	t.Setenv("MS_DB_HOST", host)
	t.Setenv("MS_DB_PORT", port.Port())
	t.Setenv("MS_DB_NAME", "mediastore_test")
	t.Setenv("MS_DB_USER", "mediastore")
	t.Setenv("MS_DB_PASSWORD", "test-password")
	t.Setenv("MS_DB_SSL_MODE", "disable")
	t.Setenv("MS_S3_ENDPOINT", "minio.local:9000")
	t.Setenv("MS_S3_ACCESS_KEY", "test")
	t.Setenv("MS_S3_SECRET_KEY", "test")
	t.Setenv("MS_S3_BUCKET", "test")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка применения миграций: %v", err)
	}

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения к PostgreSQL: %v", err)
	}
	t.Cleanup(pool.Close)

	return pool
}

// newTestFile возвращает запись файла в статусе pending.
func newTestFile(athleteID *string, category model.FileCategory) *model.MediaFile {
	return &model.MediaFile{
		FileID:           uuid.New().String(),
		AthleteID:        athleteID,
		StorageKey:       "general/2026/08/" + uuid.New().String() + ".jpg",
		OriginalFilename: "photo.jpg",
		Category:         category,
		ContentType:      "image/jpeg",
		Visibility:       model.VisibilityPrivate,
		Status:           lifecycle.StatusPending,
	}
}

// TestFileRepository_Lifecycle проверяет полный жизненный цикл записи:
// регистрация → подтверждение → обновление → удаление → физическое удаление.
func TestFileRepository_Lifecycle(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewFileRepository(pool)
	ctx := context.Background()

	f := newTestFile(nil, model.CategoryImage)

	// 1. Регистрация
	if err := repo.Create(ctx, f); err != nil {
		t.Fatalf("Create() вернул ошибку: %v", err)
	}
	if f.CreatedAt.IsZero() || f.UpdatedAt.IsZero() {
		t.Error("Create() должен заполнять created_at и updated_at")
	}

	// Повторная регистрация с тем же ID — конфликт
	if err := repo.Create(ctx, f); !errors.Is(err, ErrConflict) {
		t.Errorf("повторный Create() = %v, ожидался ErrConflict", err)
	}

	// 2. Чтение: статус pending, размер не заполнен
	got, err := repo.GetByID(ctx, f.FileID)
	if err != nil {
		t.Fatalf("GetByID() вернул ошибку: %v", err)
	}
	if got.Status != lifecycle.StatusPending {
		t.Errorf("Status = %s, ожидался pending", got.Status)
	}
	if got.Size != nil {
		t.Errorf("Size = %v, ожидался nil до подтверждения", *got.Size)
	}

	// 3. Подтверждение: фиксируются размер и фактический content type
	confirmed, err := repo.ConfirmUpload(ctx, f.FileID, 2048, "image/png")
	if err != nil {
		t.Fatalf("ConfirmUpload() вернул ошибку: %v", err)
	}
	if confirmed.Status != lifecycle.StatusConfirmed {
		t.Errorf("Status = %s, ожидался confirmed", confirmed.Status)
	}
	if confirmed.Size == nil || *confirmed.Size != 2048 {
		t.Errorf("Size = %v, ожидался 2048", confirmed.Size)
	}
	if confirmed.ContentType != "image/png" {
		t.Errorf("ContentType = %q, ожидался image/png", confirmed.ContentType)
	}

	// Повторное подтверждение идемпотентно
	again, err := repo.ConfirmUpload(ctx, f.FileID, 9999, "image/gif")
	if err != nil {
		t.Fatalf("повторный ConfirmUpload() вернул ошибку: %v", err)
	}
	if *again.Size != 2048 {
		t.Errorf("повторное подтверждение изменило размер: %d", *again.Size)
	}

	// 4. Обновление метаданных
	visibility := string(model.VisibilityPublic)
	updated, err := repo.UpdateMetadata(ctx, f.FileID, FileUpdate{Visibility: &visibility})
	if err != nil {
		t.Fatalf("UpdateMetadata() вернул ошибку: %v", err)
	}
	if updated.Visibility != model.VisibilityPublic {
		t.Errorf("Visibility = %s, ожидался public", updated.Visibility)
	}

	// 5. Soft delete
	if err := repo.SoftDelete(ctx, f.FileID); err != nil {
		t.Fatalf("SoftDelete() вернул ошибку: %v", err)
	}
	got, err = repo.GetByID(ctx, f.FileID)
	if err != nil {
		t.Fatalf("GetByID() после удаления вернул ошибку: %v", err)
	}
	if got.Status != lifecycle.StatusDeleted {
		t.Errorf("Status = %s, ожидался deleted", got.Status)
	}
	if got.DeletedAt == nil {
		t.Error("DeletedAt не заполнен после SoftDelete")
	}

	// Повторное удаление — no-op
	if err := repo.SoftDelete(ctx, f.FileID); err != nil {
		t.Errorf("повторный SoftDelete() = %v, ожидался nil", err)
	}

	// Подтверждение удалённого — недопустимый переход
	if _, err := repo.ConfirmUpload(ctx, f.FileID, 1, ""); !errors.Is(err, ErrInvalidState) {
		t.Errorf("ConfirmUpload() после удаления = %v, ожидался ErrInvalidState", err)
	}

	// Обновление удалённого — недопустимо
	name := "new.jpg"
	if _, err := repo.UpdateMetadata(ctx, f.FileID, FileUpdate{OriginalFilename: &name}); !errors.Is(err, ErrInvalidState) {
		t.Errorf("UpdateMetadata() после удаления = %v, ожидался ErrInvalidState", err)
	}

	// 6. Физическое удаление
	if err := repo.PurgeRow(ctx, f.FileID); err != nil {
		t.Fatalf("PurgeRow() вернул ошибку: %v", err)
	}
	if _, err := repo.GetByID(ctx, f.FileID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() после purge = %v, ожидался ErrNotFound", err)
	}
	if err := repo.PurgeRow(ctx, f.FileID); !errors.Is(err, ErrNotFound) {
		t.Errorf("повторный PurgeRow() = %v, ожидался ErrNotFound", err)
	}
}

// TestFileRepository_List проверяет фильтрацию и скрытие deleted-записей.
func TestFileRepository_List(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewFileRepository(pool)
	ctx := context.Background()

	athleteID := uuid.New().String()

	img := newTestFile(&athleteID, model.CategoryImage)
	vid := newTestFile(&athleteID, model.CategoryVideo)
	other := newTestFile(nil, model.CategoryImage)
	for _, f := range []*model.MediaFile{img, vid, other} {
		if err := repo.Create(ctx, f); err != nil {
			t.Fatalf("Create() вернул ошибку: %v", err)
		}
	}
	if err := repo.SoftDelete(ctx, other.FileID); err != nil {
		t.Fatalf("SoftDelete() вернул ошибку: %v", err)
	}

	// Фильтр по спортсмену
	files, total, err := repo.List(ctx, FileListFilters{AthleteID: &athleteID}, "", "", 100, 0)
	if err != nil {
		t.Fatalf("List() вернул ошибку: %v", err)
	}
	if total != 2 || len(files) != 2 {
		t.Errorf("List(athlete) = %d записей (total %d), ожидалось 2", len(files), total)
	}

	// Фильтр по категории
	category := string(model.CategoryVideo)
	files, _, err = repo.List(ctx, FileListFilters{AthleteID: &athleteID, Category: &category}, "", "", 100, 0)
	if err != nil {
		t.Fatalf("List() вернул ошибку: %v", err)
	}
	if len(files) != 1 || files[0].FileID != vid.FileID {
		t.Errorf("List(video) вернул не ту запись")
	}

	// Deleted-записи скрыты по умолчанию
	files, _, err = repo.List(ctx, FileListFilters{}, "", "", 100, 0)
	if err != nil {
		t.Fatalf("List() вернул ошибку: %v", err)
	}
	for _, f := range files {
		if f.FileID == other.FileID {
			t.Error("List() вернул deleted-запись без IncludeDeleted")
		}
	}

	// IncludeDeleted возвращает всё
	files, _, err = repo.List(ctx, FileListFilters{IncludeDeleted: true}, "", "", 100, 0)
	if err != nil {
		t.Fatalf("List() вернул ошибку: %v", err)
	}
	found := false
	for _, f := range files {
		if f.FileID == other.FileID {
			found = true
		}
	}
	if !found {
		t.Error("List(IncludeDeleted) не вернул deleted-запись")
	}
}

// TestFileRepository_ListStalePending проверяет выборку брошенных загрузок.
func TestFileRepository_ListStalePending(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewFileRepository(pool)
	ctx := context.Background()

	stale := newTestFile(nil, model.CategoryImage)
	fresh := newTestFile(nil, model.CategoryImage)
	confirmed := newTestFile(nil, model.CategoryImage)
	for _, f := range []*model.MediaFile{stale, fresh, confirmed} {
		if err := repo.Create(ctx, f); err != nil {
			t.Fatalf("Create() вернул ошибку: %v", err)
		}
	}
	if _, err := repo.ConfirmUpload(ctx, confirmed.FileID, 10, ""); err != nil {
		t.Fatalf("ConfirmUpload() вернул ошибку: %v", err)
	}

	// Состариваем одну pending-запись вручную
	_, err := pool.Exec(ctx,
		`UPDATE media_files SET created_at = now() - interval '48 hours' WHERE file_id = $1`,
		stale.FileID)
	if err != nil {
		t.Fatalf("Не удалось состарить запись: %v", err)
	}

	olderThan := time.Now().Add(-24 * time.Hour)
	result, err := repo.ListStalePending(ctx, olderThan, 100)
	if err != nil {
		t.Fatalf("ListStalePending() вернул ошибку: %v", err)
	}

	if len(result) != 1 {
		t.Fatalf("ListStalePending() = %d записей, ожидалась 1", len(result))
	}
	if result[0].FileID != stale.FileID {
		t.Errorf("ListStalePending() вернул не ту запись: %s", result[0].FileID)
	}

	// Условное удаление не трогает confirmed-запись
	if err := repo.PurgeStalePending(ctx, confirmed.FileID); !errors.Is(err, ErrNotFound) {
		t.Errorf("PurgeStalePending(confirmed) = %v, ожидался ErrNotFound", err)
	}
	if _, err := repo.GetByID(ctx, confirmed.FileID); err != nil {
		t.Errorf("confirmed-запись пропала после PurgeStalePending: %v", err)
	}

	// Pending-запись удаляется физически
	if err := repo.PurgeStalePending(ctx, stale.FileID); err != nil {
		t.Fatalf("PurgeStalePending() вернул ошибку: %v", err)
	}
	if _, err := repo.GetByID(ctx, stale.FileID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() после PurgeStalePending = %v, ожидался ErrNotFound", err)
	}
}

// TestAthleteRepository_CRUD проверяет реестр спортсменов.
func TestAthleteRepository_CRUD(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewAthleteRepository(pool)
	ctx := context.Background()

	country := "Россия"
	sport := "бокс"
	a := &model.Athlete{
		ID:      uuid.New().String(),
		Name:    "Иван Петров",
		Country: &country,
		Sport:   &sport,
	}

	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create() вернул ошибку: %v", err)
	}

	got, err := repo.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetByID() вернул ошибку: %v", err)
	}
	if got.Name != "Иван Петров" {
		t.Errorf("Name = %q, ожидался 'Иван Петров'", got.Name)
	}

	// Обновление
	nick := "Гром"
	updated, err := repo.Update(ctx, a.ID, AthleteUpdate{NickName: &nick})
	if err != nil {
		t.Fatalf("Update() вернул ошибку: %v", err)
	}
	if updated.NickName == nil || *updated.NickName != "Гром" {
		t.Errorf("NickName = %v, ожидался 'Гром'", updated.NickName)
	}

	// Фильтр по имени
	name := "Петров"
	athletes, total, err := repo.List(ctx, AthleteListFilters{Name: &name}, 10, 0)
	if err != nil {
		t.Fatalf("List() вернул ошибку: %v", err)
	}
	if total != 1 || len(athletes) != 1 {
		t.Errorf("List(name) = %d записей (total %d), ожидалась 1", len(athletes), total)
	}

	// Soft delete скрывает запись
	if err := repo.SoftDelete(ctx, a.ID); err != nil {
		t.Fatalf("SoftDelete() вернул ошибку: %v", err)
	}
	if _, err := repo.GetByID(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() после удаления = %v, ожидался ErrNotFound", err)
	}
	if err := repo.SoftDelete(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("повторный SoftDelete() = %v, ожидался ErrNotFound", err)
	}
}
