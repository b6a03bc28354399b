package service

import (
	"testing"
	"time"

	"github.com/bigkaa/gomediastore/internal/domain/lifecycle"
	"github.com/bigkaa/gomediastore/internal/domain/model"
)

// TestCacheService_GetSet проверяет базовые операции Get/Set.
func TestCacheService_GetSet(t *testing.T) {
	cache := NewCacheService(100, 5*time.Minute)

	file := &model.MediaFile{
		FileID:           "test-uuid-1",
		OriginalFilename: "photo.jpg",
		ContentType:      "image/jpeg",
		Category:         model.CategoryImage,
		Status:           lifecycle.StatusConfirmed,
	}

	// Cache miss
	_, ok := cache.Get("test-uuid-1")
	if ok {
		t.Fatal("ожидался cache miss для нового ключа")
	}

	// Set + cache hit
	cache.Set("test-uuid-1", file)
	got, ok := cache.Get("test-uuid-1")
	if !ok {
		t.Fatal("ожидался cache hit после Set")
	}
	if got.FileID != "test-uuid-1" {
		t.Errorf("FileID = %q, ожидался %q", got.FileID, "test-uuid-1")
	}
	if got.OriginalFilename != "photo.jpg" {
		t.Errorf("OriginalFilename = %q, ожидался %q", got.OriginalFilename, "photo.jpg")
	}
}

// TestCacheService_Delete проверяет удаление из кэша (инвалидация).
func TestCacheService_Delete(t *testing.T) {
	cache := NewCacheService(100, 5*time.Minute)

	file := &model.MediaFile{
		FileID: "delete-me",
		Status: lifecycle.StatusConfirmed,
	}

	cache.Set("delete-me", file)

	// Проверяем что запись есть
	_, ok := cache.Get("delete-me")
	if !ok {
		t.Fatal("ожидался cache hit перед удалением")
	}

	// Удаляем
	cache.Delete("delete-me")

	// Проверяем что записи больше нет
	_, ok = cache.Get("delete-me")
	if ok {
		t.Fatal("ожидался cache miss после Delete")
	}
}

// TestCacheService_TTLExpiration проверяет автоматическое истечение TTL.
func TestCacheService_TTLExpiration(t *testing.T) {
	// Короткий TTL = 50ms для теста
	cache := NewCacheService(100, 50*time.Millisecond)

	file := &model.MediaFile{
		FileID: "ttl-test",
		Status: lifecycle.StatusConfirmed,
	}

	cache.Set("ttl-test", file)

	// Сразу после Set — должен быть hit
	_, ok := cache.Get("ttl-test")
	if !ok {
		t.Fatal("ожидался cache hit сразу после Set")
	}

	// Ждём истечения TTL
	time.Sleep(100 * time.Millisecond)

	// После истечения TTL — должен быть miss
	_, ok = cache.Get("ttl-test")
	if ok {
		t.Fatal("ожидался cache miss после истечения TTL")
	}
}

// TestCacheService_Eviction проверяет вытеснение при превышении maxSize.
func TestCacheService_Eviction(t *testing.T) {
	// Кэш на 2 записи
	cache := NewCacheService(2, 5*time.Minute)

	f1 := &model.MediaFile{FileID: "f1", Status: lifecycle.StatusConfirmed}
	f2 := &model.MediaFile{FileID: "f2", Status: lifecycle.StatusConfirmed}
	f3 := &model.MediaFile{FileID: "f3", Status: lifecycle.StatusConfirmed}

	cache.Set("f1", f1)
	cache.Set("f2", f2)

	// Обе записи в кэше
	if _, ok := cache.Get("f1"); !ok {
		t.Fatal("ожидался cache hit для f1")
	}
	if _, ok := cache.Get("f2"); !ok {
		t.Fatal("ожидался cache hit для f2")
	}

	// Добавляем третью — f1 должен быть вытеснен (LRU: последний Get был для f2)
	cache.Set("f3", f3)

	// f3 должна быть в кэше
	if _, ok := cache.Get("f3"); !ok {
		t.Fatal("ожидался cache hit для f3")
	}
}

// TestCacheService_Update проверяет обновление записи в кэше.
func TestCacheService_Update(t *testing.T) {
	cache := NewCacheService(100, 5*time.Minute)

	file1 := &model.MediaFile{
		FileID:     "update-test",
		Visibility: model.VisibilityPrivate,
		Status:     lifecycle.StatusConfirmed,
	}
	file2 := &model.MediaFile{
		FileID:     "update-test",
		Visibility: model.VisibilityPublic,
		Status:     lifecycle.StatusConfirmed,
	}

	cache.Set("update-test", file1)
	cache.Set("update-test", file2)

	got, ok := cache.Get("update-test")
	if !ok {
		t.Fatal("ожидался cache hit после обновления")
	}
	if got.Visibility != model.VisibilityPublic {
		t.Errorf("Visibility = %q, ожидался %q", got.Visibility, model.VisibilityPublic)
	}
}
