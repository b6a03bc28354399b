package storage

import (
	"strings"
	"testing"
	"time"
)

func TestBuildKey_WithAthlete(t *testing.T) {
	athleteID := "a1b2c3"
	now := time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)

	key := BuildKey(&athleteID, "photo.JPG", "image/jpeg", now)

	if !strings.HasPrefix(key, "athletes/a1b2c3/2026/03/") {
		t.Errorf("key = %q, ожидался префикс athletes/a1b2c3/2026/03/", key)
	}
	if !strings.HasSuffix(key, ".jpg") {
		t.Errorf("key = %q, ожидалось расширение .jpg в нижнем регистре", key)
	}
}

func TestBuildKey_General(t *testing.T) {
	now := time.Date(2026, 11, 20, 0, 0, 0, 0, time.UTC)

	key := BuildKey(nil, "clip.mp4", "video/mp4", now)

	if !strings.HasPrefix(key, "general/2026/11/") {
		t.Errorf("key = %q, ожидался префикс general/2026/11/", key)
	}
	if !strings.HasSuffix(key, ".mp4") {
		t.Errorf("key = %q, ожидалось расширение .mp4", key)
	}
}

func TestBuildKey_ExtensionFromContentType(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// Имя без расширения: берём расширение из MIME-типа
	key := BuildKey(nil, "snapshot", "image/webp", now)
	if !strings.HasSuffix(key, ".webp") {
		t.Errorf("key = %q, ожидалось расширение .webp из MIME-типа", key)
	}

	// Неизвестный MIME-тип и нет расширения: ключ без расширения
	key = BuildKey(nil, "blob", "application/octet-stream", now)
	if strings.Contains(key[strings.LastIndex(key, "/"):], ".") {
		t.Errorf("key = %q, расширение не ожидалось", key)
	}
}

func TestBuildKey_Unique(t *testing.T) {
	now := time.Now()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key := BuildKey(nil, "a.png", "image/png", now)
		if seen[key] {
			t.Fatalf("ключ %q сгенерирован повторно", key)
		}
		seen[key] = true
	}
}

func TestSafeExt(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"photo.jpg", ".jpg"},
		{"PHOTO.JPG", ".jpg"},
		{"archive.tar.gz", ".gz"},
		{"noext", ""},
		{"trailing.", ""},
		{"bad.j pg", ""},
		{"weird.веб", ""},
		{"too.verylongextension", ""},
	}

	for _, tt := range tests {
		if got := safeExt(tt.filename); got != tt.want {
			t.Errorf("safeExt(%q) = %q, ожидался %q", tt.filename, got, tt.want)
		}
	}
}
