package api

import (
	"context"
	"testing"
)

func TestSpec_Valid(t *testing.T) {
	doc, err := Spec(context.Background())
	if err != nil {
		t.Fatalf("Spec: %v", err)
	}

	if doc.Info == nil || doc.Info.Title == "" {
		t.Error("в спецификации отсутствует info.title")
	}
}

func TestSpec_ContainsRoutes(t *testing.T) {
	doc, err := Spec(context.Background())
	if err != nil {
		t.Fatalf("Spec: %v", err)
	}

	// Ключевые маршруты, на которые завязаны клиенты
	routes := []string{
		"/health/live",
		"/health/ready",
		"/api/v1/files",
		"/api/v1/files/upload/presigned",
		"/api/v1/files/upload/direct",
		"/api/v1/files/{file_id}",
		"/api/v1/files/{file_id}/confirm",
		"/api/v1/files/{file_id}/download",
		"/api/v1/athletes",
		"/api/v1/athletes/{athlete_id}",
		"/stream/{file_id}/video",
		"/stream/{file_id}/image",
		"/stream/{file_id}/raw",
		"/stream/{file_id}/info",
	}

	for _, route := range routes {
		if doc.Paths.Find(route) == nil {
			t.Errorf("маршрут %s отсутствует в спецификации", route)
		}
	}
}

func TestSpecYAML_NotEmpty(t *testing.T) {
	if len(SpecYAML()) == 0 {
		t.Fatal("встроенная спецификация пуста")
	}
}
