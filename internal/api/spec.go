// Пакет api — встроенная OpenAPI-спецификация media-service.
// Спецификация раздаётся на /api/v1/openapi.yaml и валидируется при
// старте сервиса: расхождение контракта с исходником ломает запуск.
package api

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

// specYAML — встроенный исходник OpenAPI-спецификации.
//
//go:embed openapi.yaml
var specYAML []byte

// Spec разбирает и валидирует встроенную OpenAPI-спецификацию.
func Spec(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	doc, err := loader.LoadFromData(specYAML)
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора OpenAPI-спецификации: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("ошибка валидации OpenAPI-спецификации: %w", err)
	}
	return doc, nil
}

// SpecYAML возвращает исходник спецификации для раздачи по HTTP.
func SpecYAML() []byte {
	return specYAML
}
