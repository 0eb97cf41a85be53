// Пакет validation — проверка входящих документов по встроенному OpenAPI контракту.
// Контракт (openapi.yaml) загружается один раз при старте через kin-openapi.
package validation

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var openAPISpec []byte

// SchemaPreservationEvent — схема тела уведомления платформы сохранения.
const SchemaPreservationEvent = "PreservationEvent"

// ErrInvalidDocument — документ не соответствует схеме или не является JSON.
var ErrInvalidDocument = errors.New("документ не соответствует контракту")

// Validator — валидатор JSON-документов по схемам из components.schemas.
type Validator struct {
	doc *openapi3.T
}

// New загружает и проверяет встроенный OpenAPI контракт.
func New(ctx context.Context) (*Validator, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openAPISpec)
	if err != nil {
		return nil, fmt.Errorf("загрузка OpenAPI контракта: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("некорректный OpenAPI контракт: %w", err)
	}
	return &Validator{doc: doc}, nil
}

// Validate проверяет raw JSON по схеме name.
// Ошибка несоответствия оборачивает ErrInvalidDocument и указывает путь к полю.
func (v *Validator) Validate(name string, raw []byte) error {
	ref, ok := v.doc.Components.Schemas[name]
	if !ok || ref.Value == nil {
		return fmt.Errorf("схема %q отсутствует в контракте", name)
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return fmt.Errorf("%w: некорректный JSON: %v", ErrInvalidDocument, err)
	}

	if err := ref.Value.VisitJSON(value); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDocument, describe(err))
	}
	return nil
}

// describe сокращает ошибку kin-openapi до «поле: причина».
func describe(err error) string {
	var schemaErr *openapi3.SchemaError
	if errors.As(err, &schemaErr) {
		field := strings.Join(schemaErr.JSONPointer(), ".")
		if field == "" {
			return schemaErr.Reason
		}
		return field + ": " + schemaErr.Reason
	}
	return err.Error()
}
