package steps

import (
	"context"
	"encoding/json"
	"fmt"
)

const (
	// StepTypeTransform — тип шага трансформации.
	StepTypeTransform = "transform"

	// Ключ конфигурации.
	configMappings = "mappings"
)

// TransformStep — шаг трансформации данных.
//
// Каждое значение mappings — Go template над параметрами узла.
// Результат рендеринга разбирается как JSON (объект, массив, число, bool),
// иначе остаётся строкой.
//
// Конфигурация:
//
//	params: [items, rows]
//	config:
//	  mappings:
//	    total: "{{ len .items }}"
//	    summary: "rows={{ .rows }}"
//
// Outputs:
//
//	{"total": 10, "summary": "rows=100"}
type TransformStep struct{}

// NewTransformStep создаёт новый TransformStep.
func NewTransformStep() *TransformStep {
	return &TransformStep{}
}

// Type возвращает тип шага.
func (s *TransformStep) Type() string {
	return StepTypeTransform
}

// ValidateConfig проверяет, что mappings — это map строк.
func (s *TransformStep) ValidateConfig(config map[string]any) error {
	raw, ok := config[configMappings]
	if !ok {
		return fmt.Errorf("%w: %s: mappings required", ErrInvalidConfig, StepTypeTransform)
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: %s: mappings must be a map, got %T", ErrInvalidConfig, StepTypeTransform, raw)
	}
	for key, val := range m {
		if _, ok := val.(string); !ok {
			return fmt.Errorf("%w: %s: mapping %s must be a string", ErrInvalidConfig, StepTypeTransform, key)
		}
	}
	return nil
}

// Execute выполняет трансформацию. Шаблоны в mappings уже отрендерены.
func (s *TransformStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrStepCancelled, ctx.Err())
	default:
	}

	mappings := GetConfigMapString(req.Config, configMappings)
	if len(mappings) == 0 {
		return EmptyResponse(), nil
	}

	outputs := make(map[string]any, len(mappings))
	for key, rendered := range mappings {
		outputs[key] = s.parseValue(rendered)
	}

	return NewResponse(outputs), nil
}

// parseValue пытается распарсить строку как JSON.
// Если не получается — возвращает строку как есть.
func (s *TransformStep) parseValue(value string) any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(value), &obj); err == nil {
		return obj
	}

	var arr []any
	if err := json.Unmarshal([]byte(value), &arr); err == nil {
		return arr
	}

	var num json.Number
	if err := json.Unmarshal([]byte(value), &num); err == nil {
		if i, err := num.Int64(); err == nil {
			return i
		}
		if f, err := num.Float64(); err == nil {
			return f
		}
	}

	switch value {
	case "true":
		return true
	case "false":
		return false
	}

	return value
}
