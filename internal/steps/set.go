package steps

import (
	"context"
	"fmt"
	"maps"
)

const (
	// StepTypeSet — тип шага, записывающего значения в контекст.
	StepTypeSet = "set"

	configValues = "values"
)

// SetStep записывает в контекст значения из конфигурации.
//
// Строковые значения можно строить из параметров узла:
//
//	params: [name]
//	config:
//	  values:
//	    greeting: "hello, {{ .name }}"
//	    retries: 3
type SetStep struct{}

// NewSetStep создаёт новый SetStep.
func NewSetStep() *SetStep {
	return &SetStep{}
}

// Type возвращает тип шага.
func (s *SetStep) Type() string {
	return StepTypeSet
}

// ValidateConfig проверяет, что values — это map.
func (s *SetStep) ValidateConfig(config map[string]any) error {
	raw, ok := config[configValues]
	if !ok {
		return nil
	}
	if _, ok := raw.(map[string]any); !ok {
		return fmt.Errorf("%w: %s: values must be a map, got %T", ErrInvalidConfig, StepTypeSet, raw)
	}
	return nil
}

// Execute возвращает values как outputs.
func (s *SetStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	return NewResponse(maps.Clone(GetConfigMap(req.Config, configValues))), nil
}
