package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/engine"
	"github.com/shaiso/Conveyor/internal/steps"
	"gopkg.in/yaml.v3"
)

// loadPipeline загружает файл определения со встроенными шагами.
func loadPipeline(path string, logger *slog.Logger, observers ...engine.Observer) (*engine.Pipeline, *domain.PipelineDef, error) {
	opts := []engine.Option{engine.WithLogger(logger)}
	for _, o := range observers {
		opts = append(opts, engine.WithObserver(o))
	}
	return steps.Load(path, steps.DefaultRegistry(), opts...)
}

// parseInputs разбирает пары KEY=VALUE. Значение читается как YAML скаляр:
// "5" становится int, "true" — bool, "[1,2]" — списком, остальное — строкой.
func parseInputs(pairs []string) (map[string]any, error) {
	inputs := make(map[string]any, len(pairs))
	for _, kv := range pairs {
		key, raw, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid input format %q, expected KEY=VALUE", kv)
		}
		inputs[key] = parseValue(raw)
	}
	return inputs, nil
}

func parseValue(raw string) any {
	if raw == "" {
		return ""
	}
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v == nil {
		return raw
	}
	return v
}
