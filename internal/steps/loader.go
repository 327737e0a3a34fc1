package steps

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/engine"
	"gopkg.in/yaml.v3"
)

// ErrInvalidDefinition — файл определения pipeline не прошёл проверку.
var ErrInvalidDefinition = errors.New("invalid pipeline definition")

// Format — формат файла определения.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath определяет формат по расширению файла.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: unsupported file extension %q", ErrInvalidDefinition, filepath.Ext(path))
	}
}

var definitionValidate = validator.New()

// DefinitionError — ошибки проверки определения, по одной на поле или ребро.
type DefinitionError struct {
	Problems []string
}

// Error реализует интерфейс error.
func (e *DefinitionError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidDefinition, strings.Join(e.Problems, "; "))
}

// Unwrap возвращает ErrInvalidDefinition.
func (e *DefinitionError) Unwrap() error {
	return ErrInvalidDefinition
}

// LoadFile читает и проверяет файл определения (.json, .yaml, .yml).
func LoadFile(path string) (*domain.PipelineDef, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	def, err := Decode(bytes.NewReader(data), format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// Decode разбирает определение и проверяет его. Неизвестные поля — ошибка.
func Decode(r io.Reader, format Format) (*domain.PipelineDef, error) {
	var def domain.PipelineDef

	switch format {
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&def); err != nil {
			return nil, fmt.Errorf("%w: decode json: %v", ErrInvalidDefinition, err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&def); err != nil {
			return nil, fmt.Errorf("%w: decode yaml: %v", ErrInvalidDefinition, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrInvalidDefinition, format)
	}

	if err := ValidateDefinition(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

// ValidateDefinition проверяет определение.
//
// Проверяет:
// - Обязательные поля и уникальность имён узлов (validator)
// - Что start_node и next_nodes ссылаются на объявленные узлы
func ValidateDefinition(def *domain.PipelineDef) error {
	var problems []string

	if err := definitionValidate.Struct(def); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
		}
		for _, fe := range verrs {
			problems = append(problems, describeFieldError(fe))
		}
	}

	if def.StartNode != "" {
		if _, ok := def.Node(def.StartNode); !ok {
			problems = append(problems, fmt.Sprintf("start_node %q is not declared", def.StartNode))
		}
	}

	for _, node := range def.Nodes {
		for _, next := range node.Next {
			if next == "" {
				continue
			}
			if _, ok := def.Node(next); !ok {
				problems = append(problems, fmt.Sprintf("node %q: next node %q is not declared", node.Name, next))
			}
		}
	}

	if len(problems) > 0 {
		return &DefinitionError{Problems: problems}
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "PipelineDef.")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must have at least %s element(s)", field, fe.Param())
	case "unique":
		return fmt.Sprintf("%s must have unique %s", field, strings.ToLower(fe.Param()))
	default:
		return fmt.Sprintf("%s failed %q check", field, fe.Tag())
	}
}

// Build строит pipeline из проверенного определения.
//
// Узел без type становится шагом set без values: он ничего не делает,
// поэтому экспортированную топологию можно загрузить и визуализировать.
func Build(def *domain.PipelineDef, registry *Registry, opts ...engine.Option) (*engine.Pipeline, error) {
	if registry == nil {
		registry = DefaultRegistry()
	}

	opts = append([]engine.Option{engine.WithPipelineDescription(def.Description)}, opts...)
	b := engine.NewBuilder(def.Name, opts...)

	for _, nd := range def.Nodes {
		task, err := registry.TaskFor(nd)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", nd.Name, err)
		}

		node, err := engine.NewNode(nd.Name, task,
			engine.WithInputs(nd.Inputs),
			engine.WithDescription(nd.Description),
		)
		if err != nil {
			return nil, err
		}
		b.Add(node)
	}

	for _, nd := range def.Nodes {
		for _, next := range nd.Next {
			b.Connect(nd.Name, next)
		}
	}

	p, err := b.Build()
	if err != nil {
		return nil, err
	}

	if def.StartNode != "" {
		if err := p.SetStart(def.StartNode); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Load читает файл определения и строит pipeline.
func Load(path string, registry *Registry, opts ...engine.Option) (*engine.Pipeline, *domain.PipelineDef, error) {
	def, err := LoadFile(path)
	if err != nil {
		return nil, nil, err
	}

	p, err := Build(def, registry, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, def, nil
}
