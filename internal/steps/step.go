package steps

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/engine"
)

// Ошибки шагов.
var (
	// ErrStepNotFound — тип шага не найден в реестре.
	ErrStepNotFound = errors.New("step type not found")

	// ErrInvalidConfig — невалидная конфигурация шага.
	ErrInvalidConfig = errors.New("invalid step config")

	// ErrStepCancelled — выполнение шага отменено.
	ErrStepCancelled = errors.New("step execution cancelled")
)

// Step — интерфейс для типов шагов.
//
// Каждый тип шага (delay, transform, http, set) реализует этот интерфейс.
// Шаг превращается в engine.Task через NewTask.
type Step interface {
	// Type возвращает тип шага.
	Type() string

	// Execute выполняет шаг и возвращает результат.
	// Шаг должен проверять ctx.Done() для graceful shutdown.
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// ConfigValidator — необязательная проверка конфигурации при загрузке pipeline.
// Шаблонные значения ({{ ... }}) на этом этапе ещё не отрендерены.
type ConfigValidator interface {
	ValidateConfig(config map[string]any) error
}

// Request — входные данные для выполнения шага.
type Request struct {
	// Node — имя узла pipeline.
	Node string

	// Config — конфигурация шага, уже отрендеренная через RenderConfig.
	Config map[string]any

	// Input — объявленные параметры узла, разрешённые движком.
	Input engine.Input
}

// Response — результат выполнения шага.
type Response struct {
	// Outputs — выходные данные шага, сливаются в общий контекст pipeline.
	Outputs map[string]any
}

// NewRequest создаёт новый Request.
func NewRequest(node string, config map[string]any, in engine.Input) *Request {
	if config == nil {
		config = make(map[string]any)
	}
	if in == nil {
		in = make(engine.Input)
	}
	return &Request{
		Node:   node,
		Config: config,
		Input:  in,
	}
}

// NewResponse создаёт новый Response с outputs.
func NewResponse(outputs map[string]any) *Response {
	if outputs == nil {
		outputs = make(map[string]any)
	}
	return &Response{
		Outputs: outputs,
	}
}

// EmptyResponse возвращает пустой Response.
func EmptyResponse() *Response {
	return &Response{
		Outputs: make(map[string]any),
	}
}

// stepTask — адаптер Step → engine.Task для одного узла.
type stepTask struct {
	node   string
	step   Step
	config map[string]any
	params []engine.Param
}

// NewTask создаёт задачу узла из определения.
//
// Параметры задачи — def.Params плюс ключи статических входов def.Inputs
// (иначе движок не передал бы их задаче). Перед каждым вызовом конфиг
// рендерится с Input в качестве данных шаблона: {{ .rows }}.
func NewTask(step Step, def domain.NodeDef) engine.Task {
	names := slices.Clone(def.Params)
	extra := make([]string, 0, len(def.Inputs))
	for key := range def.Inputs {
		if !slices.Contains(names, key) {
			extra = append(extra, key)
		}
	}
	slices.Sort(extra)
	names = append(names, extra...)

	params := make([]engine.Param, len(names))
	for i, name := range names {
		params[i] = engine.Required(name)
	}

	return &stepTask{
		node:   def.Name,
		step:   step,
		config: def.Config,
		params: params,
	}
}

// Params возвращает объявленные параметры.
func (t *stepTask) Params() []engine.Param {
	return t.params
}

// Run рендерит конфиг и выполняет шаг.
func (t *stepTask) Run(ctx context.Context, in engine.Input) (any, error) {
	config, err := RenderConfig(t.config, in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.step.Type(), err)
	}

	resp, err := t.step.Execute(ctx, NewRequest(t.node, config, in))
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return EmptyResponse().Outputs, nil
	}
	return resp.Outputs, nil
}

// GetConfigString извлекает строковое значение из конфига.
func GetConfigString(config map[string]any, key string) string {
	if v, ok := config[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetConfigInt извлекает числовое значение из конфига.
// Строки (результат рендеринга шаблона) парсятся как целые числа.
func GetConfigInt(config map[string]any, key string) int {
	if v, ok := config[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		case string:
			if i, err := strconv.Atoi(n); err == nil {
				return i
			}
		}
	}
	return 0
}

// GetConfigBool извлекает булево значение из конфига.
func GetConfigBool(config map[string]any, key string, defaultVal bool) bool {
	if v, ok := config[key]; ok {
		switch b := v.(type) {
		case bool:
			return b
		case string:
			if parsed, err := strconv.ParseBool(b); err == nil {
				return parsed
			}
		}
	}
	return defaultVal
}

// GetConfigMap извлекает map из конфига.
func GetConfigMap(config map[string]any, key string) map[string]any {
	if v, ok := config[key]; ok {
		if m, ok := v.(map[string]any); ok {
			return m
		}
	}
	return nil
}

// GetConfigMapString извлекает map[string]string из конфига.
func GetConfigMapString(config map[string]any, key string) map[string]string {
	if v, ok := config[key]; ok {
		switch m := v.(type) {
		case map[string]string:
			return m
		case map[string]any:
			result := make(map[string]string)
			for k, val := range m {
				if s, ok := val.(string); ok {
					result[k] = s
				}
			}
			return result
		}
	}
	return nil
}

// isTemplate сообщает, содержит ли значение шаблонное выражение.
func isTemplate(v any) bool {
	s, ok := v.(string)
	return ok && containsTemplate(s)
}
