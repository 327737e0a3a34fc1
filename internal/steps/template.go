package steps

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/template"
)

// Ошибки шаблонов.
var (
	// ErrTemplateParse — синтаксическая ошибка в шаблоне.
	ErrTemplateParse = errors.New("template parse error")

	// ErrTemplateRender — ошибка при выполнении шаблона.
	ErrTemplateRender = errors.New("template render error")
)

// templateFuncs — дополнительные функции для шаблонов.
var templateFuncs = template.FuncMap{
	// json — сериализует значение в JSON строку
	"json": func(v any) string {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("error: %v", err)
		}
		return string(b)
	},

	// default — возвращает значение по умолчанию, если первый аргумент пустой
	"default": func(def, val any) any {
		if val == nil {
			return def
		}
		if s, ok := val.(string); ok && s == "" {
			return def
		}
		return val
	},

	// coalesce — возвращает первое непустое значение
	"coalesce": func(values ...any) any {
		for _, v := range values {
			if v != nil {
				if s, ok := v.(string); ok && s == "" {
					continue
				}
				return v
			}
		}
		return nil
	},

	"fromJSON": func(s string) any {
		var result any
		if err := json.Unmarshal([]byte(s), &result); err != nil {
			return nil
		}
		return result
	},

	// env — переменная окружения процесса
	"env": os.Getenv,

	// Арифметика над числами из контекста (int из YAML, float64 из JSON).
	"add": func(a, b any) (any, error) { return arith(a, b, '+') },
	"sub": func(a, b any) (any, error) { return arith(a, b, '-') },
	"mul": func(a, b any) (any, error) { return arith(a, b, '*') },
	"div": func(a, b any) (any, error) { return arith(a, b, '/') },

	"join": func(sep string, items []string) string {
		return strings.Join(items, sep)
	},
	"split": func(sep, s string) []string {
		return strings.Split(s, sep)
	},
	"contains":  strings.Contains,
	"hasPrefix": strings.HasPrefix,
	"hasSuffix": strings.HasSuffix,
	"lower":     strings.ToLower,
	"upper":     strings.ToUpper,
	"trim":      strings.TrimSpace,
	"replace":   strings.ReplaceAll,
}

// arith применяет op к двум числам. Если оба целые, результат int64, иначе float64.
func arith(a, b any, op byte) (any, error) {
	ai, aInt := toInt64(a)
	bi, bInt := toInt64(b)
	if aInt && bInt && op != '/' {
		switch op {
		case '+':
			return ai + bi, nil
		case '-':
			return ai - bi, nil
		default:
			return ai * bi, nil
		}
	}

	af, ok := toFloat64(a)
	if !ok {
		return nil, fmt.Errorf("not a number: %v (%T)", a, a)
	}
	bf, ok := toFloat64(b)
	if !ok {
		return nil, fmt.Errorf("not a number: %v (%T)", b, b)
	}

	switch op {
	case '+':
		return af + bf, nil
	case '-':
		return af - bf, nil
	case '*':
		return af * bf, nil
	default:
		if bf == 0 {
			return nil, errors.New("division by zero")
		}
		return af / bf, nil
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

func containsTemplate(s string) bool {
	return strings.Contains(s, "{{")
}

// Render рендерит строковый шаблон. Данные шаблона — параметры узла:
//
//	{{ .rows }}
//	{{ index .response "body" }}
//	{{ env "API_TOKEN" }}
//
// Отсутствующий ключ — ошибка рендеринга, а не "<no value>".
func Render(tmpl string, data map[string]any) (string, error) {
	if !containsTemplate(tmpl) {
		return tmpl, nil
	}

	t, err := template.New("").Funcs(templateFuncs).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}

	return buf.String(), nil
}

// RenderValue рендерит произвольное значение.
// Рекурсивно обрабатывает map и slice, остальные типы возвращает как есть.
func RenderValue(value any, data map[string]any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil

	case string:
		return Render(v, data)

	case map[string]any:
		result := make(map[string]any, len(v))
		for key, val := range v {
			rendered, err := RenderValue(val, data)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			result[key] = rendered
		}
		return result, nil

	case []any:
		result := make([]any, len(v))
		for i, val := range v {
			rendered, err := RenderValue(val, data)
			if err != nil {
				return nil, err
			}
			result[i] = rendered
		}
		return result, nil

	case map[string]string:
		result := make(map[string]string, len(v))
		for key, val := range v {
			rendered, err := Render(val, data)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			result[key] = rendered
		}
		return result, nil

	default:
		return value, nil
	}
}

// RenderConfig рендерит конфигурацию шага.
func RenderConfig(config map[string]any, data map[string]any) (map[string]any, error) {
	if config == nil {
		return make(map[string]any), nil
	}

	rendered, err := RenderValue(config, data)
	if err != nil {
		return nil, err
	}

	result, ok := rendered.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected map, got %T", ErrTemplateRender, rendered)
	}
	return result, nil
}
