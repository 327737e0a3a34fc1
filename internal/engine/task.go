package engine

import (
	"context"
	"fmt"
	"maps"
	"reflect"
)

// ResultKey — ключ, под которым сохраняется результат задачи, если он не является map.
const ResultKey = "result"

// Input — входные данные задачи: только объявленные параметры.
type Input map[string]any

// TaskFunc — тело задачи.
//
// Возвращаемое значение превращается в outputs узла:
//   - map со строковыми ключами копируется как есть;
//   - всё остальное (включая nil) сохраняется под ключом ResultKey.
type TaskFunc func(ctx context.Context, in Input) (any, error)

// Param — объявленный параметр задачи.
type Param struct {
	// Name — имя параметра, по нему значение ищется во входах узла и в контексте.
	Name string

	// Default — значение по умолчанию (учитывается, только если HasDefault).
	Default any

	// HasDefault — у параметра есть значение по умолчанию.
	HasDefault bool
}

// Required объявляет обязательный параметр.
func Required(name string) Param {
	return Param{Name: name}
}

// Optional объявляет параметр со значением по умолчанию.
func Optional(name string, def any) Param {
	return Param{Name: name, Default: def, HasDefault: true}
}

// Task — задача, которую выполняет узел.
//
// Движок не знает, что внутри задачи. Он передаёт ей только те ключи,
// которые задача объявила в Params.
type Task interface {
	// Params возвращает объявленные параметры.
	Params() []Param

	// Run выполняет задачу.
	Run(ctx context.Context, in Input) (any, error)
}

type funcTask struct {
	params []Param
	fn     TaskFunc
}

func (t *funcTask) Params() []Param {
	return t.params
}

func (t *funcTask) Run(ctx context.Context, in Input) (any, error) {
	return t.fn(ctx, in)
}

// NewTask создаёт Task из функции и списка параметров.
// Возвращает nil, если fn == nil (NewNode отклонит такую задачу).
func NewTask(fn TaskFunc, params ...Param) Task {
	if fn == nil {
		return nil
	}
	return &funcTask{params: params, fn: fn}
}

// Func создаёт Task, у которой все перечисленные параметры обязательные.
func Func(fn TaskFunc, names ...string) Task {
	params := make([]Param, len(names))
	for i, name := range names {
		params[i] = Required(name)
	}
	return NewTask(fn, params...)
}

// resolveInput строит входные данные задачи.
//
// Эффективные входы = контекст, поверх которого наложены статические входы узла.
// Из них берутся только объявленные параметры. Параметр без значения и без default
// даёт BindingError.
func resolveInput(task Task, static, shared map[string]any) (Input, error) {
	params := task.Params()
	in := make(Input, len(params))
	var missing []string

	for _, p := range params {
		if v, ok := static[p.Name]; ok {
			in[p.Name] = v
			continue
		}
		if v, ok := shared[p.Name]; ok {
			in[p.Name] = v
			continue
		}
		if p.HasDefault {
			in[p.Name] = p.Default
			continue
		}
		missing = append(missing, p.Name)
	}

	if len(missing) > 0 {
		return nil, &BindingError{Missing: missing}
	}
	return in, nil
}

// callTask вызывает задачу и превращает панику в ошибку.
func callTask(ctx context.Context, task Task, in Input) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanic, r)
		}
	}()
	return task.Run(ctx, in)
}

// coerceOutputs приводит результат задачи к map[string]any.
func coerceOutputs(result any) map[string]any {
	switch v := result.(type) {
	case map[string]any:
		return maps.Clone(v)
	case Input:
		return maps.Clone(map[string]any(v))
	case nil:
		return map[string]any{ResultKey: nil}
	}

	rv := reflect.ValueOf(result)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = iter.Value().Interface()
		}
		return out
	}

	return map[string]any{ResultKey: result}
}

// Get извлекает значение параметра с проверкой типа.
func Get[T any](in Input, key string) (T, error) {
	var zero T
	raw, ok := in[key]
	if !ok {
		return zero, &BindingError{Missing: []string{key}}
	}
	v, ok := raw.(T)
	if !ok {
		return zero, &TypeError{Key: key, Expected: fmt.Sprintf("%T", zero), Actual: raw}
	}
	return v, nil
}

// Int извлекает целое число. Принимает любые целые и float64 (так приходят числа из JSON).
func (in Input) Int(key string) (int, error) {
	switch n := in[key].(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case uint:
		return int(n), nil
	case float64:
		return int(n), nil
	case nil:
		return 0, &BindingError{Missing: []string{key}}
	default:
		return 0, &TypeError{Key: key, Expected: "int", Actual: n}
	}
}

// Float извлекает число с плавающей точкой.
func (in Input) Float(key string) (float64, error) {
	switch n := in[key].(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case nil:
		return 0, &BindingError{Missing: []string{key}}
	default:
		return 0, &TypeError{Key: key, Expected: "float64", Actual: n}
	}
}

// String извлекает строку.
func (in Input) String(key string) (string, error) {
	return Get[string](in, key)
}

// Bool извлекает булево значение.
func (in Input) Bool(key string) (bool, error) {
	return Get[bool](in, key)
}
