package steps

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/engine"
)

// Registry — реестр типов шагов. Потокобезопасен.
//
// Кроме поиска шага по типу, реестр превращает описание узла (domain.NodeDef)
// в engine.Task: выбирает шаг, проверяет его конфиг и оборачивает адаптером.
type Registry struct {
	mu    sync.RWMutex
	steps map[string]Step

	// fallback — тип шага для узлов без type.
	fallback string
}

// NewRegistry создаёт пустой реестр. Узлы без type получают шаг set.
func NewRegistry() *Registry {
	return &Registry{
		steps:    make(map[string]Step),
		fallback: StepTypeSet,
	}
}

// DefaultRegistry создаёт реестр со всеми встроенными шагами.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(NewDelayStep())
	r.Register(NewHTTPStep())
	r.Register(NewTransformStep())
	r.Register(NewSetStep())

	return r
}

// Register регистрирует шаг. Шаг с тем же типом перезаписывается.
func (r *Registry) Register(step Step) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps[step.Type()] = step
}

// Get возвращает шаг по типу или ErrStepNotFound.
func (r *Registry) Get(stepType string) (Step, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	step, exists := r.steps[stepType]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrStepNotFound, stepType)
	}

	return step, nil
}

// Has проверяет, зарегистрирован ли шаг.
func (r *Registry) Has(stepType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.steps[stepType]
	return exists
}

// Types возвращает отсортированный список зарегистрированных типов.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.steps))
}

// Count возвращает количество зарегистрированных шагов.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.steps)
}

// Unregister удаляет шаг из реестра.
func (r *Registry) Unregister(stepType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.steps, stepType)
}

// TaskFor строит задачу узла по его описанию.
//
// Ошибки: ErrStepNotFound для неизвестного type, ErrInvalidConfig,
// если шаг реализует ConfigValidator и отклонил config.
func (r *Registry) TaskFor(def domain.NodeDef) (engine.Task, error) {
	stepType := def.Type
	if stepType == "" {
		stepType = r.fallback
	}

	step, err := r.Get(stepType)
	if err != nil {
		return nil, err
	}

	if v, ok := step.(ConfigValidator); ok {
		if err := v.ValidateConfig(def.Config); err != nil {
			return nil, err
		}
	}

	return NewTask(step, def), nil
}
