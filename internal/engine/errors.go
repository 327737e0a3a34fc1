package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Ошибки построения графа.
var (
	// ErrInvalidArgument — некорректные аргументы при создании узла (пустое имя, nil задача).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDuplicateName — узел с таким именем уже есть в pipeline.
	ErrDuplicateName = errors.New("duplicate node name")

	// ErrUnknownNode — ребро ссылается на узел, которого нет в pipeline.
	ErrUnknownNode = errors.New("unknown node")

	// ErrNoStartNode — у pipeline нет стартового узла.
	ErrNoStartNode = errors.New("no start node defined for pipeline")

	// ErrCyclicDependency — в графе есть цикл.
	ErrCyclicDependency = errors.New("cyclic dependency detected")
)

// Ошибки выполнения задач.
var (
	// ErrTaskInvocation — задача узла завершилась ошибкой.
	// Этой ошибке соответствует любой *TaskError.
	ErrTaskInvocation = errors.New("task invocation failed")

	// ErrMissingParameter — обязательный параметр задачи не найден ни в контексте, ни во входах узла.
	ErrMissingParameter = errors.New("missing required parameter")

	// ErrTypeMismatch — значение параметра имеет неожиданный тип.
	ErrTypeMismatch = errors.New("parameter type mismatch")

	// ErrTaskPanic — задача запаниковала.
	ErrTaskPanic = errors.New("task panicked")
)

// GraphError — ошибка построения графа с контекстом.
type GraphError struct {
	Node    string // имя узла, где произошла ошибка
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *GraphError) Error() string {
	if e.Node != "" {
		return "node " + e.Node + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *GraphError) Unwrap() error {
	return e.Err
}

// NewGraphError создаёт новую ошибку построения графа.
func NewGraphError(node, message string, err error) *GraphError {
	return &GraphError{
		Node:    node,
		Message: message,
		Err:     err,
	}
}

// TaskError — ошибка вызова задачи узла.
//
// errors.Is(err, ErrTaskInvocation) истинно для любого TaskError,
// а Unwrap возвращает исходную ошибку задачи.
type TaskError struct {
	Node string
	Err  error
}

// Error реализует интерфейс error.
func (e *TaskError) Error() string {
	return fmt.Sprintf("node %q failed: %v", e.Node, e.Err)
}

// Unwrap возвращает исходную ошибку задачи.
func (e *TaskError) Unwrap() error {
	return e.Err
}

// Is сопоставляет TaskError с ErrTaskInvocation.
func (e *TaskError) Is(target error) bool {
	return target == ErrTaskInvocation
}

// BindingError — задаче не хватило обязательных параметров.
type BindingError struct {
	Missing []string
}

// Error реализует интерфейс error.
func (e *BindingError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingParameter, strings.Join(e.Missing, ", "))
}

// Unwrap возвращает ErrMissingParameter.
func (e *BindingError) Unwrap() error {
	return ErrMissingParameter
}

// TypeError — значение параметра нельзя привести к нужному типу.
type TypeError struct {
	Key      string
	Expected string
	Actual   any
}

// Error реализует интерфейс error.
func (e *TypeError) Error() string {
	return fmt.Sprintf("%s: %s: expected %s, got %T", ErrTypeMismatch, e.Key, e.Expected, e.Actual)
}

// Unwrap возвращает ErrTypeMismatch.
func (e *TypeError) Unwrap() error {
	return ErrTypeMismatch
}
