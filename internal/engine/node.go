package engine

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
)

// Node — узел pipeline: именованная задача со статическими входами и исходящими рёбрами.
//
// Рёбра хранятся как имена узлов-преемников, а не как ссылки на узлы:
// граф адресуется по имени внутри одной таблицы узлов pipeline.
type Node struct {
	name        string
	description string
	task        Task

	// inputs — статические входы, перекрывают одноимённые ключи контекста.
	inputs map[string]any

	// successors — преемники в порядке добавления, без повторов.
	successors []string

	// Состояние последнего вызова.
	status     domain.NodeStatus
	outputs    map[string]any
	err        string
	startedAt  *time.Time
	finishedAt *time.Time
}

// NodeOption настраивает узел при создании.
type NodeOption func(*Node)

// WithInputs задаёт статические входы узла.
func WithInputs(inputs map[string]any) NodeOption {
	return func(n *Node) {
		n.inputs = maps.Clone(inputs)
	}
}

// WithDescription задаёт описание узла.
func WithDescription(description string) NodeOption {
	return func(n *Node) {
		n.description = description
	}
}

// NewNode создаёт узел.
// Возвращает ErrInvalidArgument, если имя пустое или задача не задана.
func NewNode(name string, task Task, opts ...NodeOption) (*Node, error) {
	if name == "" {
		return nil, NewGraphError("", "node name is empty", ErrInvalidArgument)
	}
	if task == nil {
		return nil, NewGraphError(name, "node task is nil", ErrInvalidArgument)
	}

	n := &Node{
		name:    name,
		task:    task,
		status:  domain.NodeStatusPending,
		outputs: make(map[string]any),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.inputs == nil {
		n.inputs = make(map[string]any)
	}

	return n, nil
}

// MustNode — как NewNode, но паникует при ошибке. Удобно в тестах и примерах.
func MustNode(name string, task Task, opts ...NodeOption) *Node {
	n, err := NewNode(name, task, opts...)
	if err != nil {
		panic(fmt.Sprintf("engine: %v", err))
	}
	return n
}

// ConnectTo добавляет other в преемники, если его там ещё нет.
// Проверка на циклы здесь не делается.
func (n *Node) ConnectTo(other *Node) {
	if other == nil {
		return
	}
	if slices.Contains(n.successors, other.name) {
		return
	}
	n.successors = append(n.successors, other.name)
}

// Name возвращает имя узла.
func (n *Node) Name() string { return n.name }

// Description возвращает описание узла.
func (n *Node) Description() string { return n.description }

// Task возвращает задачу узла.
func (n *Node) Task() Task { return n.task }

// Status возвращает текущий статус.
func (n *Node) Status() domain.NodeStatus { return n.status }

// Err возвращает текст ошибки последнего вызова (только для FAILED).
func (n *Node) Err() string { return n.err }

// StartedAt возвращает время начала последнего вызова.
func (n *Node) StartedAt() *time.Time { return n.startedAt }

// FinishedAt возвращает время окончания последнего вызова.
func (n *Node) FinishedAt() *time.Time { return n.finishedAt }

// Successors возвращает копию списка преемников.
func (n *Node) Successors() []string {
	return slices.Clone(n.successors)
}

// Inputs возвращает копию статических входов.
func (n *Node) Inputs() map[string]any {
	return maps.Clone(n.inputs)
}

// Outputs возвращает копию outputs последнего успешного вызова.
func (n *Node) Outputs() map[string]any {
	return maps.Clone(n.outputs)
}

// Duration возвращает длительность последнего вызова.
// Возвращает 0, если узел не выполнялся.
func (n *Node) Duration() time.Duration {
	if n.startedAt == nil || n.finishedAt == nil {
		return 0
	}
	return n.finishedAt.Sub(*n.startedAt)
}

// Snapshot возвращает снимок состояния узла.
func (n *Node) Snapshot() domain.NodeSnapshot {
	return domain.NodeSnapshot{
		Name:          n.name,
		Description:   n.description,
		Status:        n.status,
		StartedAt:     n.startedAt,
		FinishedAt:    n.finishedAt,
		ExecutionTime: n.Duration(),
		Error:         n.err,
		Outputs:       maps.Clone(n.outputs),
	}
}

// reset возвращает узел в исходное состояние перед новым запуском.
func (n *Node) reset() {
	n.status = domain.NodeStatusPending
	n.outputs = make(map[string]any)
	n.err = ""
	n.startedAt = nil
	n.finishedAt = nil
}

func (n *Node) markRunning(now time.Time) {
	n.status = domain.NodeStatusRunning
	n.startedAt = &now
	n.finishedAt = nil
	n.err = ""
}

func (n *Node) markCompleted(now time.Time, outputs map[string]any) {
	n.status = domain.NodeStatusCompleted
	n.finishedAt = &now
	n.outputs = outputs
}

func (n *Node) markFailed(now time.Time, err error) {
	n.status = domain.NodeStatusFailed
	n.finishedAt = &now
	n.err = err.Error()
}
