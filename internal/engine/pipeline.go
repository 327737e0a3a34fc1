package engine

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/shaiso/Conveyor/internal/domain"
)

// Pipeline — граф узлов с одним стартовым узлом и общим контекстом выполнения.
//
// Pipeline строится один раз (AddNode, Connect), затем может запускаться
// сколько угодно раз через Execute. Каждый запуск сбрасывает контекст,
// журнал и состояние узлов.
//
// Методы безопасны для вызова из нескольких горутин: запуски одного pipeline
// выполняются строго по очереди.
type Pipeline struct {
	name        string
	description string

	// nodes — таблица узлов (name → Node), order — порядок добавления.
	nodes map[string]*Node
	order []string

	// start — имя стартового узла.
	start string

	// Состояние последнего запуска.
	context map[string]any
	log     []domain.LogEntry
	status  domain.PipelineStatus

	observers []Observer
	logger    *slog.Logger

	mu sync.Mutex
}

// Option настраивает pipeline при создании.
type Option func(*Pipeline)

// WithPipelineDescription задаёт описание pipeline.
func WithPipelineDescription(description string) Option {
	return func(p *Pipeline) {
		p.description = description
	}
}

// WithLogger задаёт логгер. По умолчанию используется slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithObserver добавляет наблюдателя за выполнением.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		if o != nil {
			p.observers = append(p.observers, o)
		}
	}
}

// NewPipeline создаёт пустой pipeline.
func NewPipeline(name string, opts ...Option) *Pipeline {
	p := &Pipeline{
		name:    name,
		nodes:   make(map[string]*Node),
		context: make(map[string]any),
		status:  domain.PipelineStatusReady,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AddNode регистрирует узел.
//
// Узел становится стартовым, если isStart = true или стартового узла ещё нет.
// Возвращает ErrDuplicateName, если узел с таким именем уже добавлен.
func (p *Pipeline) AddNode(node *Node, isStart bool) error {
	if node == nil {
		return NewGraphError("", "node is nil", ErrInvalidArgument)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.nodes[node.name]; exists {
		return NewGraphError(node.name,
			fmt.Sprintf("duplicate node name: %s", node.name), ErrDuplicateName)
	}

	p.nodes[node.name] = node
	p.order = append(p.order, node.name)

	if isStart || p.start == "" {
		p.start = node.name
	}
	return nil
}

// Connect добавляет ребро from → to.
// Возвращает ErrUnknownNode, если какого-то из узлов нет в pipeline.
func (p *Pipeline) Connect(from, to string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	fromNode, ok := p.nodes[from]
	if !ok {
		return NewGraphError(from, fmt.Sprintf("node '%s' not found in pipeline", from), ErrUnknownNode)
	}
	toNode, ok := p.nodes[to]
	if !ok {
		return NewGraphError(to, fmt.Sprintf("node '%s' not found in pipeline", to), ErrUnknownNode)
	}

	fromNode.ConnectTo(toNode)
	return nil
}

// SetStart явно назначает стартовый узел.
func (p *Pipeline) SetStart(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.nodes[name]; !ok {
		return NewGraphError(name, fmt.Sprintf("node '%s' not found in pipeline", name), ErrUnknownNode)
	}
	p.start = name
	return nil
}

// Name возвращает имя pipeline.
func (p *Pipeline) Name() string { return p.name }

// Description возвращает описание pipeline.
func (p *Pipeline) Description() string { return p.description }

// StartNode возвращает имя стартового узла (пусто, если узлов нет).
func (p *Pipeline) StartNode() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.start
}

// Status возвращает статус последнего запуска.
func (p *Pipeline) Status() domain.PipelineStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Node возвращает узел по имени.
func (p *Pipeline) Node(name string) (*Node, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.nodes[name]
	return n, ok
}

// Nodes возвращает узлы в порядке добавления.
func (p *Pipeline) Nodes() []*Node {
	p.mu.Lock()
	defer p.mu.Unlock()

	nodes := make([]*Node, 0, len(p.order))
	for _, name := range p.order {
		nodes = append(nodes, p.nodes[name])
	}
	return nodes
}

// Size возвращает количество узлов.
func (p *Pipeline) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.nodes)
}

// Context возвращает копию общего контекста последнего запуска.
func (p *Pipeline) Context() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return maps.Clone(p.context)
}

// ExecutionLog возвращает копию журнала последнего запуска.
func (p *Pipeline) ExecutionLog() []domain.LogEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.log)
}
