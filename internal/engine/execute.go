package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Conveyor/internal/domain"
)

// ExecuteOption настраивает один запуск.
type ExecuteOption func(*executeConfig)

type executeConfig struct {
	stopOnError bool
	runID       uuid.UUID
}

// WithStopOnError задаёт политику ошибок.
//
// true (по умолчанию): первая же ошибка узла прерывает весь обход.
// false: ошибка фиксируется в узле, обход продолжается в его преемников.
func WithStopOnError(stop bool) ExecuteOption {
	return func(c *executeConfig) {
		c.stopOnError = stop
	}
}

// WithRunID задаёт идентификатор запуска. По умолчанию генерируется uuid.New().
func WithRunID(id uuid.UUID) ExecuteOption {
	return func(c *executeConfig) {
		c.runID = id
	}
}

// Execute запускает pipeline со стартового узла.
//
// Алгоритм:
//  1. Сброс контекста (копия initial), журнала и состояния узлов.
//  2. Обход в глубину от стартового узла. Узел, уже COMPLETED в этом запуске,
//     повторно не вызывается, но его преемники посещаются снова: так упавший ниже узел
//     получает шанс выполниться с накопленным контекстом. Общий узел ромбовидного графа
//     выполняется один раз. Узел с текущего пути пропускается, поэтому циклы конечны.
//  3. Для каждого узла: разрешение параметров, вызов задачи, слияние outputs в контекст
//     (последний записавший выигрывает), запись в журнал.
//  4. Итоговый статус: COMPLETED, если ошибка не дошла до верхнего уровня, иначе FAILED.
//
// Ошибка возвращается только для некорректного графа (ErrNoStartNode, ErrUnknownNode).
// Ошибки задач в ошибку Execute не превращаются: они видны в Result.Status,
// в снимках узлов и в журнале.
//
// Отмена ctx проверяется только между узлами: уже запущенная задача не прерывается движком.
func (p *Pipeline) Execute(ctx context.Context, initial map[string]any, opts ...ExecuteOption) (*domain.ExecutionResult, error) {
	cfg := executeConfig{stopOnError: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.runID == uuid.Nil {
		cfg.runID = uuid.New()
	}

	var result *domain.ExecutionResult
	err := func() error {
		p.mu.Lock()
		defer p.mu.Unlock()

		var err error
		result, err = p.executeLocked(ctx, initial, cfg)
		return err
	}()
	if err != nil {
		return nil, err
	}

	// Итог отдаётся наблюдателям после снятия блокировки: здесь им доступны методы Pipeline.
	p.notify(func(o Observer) { o.PipelineFinished(ctx, result) })

	return result, nil
}

// executeLocked выполняет один запуск. Вызывается под p.mu.
func (p *Pipeline) executeLocked(ctx context.Context, initial map[string]any, cfg executeConfig) (*domain.ExecutionResult, error) {
	if err := p.validateLocked(); err != nil {
		return nil, err
	}

	run := RunInfo{RunID: cfg.runID, Pipeline: p.name}
	logger := p.logger.With("run_id", run.RunID, "pipeline", p.name)

	// 1. Сброс состояния
	p.context = maps.Clone(initial)
	if p.context == nil {
		p.context = make(map[string]any)
	}
	p.log = nil
	p.status = domain.PipelineStatusRunning
	for _, node := range p.nodes {
		node.reset()
	}

	startedAt := time.Now()
	logger.Info("starting pipeline",
		"description", p.description,
		"start_node", p.start,
		"stop_on_error", cfg.stopOnError,
	)
	p.notify(func(o Observer) { o.PipelineStarted(ctx, run) })

	// 2. Обход
	w := &walker{p: p, ctx: ctx, run: run, cfg: cfg, logger: logger, onPath: map[string]bool{}}
	walkErr := w.visit(p.start)

	finishedAt := time.Now()
	if walkErr == nil {
		p.status = domain.PipelineStatusCompleted
	} else {
		p.status = domain.PipelineStatusFailed
	}

	result := p.buildResult(run, startedAt, finishedAt, walkErr)

	if walkErr != nil {
		logger.Error("pipeline failed", "error", walkErr, "duration", result.TotalTime)
	} else {
		logger.Info("pipeline completed", "duration", result.TotalTime)
	}
	p.logSummary(logger, result)

	return result, nil
}

// walker хранит состояние одного обхода.
type walker struct {
	p      *Pipeline
	ctx    context.Context
	run    RunInfo
	cfg    executeConfig
	logger *slog.Logger

	// onPath — узлы на текущем пути обхода.
	onPath map[string]bool
}

// visit обходит узел и его преемников в глубину.
// Возвращает ошибку, если обход нужно прервать.
func (w *walker) visit(name string) error {
	node := w.p.nodes[name]

	// Узел уже на текущем пути обхода: граф содержит цикл.
	if w.onPath[name] {
		w.logger.Debug("cycle detected, skipping node", "node", name)
		return nil
	}

	w.onPath[name] = true
	defer delete(w.onPath, name)

	// Правило идемпотентности: выполненный в этом запуске узел повторно не вызывается,
	// но обход продолжается в его преемников.
	if node.status == domain.NodeStatusCompleted {
		w.logger.Debug("node already completed, visiting successors", "node", name)
		return w.visitSuccessors(node)
	}

	// Отмена проверяется только на границе вызова узла.
	if err := w.ctx.Err(); err != nil {
		return fmt.Errorf("execution cancelled before node %q: %w", name, err)
	}

	// Упавший узел при повторном посещении (только при stopOnError = false)
	// вызывается заново с накопленным к этому моменту контекстом.
	if err := w.invoke(node); err != nil {
		if w.cfg.stopOnError {
			return err
		}
		w.logger.Warn("continuing after node failure", "node", name)
	}

	return w.visitSuccessors(node)
}

func (w *walker) visitSuccessors(node *Node) error {
	for _, next := range node.successors {
		if err := w.visit(next); err != nil {
			return err
		}
	}
	return nil
}

// invoke вызывает задачу узла и обновляет контекст и журнал.
func (w *walker) invoke(node *Node) error {
	p := w.p

	node.markRunning(time.Now())
	w.logger.Info("executing node", "node", node.name, "description", node.description)
	p.notify(func(o Observer) { o.NodeStarted(w.ctx, w.run, node.name) })

	outputs, err := w.call(node)
	finishedAt := time.Now()

	if err != nil {
		taskErr := &TaskError{Node: node.name, Err: err}
		node.markFailed(finishedAt, err)

		entry := domain.LogEntry{
			Timestamp: finishedAt,
			Node:      node.name,
			Status:    domain.NodeStatusFailed,
			Error:     node.err,
		}
		p.log = append(p.log, entry)

		w.logger.Error("node failed", "node", node.name, "error", err, "duration", node.Duration())
		p.notify(func(o Observer) { o.NodeFinished(w.ctx, w.run, entry) })
		return taskErr
	}

	node.markCompleted(finishedAt, outputs)
	maps.Copy(p.context, outputs)

	entry := domain.LogEntry{
		Timestamp:     finishedAt,
		Node:          node.name,
		Status:        domain.NodeStatusCompleted,
		ExecutionTime: node.Duration(),
	}
	p.log = append(p.log, entry)

	w.logger.Info("node completed", "node", node.name, "duration", entry.ExecutionTime)
	p.notify(func(o Observer) { o.NodeFinished(w.ctx, w.run, entry) })
	return nil
}

// call разрешает параметры и вызывает задачу.
func (w *walker) call(node *Node) (map[string]any, error) {
	in, err := resolveInput(node.task, node.inputs, w.p.context)
	if err != nil {
		return nil, err
	}

	result, err := callTask(w.ctx, node.task, in)
	if err != nil {
		return nil, err
	}
	return coerceOutputs(result), nil
}

// buildResult собирает ExecutionResult из текущего состояния.
func (p *Pipeline) buildResult(run RunInfo, startedAt, finishedAt time.Time, walkErr error) *domain.ExecutionResult {
	nodes := make(map[string]domain.NodeSnapshot, len(p.nodes))
	for name, node := range p.nodes {
		nodes[name] = node.Snapshot()
	}

	result := &domain.ExecutionResult{
		RunID:        run.RunID,
		Pipeline:     p.name,
		Status:       p.status,
		StartedAt:    startedAt,
		FinishedAt:   finishedAt,
		TotalTime:    finishedAt.Sub(startedAt),
		Order:        slices.Clone(p.order),
		Nodes:        nodes,
		ExecutionLog: slices.Clone(p.log),
		FinalContext: maps.Clone(p.context),
	}
	if walkErr != nil {
		result.Error = walkErr.Error()
	}
	return result
}

// logSummary пишет в лог итог по каждому узлу.
func (p *Pipeline) logSummary(logger *slog.Logger, result *domain.ExecutionResult) {
	for _, snap := range result.OrderedNodes() {
		args := []any{"node", snap.Name, "status", snap.Status}
		if snap.ExecutionTime > 0 {
			args = append(args, "duration", snap.ExecutionTime)
		}
		if snap.Error != "" {
			args = append(args, "error", snap.Error)
		}
		logger.Info("node summary", args...)
	}
}

// IsCancellation сообщает, был ли запуск прерван отменой контекста.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
