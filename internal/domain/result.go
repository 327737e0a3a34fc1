package domain

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionResult — итог одного запуска pipeline.
//
// Создаётся движком в конце Execute и больше не меняется.
// Результат можно сохранить в историю (repo), опубликовать (mq) или вывести в CLI.
type ExecutionResult struct {
	// RunID — уникальный идентификатор запуска.
	RunID uuid.UUID `json:"run_id"`

	// Pipeline — имя pipeline.
	Pipeline string `json:"pipeline"`

	// Status — итоговый статус: COMPLETED или FAILED.
	Status PipelineStatus `json:"status"`

	// StartedAt — время начала обхода.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt — время окончания обхода.
	FinishedAt time.Time `json:"finished_at"`

	// TotalTime — общее время выполнения (wall-clock).
	TotalTime time.Duration `json:"total_time"`

	// Order — имена узлов в порядке их добавления в pipeline.
	// Map Nodes порядка не хранит, а сводке он нужен.
	Order []string `json:"order"`

	// Nodes — снимок каждого узла (name → snapshot), включая не достигнутые.
	Nodes map[string]NodeSnapshot `json:"nodes"`

	// ExecutionLog — журнал попыток выполнения узлов во временном порядке.
	ExecutionLog []LogEntry `json:"execution_log"`

	// FinalContext — общий контекст после обхода.
	FinalContext map[string]any `json:"final_context"`

	// Error — причина, по которой обход был прерван (ошибка узла или отмена контекста).
	// Пустая строка, если Status = COMPLETED.
	Error string `json:"error,omitempty"`
}

// Succeeded возвращает true, если запуск завершился без ошибки на верхнем уровне.
func (r *ExecutionResult) Succeeded() bool {
	return r.Status == PipelineStatusCompleted
}

// CountByStatus возвращает количество узлов в указанном статусе.
func (r *ExecutionResult) CountByStatus(status NodeStatus) int {
	n := 0
	for _, node := range r.Nodes {
		if node.Status == status {
			n++
		}
	}
	return n
}

// OrderedNodes возвращает снимки узлов в порядке Order.
func (r *ExecutionResult) OrderedNodes() []NodeSnapshot {
	nodes := make([]NodeSnapshot, 0, len(r.Order))
	for _, name := range r.Order {
		if snap, ok := r.Nodes[name]; ok {
			nodes = append(nodes, snap)
		}
	}
	return nodes
}

// NodeSnapshot — состояние узла на момент окончания запуска.
type NodeSnapshot struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Status      NodeStatus `json:"status"`

	// StartedAt и FinishedAt — nil, если узел в этом запуске не выполнялся.
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// ExecutionTime — длительность последнего вызова, 0 если вызова не было.
	ExecutionTime time.Duration `json:"execution_time"`

	// Error — текст ошибки, только для FAILED.
	Error string `json:"error,omitempty"`

	// Outputs — результат последнего успешного вызова.
	Outputs map[string]any `json:"outputs"`
}

// LogEntry — запись журнала выполнения: одна запись на одну попытку вызова узла.
type LogEntry struct {
	Timestamp time.Time  `json:"timestamp"`
	Node      string     `json:"node"`
	Status    NodeStatus `json:"status"`

	// ExecutionTime заполняется для COMPLETED.
	ExecutionTime time.Duration `json:"execution_time,omitempty"`

	// Error заполняется для FAILED.
	Error string `json:"error,omitempty"`
}
