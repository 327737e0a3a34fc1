package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunRecord — запись истории запусков.
//
// Создаётся из ExecutionResult после завершения запуска и сохраняется в БД.
// Узлы хранятся отдельными записями (NodeRecord), журнал и контекст — как JSON.
type RunRecord struct {
	// ID — идентификатор запуска (совпадает с ExecutionResult.RunID).
	ID uuid.UUID `json:"id"`

	// Pipeline — имя pipeline.
	Pipeline string `json:"pipeline"`

	// Status — итоговый статус запуска.
	Status PipelineStatus `json:"status"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Error — причина прерывания обхода, пусто для COMPLETED.
	Error string `json:"error,omitempty"`

	// Completed и Failed — количество узлов в соответствующих статусах.
	Completed int `json:"completed"`
	Failed    int `json:"failed"`

	// Nodes — узлы в порядке добавления в pipeline.
	// Заполняется только при чтении одного запуска.
	Nodes []NodeRecord `json:"nodes,omitempty"`

	ExecutionLog []LogEntry     `json:"execution_log,omitempty"`
	FinalContext map[string]any `json:"final_context,omitempty"`
}

// NodeRecord — состояние узла в сохранённом запуске.
type NodeRecord struct {
	// Position — позиция узла в порядке добавления.
	Position      int            `json:"position"`
	Name          string         `json:"name"`
	Status        NodeStatus     `json:"status"`
	StartedAt     *time.Time     `json:"started_at,omitempty"`
	FinishedAt    *time.Time     `json:"finished_at,omitempty"`
	ExecutionTime time.Duration  `json:"execution_time"`
	Error         string         `json:"error,omitempty"`
	Outputs       map[string]any `json:"outputs,omitempty"`
}

// Duration возвращает продолжительность запуска.
func (r *RunRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// NewRunRecord строит запись истории по результату запуска.
func NewRunRecord(result *ExecutionResult) *RunRecord {
	rec := &RunRecord{
		ID:           result.RunID,
		Pipeline:     result.Pipeline,
		Status:       result.Status,
		StartedAt:    result.StartedAt,
		FinishedAt:   result.FinishedAt,
		Error:        result.Error,
		Completed:    result.CountByStatus(NodeStatusCompleted),
		Failed:       result.CountByStatus(NodeStatusFailed),
		ExecutionLog: result.ExecutionLog,
		FinalContext: result.FinalContext,
	}

	for i, snap := range result.OrderedNodes() {
		rec.Nodes = append(rec.Nodes, NodeRecord{
			Position:      i,
			Name:          snap.Name,
			Status:        snap.Status,
			StartedAt:     snap.StartedAt,
			FinishedAt:    snap.FinishedAt,
			ExecutionTime: snap.ExecutionTime,
			Error:         snap.Error,
			Outputs:       snap.Outputs,
		})
	}

	return rec
}
