package domain

// NodeStatus — статус узла pipeline.
//
// Жизненный цикл (в рамках одного запуска):
//
//	PENDING → RUNNING → COMPLETED
//	                  ↘ FAILED
//
// Каждый новый запуск pipeline возвращает все узлы в PENDING.
type NodeStatus string

const (
	// NodeStatusPending — узел ещё не выполнялся в текущем запуске.
	NodeStatusPending NodeStatus = "PENDING"

	// NodeStatusRunning — задача узла выполняется прямо сейчас.
	NodeStatusRunning NodeStatus = "RUNNING"

	// NodeStatusCompleted — задача вернулась без ошибки.
	NodeStatusCompleted NodeStatus = "COMPLETED"

	// NodeStatusFailed — задача вернула ошибку, запаниковала или не получила обязательный параметр.
	NodeStatusFailed NodeStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный.
func (s NodeStatus) IsTerminal() bool {
	switch s {
	case NodeStatusCompleted, NodeStatusFailed:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление NodeStatus.
func (s NodeStatus) String() string {
	return string(s)
}

// PipelineStatus — статус pipeline.
//
// Жизненный цикл:
//
//	READY → RUNNING → COMPLETED
//	                ↘ FAILED
//
// После завершения pipeline можно запустить снова — статус опять станет RUNNING.
type PipelineStatus string

const (
	// PipelineStatusReady — pipeline построен, но ни разу не запускался.
	PipelineStatusReady PipelineStatus = "READY"

	// PipelineStatusRunning — идёт обход графа.
	PipelineStatusRunning PipelineStatus = "RUNNING"

	// PipelineStatusCompleted — обход завершён, ошибка до верхнего уровня не дошла.
	PipelineStatusCompleted PipelineStatus = "COMPLETED"

	// PipelineStatusFailed — обход прерван ошибкой узла или отменой контекста.
	PipelineStatusFailed PipelineStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный.
func (s PipelineStatus) IsTerminal() bool {
	switch s {
	case PipelineStatusCompleted, PipelineStatusFailed:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление PipelineStatus.
func (s PipelineStatus) String() string {
	return string(s)
}

// ParsePipelineStatus парсит строку в PipelineStatus.
// Неизвестные значения превращаются в PipelineStatusReady.
func ParsePipelineStatus(s string) PipelineStatus {
	switch s {
	case "RUNNING":
		return PipelineStatusRunning
	case "COMPLETED":
		return PipelineStatusCompleted
	case "FAILED":
		return PipelineStatusFailed
	default:
		return PipelineStatusReady
	}
}
