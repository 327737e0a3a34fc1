package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/shaiso/Conveyor/internal/domain"
)

// RunInfo — идентификация запуска, передаётся наблюдателям.
type RunInfo struct {
	RunID    uuid.UUID
	Pipeline string
}

// Observer получает события жизненного цикла запуска.
//
// Методы вызываются синхронно из обхода графа, поэтому должны быть быстрыми.
// Наблюдатель не может повлиять на выполнение: ошибок он не возвращает,
// а паника внутри наблюдателя перехватывается движком.
//
// PipelineStarted, NodeStarted и NodeFinished вызываются под блокировкой Pipeline:
// из них нельзя вызывать методы того же Pipeline (Status, Context, Execute и т.д.),
// это приведёт к взаимной блокировке. Всё нужное передаётся в аргументах.
// PipelineFinished вызывается после снятия блокировки.
//
// Реализации: telemetry.Metrics, mq.EventPublisher, repo.Recorder.
type Observer interface {
	// PipelineStarted вызывается после сброса состояния, до первого узла.
	PipelineStarted(ctx context.Context, run RunInfo)

	// NodeStarted вызывается перед вызовом задачи узла.
	NodeStarted(ctx context.Context, run RunInfo, node string)

	// NodeFinished вызывается после вызова задачи, entry — запись журнала выполнения.
	NodeFinished(ctx context.Context, run RunInfo, entry domain.LogEntry)

	// PipelineFinished вызывается с итоговым результатом запуска, вне блокировки Pipeline.
	PipelineFinished(ctx context.Context, result *domain.ExecutionResult)
}

// NopObserver — пустая реализация Observer. Встраивается, чтобы переопределить только нужные методы.
type NopObserver struct{}

func (NopObserver) PipelineStarted(context.Context, RunInfo) {}
func (NopObserver) NodeStarted(context.Context, RunInfo, string) {}
func (NopObserver) NodeFinished(context.Context, RunInfo, domain.LogEntry) {}
func (NopObserver) PipelineFinished(context.Context, *domain.ExecutionResult) {}

// notify вызывает fn для каждого наблюдателя, перехватывая панику.
func (p *Pipeline) notify(fn func(Observer)) {
	for _, o := range p.observers {
		p.safeNotify(o, fn)
	}
}

func (p *Pipeline) safeNotify(o Observer, fn func(Observer)) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("observer panicked", "pipeline", p.name, "panic", r)
		}
	}()
	fn(o)
}
