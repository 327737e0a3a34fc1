package mq

import (
	"context"
	"log/slog"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/engine"
)

// EventPublisher — наблюдатель запуска, который публикует события в conveyor.events.
//
// Ошибка публикации не влияет на запуск: она логируется и отбрасывается.
type EventPublisher struct {
	sender  Sender
	logger  *slog.Logger
	timeout time.Duration

	// nodeEvents — публиковать ли события узлов или только начало и итог запуска.
	nodeEvents bool
}

var _ engine.Observer = (*EventPublisher)(nil)

// EventPublisherOption — опция EventPublisher.
type EventPublisherOption func(*EventPublisher)

// WithNodeEvents включает публикацию событий узлов.
func WithNodeEvents(enabled bool) EventPublisherOption {
	return func(e *EventPublisher) {
		e.nodeEvents = enabled
	}
}

// WithPublishTimeout задаёт таймаут одной публикации.
func WithPublishTimeout(d time.Duration) EventPublisherOption {
	return func(e *EventPublisher) {
		e.timeout = d
	}
}

// NewEventPublisher создаёт EventPublisher поверх sender.
func NewEventPublisher(sender Sender, logger *slog.Logger, opts ...EventPublisherOption) *EventPublisher {
	e := &EventPublisher{
		sender:     sender,
		logger:     logger,
		timeout:    5 * time.Second,
		nodeEvents: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PipelineStarted публикует pipeline.started.
func (e *EventPublisher) PipelineStarted(ctx context.Context, run engine.RunInfo) {
	e.send(ctx, RoutingKeyPipelineStarted, NewMessage(MessageTypePipelineStarted, PipelineStartedPayload{
		RunID:    run.RunID,
		Pipeline: run.Pipeline,
	}))
}

// NodeStarted публикует node.started.
func (e *EventPublisher) NodeStarted(ctx context.Context, run engine.RunInfo, node string) {
	if !e.nodeEvents {
		return
	}
	e.send(ctx, RoutingKeyNodeStarted, NewMessage(MessageTypeNodeStarted, NodeEventPayload{
		RunID:    run.RunID,
		Pipeline: run.Pipeline,
		Node:     node,
		Status:   domain.NodeStatusRunning.String(),
	}))
}

// NodeFinished публикует node.completed или node.failed.
func (e *EventPublisher) NodeFinished(ctx context.Context, run engine.RunInfo, entry domain.LogEntry) {
	if !e.nodeEvents {
		return
	}

	key, msgType := RoutingKeyNodeCompleted, MessageTypeNodeCompleted
	if entry.Status == domain.NodeStatusFailed {
		key, msgType = RoutingKeyNodeFailed, MessageTypeNodeFailed
	}

	e.send(ctx, key, NewMessage(msgType, NodeEventPayload{
		RunID:        run.RunID,
		Pipeline:     run.Pipeline,
		Node:         entry.Node,
		Status:       entry.Status.String(),
		Error:        entry.Error,
		DurationMsec: entry.ExecutionTime.Milliseconds(),
	}))
}

// PipelineFinished публикует pipeline.finished с итогом запуска.
func (e *EventPublisher) PipelineFinished(ctx context.Context, result *domain.ExecutionResult) {
	e.send(ctx, RoutingKeyPipelineFinished, NewMessage(MessageTypePipelineFinished, PipelineFinishedPayload{
		RunID:        result.RunID,
		Pipeline:     result.Pipeline,
		Status:       result.Status.String(),
		Error:        result.Error,
		Order:        result.Order,
		DurationMsec: result.TotalTime.Milliseconds(),
	}))
}

func (e *EventPublisher) send(ctx context.Context, key RoutingKey, msg *Message) {
	// Запуск мог быть отменён, а итог всё равно нужно опубликовать
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()

	if err := e.sender.Publish(ctx, ExchangeEvents, key, msg); err != nil {
		e.logger.Warn("failed to publish event",
			"routing_key", key,
			"type", msg.Type,
			"error", err,
		)
	}
}
