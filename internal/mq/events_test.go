package mq

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"testing"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/engine"
)

// fakeSender запоминает опубликованные сообщения.
type fakeSender struct {
	keys     []RoutingKey
	messages []*Message
	err      error
}

func (f *fakeSender) Publish(ctx context.Context, exchange Exchange, key RoutingKey, msg *Message) error {
	if exchange != ExchangeEvents {
		return errors.New("unexpected exchange " + string(exchange))
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	f.keys = append(f.keys, key)
	f.messages = append(f.messages, msg)
	return f.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func buildPipeline(t *testing.T, observer engine.Observer) *engine.Pipeline {
	t.Helper()

	ok := engine.NewTask(func(context.Context, engine.Input) (any, error) { return 1, nil })
	boom := engine.NewTask(func(context.Context, engine.Input) (any, error) { return nil, errors.New("boom") })

	p, err := engine.NewLinearPipeline("etl", "", []engine.LinearStep{
		{Name: "load", Task: ok},
		{Name: "save", Task: boom},
	},
		engine.WithLogger(quietLogger()),
		engine.WithObserver(observer),
	)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return p
}

func TestEventPublisher_PublishesRunEvents(t *testing.T) {
	sender := &fakeSender{}
	p := buildPipeline(t, NewEventPublisher(sender, quietLogger()))

	result, err := p.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	expected := []RoutingKey{
		RoutingKeyPipelineStarted,
		RoutingKeyNodeStarted, RoutingKeyNodeCompleted,
		RoutingKeyNodeStarted, RoutingKeyNodeFailed,
		RoutingKeyPipelineFinished,
	}
	if !slices.Equal(sender.keys, expected) {
		t.Fatalf("expected keys %v, got %v", expected, sender.keys)
	}

	failed, ok := sender.messages[4].Payload.(NodeEventPayload)
	if !ok {
		t.Fatalf("unexpected payload type %T", sender.messages[4].Payload)
	}
	if failed.Node != "save" || failed.Error == "" || failed.RunID != result.RunID {
		t.Errorf("unexpected node.failed payload: %+v", failed)
	}

	last := sender.messages[len(sender.messages)-1]
	finished, ok := last.Payload.(PipelineFinishedPayload)
	if !ok {
		t.Fatalf("unexpected payload type %T", last.Payload)
	}
	if finished.Status != string(domain.PipelineStatusFailed) || !slices.Equal(finished.Order, []string{"load", "save"}) {
		t.Errorf("unexpected pipeline.finished payload: %+v", finished)
	}
	if last.Type != MessageTypePipelineFinished || last.ID == "" {
		t.Errorf("unexpected message: %+v", last)
	}
}

func TestEventPublisher_WithoutNodeEvents(t *testing.T) {
	sender := &fakeSender{}
	p := buildPipeline(t, NewEventPublisher(sender, quietLogger(), WithNodeEvents(false)))

	if _, err := p.Execute(context.Background(), nil); err != nil {
		t.Fatalf("execute: %v", err)
	}

	expected := []RoutingKey{RoutingKeyPipelineStarted, RoutingKeyPipelineFinished}
	if !slices.Equal(sender.keys, expected) {
		t.Errorf("expected keys %v, got %v", expected, sender.keys)
	}
}

func TestEventPublisher_SendErrorDoesNotFailRun(t *testing.T) {
	sender := &fakeSender{err: errors.New("broker down")}

	ok := engine.NewTask(func(context.Context, engine.Input) (any, error) { return 1, nil })
	p, err := engine.NewLinearPipeline("ok", "", []engine.LinearStep{{Name: "only", Task: ok}},
		engine.WithLogger(quietLogger()),
		engine.WithObserver(NewEventPublisher(sender, quietLogger())),
	)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	result, err := p.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Status != domain.PipelineStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", result.Status)
	}
}

func TestEventPublisher_FinishedAfterCancel(t *testing.T) {
	sender := &fakeSender{}
	pub := NewEventPublisher(sender, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pub.PipelineFinished(ctx, &domain.ExecutionResult{Pipeline: "etl", Status: domain.PipelineStatusFailed})

	if len(sender.keys) != 1 {
		t.Errorf("finished event should be published after cancel, got %v", sender.keys)
	}
}
