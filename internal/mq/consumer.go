package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Ошибки разбора сообщений.
var (
	// ErrMalformedMessage — тело сообщения не является конвертом Message.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrUnknownEvent — тип сообщения не относится к событиям запуска.
	ErrUnknownEvent = errors.New("unknown event type")
)

// Event — событие запуска, прочитанное из очереди.
// Поля, которых нет в конкретном типе события, остаются нулевыми.
type Event struct {
	MessageID string        `json:"message_id"`
	Type      MessageType   `json:"type"`
	Time      time.Time     `json:"time"`
	RunID     uuid.UUID     `json:"run_id"`
	Pipeline  string        `json:"pipeline"`
	Node      string        `json:"node,omitempty"`
	Status    string        `json:"status,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
	Order     []string      `json:"order,omitempty"`
}

// DecodeMessage разбирает тело AMQP сообщения.
func DecodeMessage(body []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if msg.Type == "" {
		return Message{}, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	}
	return msg, nil
}

// ParsePayload парсит payload сообщения в указанный тип.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	// После DecodeMessage payload — map[string]any, а не исходная структура
	payloadBytes, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}

	if err := json.Unmarshal(payloadBytes, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}

	return result, nil
}

// DecodeEvent разбирает сообщение conveyor.events в Event по его типу.
func DecodeEvent(body []byte) (Event, error) {
	msg, err := DecodeMessage(body)
	if err != nil {
		return Event{}, err
	}

	ev := Event{MessageID: msg.ID, Type: msg.Type, Time: msg.Timestamp}

	switch msg.Type {
	case MessageTypePipelineStarted:
		p, err := ParsePayload[PipelineStartedPayload](&msg)
		if err != nil {
			return Event{}, err
		}
		ev.RunID, ev.Pipeline = p.RunID, p.Pipeline

	case MessageTypePipelineFinished:
		p, err := ParsePayload[PipelineFinishedPayload](&msg)
		if err != nil {
			return Event{}, err
		}
		ev.RunID, ev.Pipeline, ev.Status, ev.Error = p.RunID, p.Pipeline, p.Status, p.Error
		ev.Order = p.Order
		ev.Duration = time.Duration(p.DurationMsec) * time.Millisecond

	case MessageTypeNodeStarted, MessageTypeNodeCompleted, MessageTypeNodeFailed:
		p, err := ParsePayload[NodeEventPayload](&msg)
		if err != nil {
			return Event{}, err
		}
		ev.RunID, ev.Pipeline, ev.Node, ev.Status, ev.Error = p.RunID, p.Pipeline, p.Node, p.Status, p.Error
		ev.Duration = time.Duration(p.DurationMsec) * time.Millisecond

	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownEvent, msg.Type)
	}

	return ev, nil
}

// EventHandler обрабатывает одно событие.
// Ошибка отклоняет сообщение (nack), nil подтверждает его (ack).
type EventHandler func(ctx context.Context, ev Event) error

// ConsumerConfig — конфигурация Consumer.
type ConsumerConfig struct {
	// Queue — очередь событий (QueueRunsFinished или QueueNodeEvents).
	Queue Queue

	// Handler — обработчик событий.
	Handler EventHandler

	// Prefetch — сколько неподтверждённых сообщений брокер отдаёт заранее. По умолчанию 1.
	Prefetch int

	// RequeueOnError — вернуть сообщение в очередь при ошибке обработчика.
	// Иначе сообщение уходит в dlq.events.
	RequeueOnError bool

	// Tag — consumer tag. По умолчанию conveyor-<queue>-<случайный суффикс>.
	Tag string
}

// ConsumerStats — счётчики обработанных сообщений.
type ConsumerStats struct {
	Handled  int64
	Rejected int64
}

// Consumer читает события запусков из очереди и переподписывается после переподключения.
type Consumer struct {
	conn   *Connection
	logger *slog.Logger
	cfg    ConsumerConfig

	handled  atomic.Int64
	rejected atomic.Int64
}

// NewConsumer создаёт Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	if cfg.Tag == "" {
		cfg.Tag = fmt.Sprintf("conveyor-%s-%s", cfg.Queue, uuid.NewString()[:8])
	}

	return &Consumer{
		conn:   conn,
		logger: logger.With("queue", cfg.Queue),
		cfg:    cfg,
	}
}

// Stats возвращает счётчики сообщений.
func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{Handled: c.handled.Load(), Rejected: c.rejected.Load()}
}

// Run читает очередь до отмены ctx. Отмена — штатное завершение, ошибка не возвращается.
// При потере соединения Run ждёт переподключения и подписывается заново.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if err := c.conn.WaitConnected(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		deliveries, err := c.subscribe(ctx)
		if err != nil {
			c.logger.Warn("subscribe failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		c.logger.Info("consuming events", "tag", c.cfg.Tag, "prefetch", c.cfg.Prefetch)

		if c.drain(ctx, deliveries) {
			c.unsubscribe()
			return nil
		}
		c.logger.Warn("delivery channel closed, resubscribing")
	}
}

// subscribe настраивает prefetch и начинает потребление.
func (c *Consumer) subscribe(ctx context.Context) (<-chan amqp.Delivery, error) {
	var deliveries <-chan amqp.Delivery

	err := c.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
			return fmt.Errorf("set qos: %w", err)
		}

		d, err := ch.Consume(string(c.cfg.Queue), c.cfg.Tag, false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("consume %s: %w", c.cfg.Queue, err)
		}
		deliveries = d
		return nil
	})

	return deliveries, err
}

func (c *Consumer) unsubscribe() {
	err := c.conn.WithChannel(context.Background(), func(ch *amqp.Channel) error {
		return ch.Cancel(c.cfg.Tag, false)
	})
	if err != nil && !errors.Is(err, ErrNotConnected) {
		c.logger.Debug("cancel subscription", "error", err)
	}
}

// drain обрабатывает доставки. Возвращает true, если остановлен отменой ctx,
// false, если брокер закрыл канал доставок.
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) bool {
	for {
		select {
		case <-ctx.Done():
			return true
		case d, ok := <-deliveries:
			if !ok {
				return false
			}
			c.handle(ctx, d)
		}
	}
}

// handle разбирает событие, вызывает обработчик и подтверждает или отклоняет сообщение.
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	ev, err := DecodeEvent(d.Body)
	if err != nil {
		c.logger.Error("dropping undecodable event",
			"message_id", d.MessageId,
			"error", err,
		)
		c.reject(d, false)
		return
	}

	if err := c.cfg.Handler(ctx, ev); err != nil {
		c.logger.Error("event handler failed",
			"type", ev.Type,
			"run_id", ev.RunID,
			"error", err,
		)
		c.reject(d, c.cfg.RequeueOnError)
		return
	}

	if err := d.Ack(false); err != nil {
		c.logger.Warn("ack failed", "message_id", ev.MessageID, "error", err)
	}
	c.handled.Add(1)
}

func (c *Consumer) reject(d amqp.Delivery, requeue bool) {
	if err := d.Nack(false, requeue); err != nil {
		c.logger.Warn("nack failed", "message_id", d.MessageId, "error", err)
	}
	c.rejected.Add(1)
}
