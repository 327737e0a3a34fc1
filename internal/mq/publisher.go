package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypePipelineStarted  MessageType = "pipeline.started"
	MessageTypePipelineFinished MessageType = "pipeline.finished"
	MessageTypeNodeStarted      MessageType = "node.started"
	MessageTypeNodeCompleted    MessageType = "node.completed"
	MessageTypeNodeFailed       MessageType = "node.failed"
)

// Sender — то, во что публикуются сообщения. Реализуется Publisher.
type Sender interface {
	Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

var _ Sender = (*Publisher)(nil)

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage создаёт сообщение с новым ID и текущим временем.
func NewMessage(msgType MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// PipelineStartedPayload — payload начала запуска.
type PipelineStartedPayload struct {
	RunID    uuid.UUID `json:"run_id"`
	Pipeline string    `json:"pipeline"`
}

// NodeEventPayload — payload событий узла.
type NodeEventPayload struct {
	RunID        uuid.UUID `json:"run_id"`
	Pipeline     string    `json:"pipeline"`
	Node         string    `json:"node"`
	Status       string    `json:"status,omitempty"`
	Error        string    `json:"error,omitempty"`
	DurationMsec int64     `json:"duration_ms,omitempty"`
}

// PipelineFinishedPayload — payload завершения запуска.
type PipelineFinishedPayload struct {
	RunID        uuid.UUID `json:"run_id"`
	Pipeline     string    `json:"pipeline"`
	Status       string    `json:"status"`
	Error        string    `json:"error,omitempty"`
	Order        []string  `json:"order"`
	DurationMsec int64     `json:"duration_ms"`
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	// Во время переподключения публикация сразу возвращает ошибку, а не ждёт таймаута
	if !p.conn.IsConnected() {
		return ErrNotConnected
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				AppId:        "conveyor",
				Timestamp:    msg.Timestamp,
				Type:         string(msg.Type),
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}
