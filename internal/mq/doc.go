// Package mq публикует события запусков в RabbitMQ и читает их обратно.
//
// Структура:
//   - connection.go — соединение с RabbitMQ (Dial, переподключение с backoff)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений
//   - events.go     — EventPublisher: наблюдатель запусков, публикующий события
//   - consumer.go   — разбор событий (DecodeEvent) и Consumer для очередей
//
// Типы сообщений:
//   - pipeline.started, pipeline.finished — начало и итог запуска
//   - node.started, node.completed, node.failed — попытки выполнения узлов
//
// Exchanges:
//   - conveyor.events — topic обменник событий
//   - conveyor.dlq    — dead letter queue
package mq
