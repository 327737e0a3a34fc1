// Package telemetry обеспечивает наблюдаемость запусков pipeline.
//
// Включает:
//   - logging.go — structured logging через slog (LOG_LEVEL, LOG_FORMAT)
//   - metrics.go — Prometheus метрики запусков и узлов (engine.Observer)
//
// Метрики отдаются на /metrics, если CLI запущен с --metrics-addr.
package telemetry
