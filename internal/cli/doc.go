// Package cli реализует команды утилиты conveyor.
//
// # Обзор
//
// CLI загружает файл определения pipeline (JSON или YAML), строит pipeline
// со встроенными шагами (delay, http, set, transform) и выполняет его в текущем процессе.
// История запусков, события и метрики подключаются флагами как наблюдатели запуска.
//
// # Ключевые компоненты
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Warn/Error) — в stderr.
// Это позволяет использовать pipe: conveyor run etl.yaml --json | jq .final_context
//
// ## Commands
//
//   - run: однократный запуск (--input, --continue-on-error, --store, --publish, --metrics-addr)
//   - schedule: повторный запуск по cron или интервалу
//   - graph, validate, export: работа с определением без выполнения
//   - history: list, show — чтение истории из PostgreSQL
//   - events: чтение опубликованных событий из RabbitMQ
//
// Каждая команда создаётся фабричной функцией (NewRunCmd и т.д.),
// принимающей outputFn — замыкание для ленивого создания Output
// после парсинга PersistentFlags.
package cli
