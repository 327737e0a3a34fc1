// Package repo хранит историю запусков в PostgreSQL (pgx).
//
// Таблицы:
//   - pipeline_runs — итог запуска, журнал выполнения и финальный контекст (JSONB)
//   - node_runs     — состояние каждого узла запуска
//
// Recorder подключается к pipeline как engine.Observer и сохраняет
// каждый завершённый запуск через RunRepo.
package repo
