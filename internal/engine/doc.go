// Package engine содержит движок выполнения pipeline.
//
// Pipeline — ориентированный граф именованных узлов (Node). Каждый узел хранит
// задачу (Task), статические входы и имена узлов-преемников. Execute обходит граф
// в глубину от стартового узла, передавая каждому узлу параметры из общего контекста
// и сливая его результат обратно в контекст.
//
// Включает:
//   - node.go      — узел и его состояние в рамках запуска
//   - task.go      — контракт задачи, параметры, Input
//   - pipeline.go  — построение графа
//   - builder.go   — Builder и NewLinearPipeline
//   - validate.go  — проверка ссылок, поиск циклов и недостижимых узлов
//   - execute.go   — обход графа и ExecutionResult
//   - observer.go  — наблюдатели запуска (метрики, история, события)
//   - visualize.go — текстовое дерево pipeline
//   - export.go    — экспорт топологии в JSON и YAML
//
// Pipeline не допускает параллельных запусков: Execute удерживает блокировку
// на всё время обхода. Каждый запуск начинается с чистого состояния.
package engine
