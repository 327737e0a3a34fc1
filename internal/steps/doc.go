// Package steps содержит встроенные типы шагов и загрузку pipeline из файлов определения.
//
// # Обзор
//
// Файл определения (JSON или YAML) описывает узлы pipeline. Каждый узел указывает
// тип шага, список параметров из контекста, статические входы и конфигурацию:
//
//	name: etl
//	description: Load, transform and report
//	start_node: load
//	nodes:
//	  - name: load
//	    type: set
//	    config:
//	      values: {rows: 100}
//	    next_nodes: [report]
//	  - name: report
//	    type: transform
//	    params: [rows]
//	    config:
//	      mappings:
//	        summary: "rows={{ .rows }}"
//
// LoadFile разбирает и проверяет файл, Build превращает определение в *engine.Pipeline:
//
//	def, err := steps.LoadFile("etl.yaml")
//	p, err := steps.Build(def, steps.DefaultRegistry(), engine.WithLogger(logger))
//	result, err := p.Execute(ctx, nil)
//
// # Интерфейс Step
//
//	type Step interface {
//	    Type() string
//	    Execute(ctx context.Context, req *Request) (*Response, error)
//	}
//
// Request содержит имя узла, конфигурацию (уже отрендеренную) и Input —
// параметры узла, которые движок взял из статических входов и общего контекста.
// Response.Outputs сливается в общий контекст.
//
// # Шаблоны
//
// Строки конфигурации — Go templates, данные шаблона — Input узла:
//
//	{{ .rows }}
//	{{ json .items }}
//	{{ default "guest" .user }}
//	{{ env "API_TOKEN" }}
//
// Обращение к параметру, которого нет в Input, — ошибка узла.
//
// # Типы шагов
//
//   - delay — пауза (duration_sec, duration_ms или duration)
//   - transform — mappings: ключ → шаблон, результат разбирается как JSON
//   - http — HTTP запрос, outputs: status_code, headers, body
//   - set — записывает values в контекст
//
// Свои типы регистрируются в Registry:
//
//	registry := steps.DefaultRegistry()
//	registry.Register(myStep)
package steps
