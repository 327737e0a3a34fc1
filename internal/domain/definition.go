package domain

// PipelineDef — описание топологии pipeline.
//
// Используется в двух направлениях:
//   - экспорт: снимок графа (имена, описания, рёбра, стартовый узел), без состояния выполнения;
//   - загрузка: файл определения, где узлы дополнительно описывают тип шага, параметры и конфиг.
//
// Пример (YAML):
//
//	name: etl
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
//	      mappings: {summary: "rows={{ .rows }}"}
type PipelineDef struct {
	// Name — имя pipeline.
	Name string `json:"name" yaml:"name" validate:"required"`

	// Description — описание назначения pipeline.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Nodes — узлы в порядке добавления.
	Nodes []NodeDef `json:"nodes" yaml:"nodes" validate:"required,min=1,unique=Name,dive"`

	// StartNode — имя стартового узла. Если пусто, стартовым становится первый узел.
	StartNode string `json:"start_node,omitempty" yaml:"start_node,omitempty"`
}

// NodeDef — описание одного узла.
type NodeDef struct {
	// Name — уникальное имя узла.
	Name string `json:"name" yaml:"name" validate:"required"`

	// Description — описание узла.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Next — имена узлов-преемников в порядке обхода.
	Next []string `json:"next_nodes,omitempty" yaml:"next_nodes,omitempty" validate:"dive,required"`

	// Type — тип шага (delay, transform, http, set). Только для загрузки.
	Type string `json:"type,omitempty" yaml:"type,omitempty"`

	// Params — имена параметров, которые шаг берёт из контекста. Только для загрузки.
	Params []string `json:"params,omitempty" yaml:"params,omitempty" validate:"dive,required"`

	// Inputs — статические входы узла, перекрывают одноимённые ключи контекста. Только для загрузки.
	Inputs map[string]any `json:"inputs,omitempty" yaml:"inputs,omitempty"`

	// Config — конфигурация шага (зависит от типа). Только для загрузки.
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// Node возвращает определение узла по имени.
func (d *PipelineDef) Node(name string) (*NodeDef, bool) {
	for i := range d.Nodes {
		if d.Nodes[i].Name == name {
			return &d.Nodes[i], true
		}
	}
	return nil, false
}
