package engine

import (
	"fmt"
	"strings"

	"github.com/shaiso/Conveyor/internal/domain"
)

// EmptyPipelineView возвращается Visualize, если у pipeline нет стартового узла.
const EmptyPipelineView = "Empty pipeline"

// Visualize возвращает текстовое дерево pipeline.
//
// Формат:
//
//	Pipeline: etl
//	Description: Load, transform and save
//
//	Flow:
//	load [COMPLETED]
//	  (Load raw data)
//	  └─ transform [COMPLETED]
//	    └─ save
//
// Каждый узел выводится один раз, с глубиной первого посещения.
// Статус выводится для всех узлов, кроме PENDING.
// Состояние pipeline не меняется.
func (p *Pipeline) Visualize() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.start == "" {
		return EmptyPipelineView
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\nPipeline: %s", p.name)
	if p.description != "" {
		fmt.Fprintf(&b, "\nDescription: %s", p.description)
	}
	b.WriteString("\n\nFlow:")

	visited := make(map[string]bool, len(p.nodes))
	p.renderNode(&b, p.start, 0, visited)

	return b.String()
}

func (p *Pipeline) renderNode(b *strings.Builder, name string, depth int, visited map[string]bool) {
	if visited[name] {
		return
	}
	visited[name] = true

	node, ok := p.nodes[name]
	if !ok {
		// Висячее ребро: Validate вернёт ErrUnknownNode, здесь просто показываем имя.
		fmt.Fprintf(b, "\n%s%s [UNKNOWN]", treePrefix(depth), name)
		return
	}

	status := ""
	if node.status != domain.NodeStatusPending {
		status = fmt.Sprintf(" [%s]", node.status)
	}
	fmt.Fprintf(b, "\n%s%s%s", treePrefix(depth), node.name, status)

	if node.description != "" && depth == 0 {
		fmt.Fprintf(b, "\n%s(%s)", strings.Repeat("  ", depth+1), node.description)
	}

	for _, next := range node.successors {
		p.renderNode(b, next, depth+1, visited)
	}
}

func treePrefix(depth int) string {
	if depth == 0 {
		return ""
	}
	return strings.Repeat("  ", depth) + "└─ "
}
