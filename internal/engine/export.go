package engine

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/shaiso/Conveyor/internal/domain"
	"gopkg.in/yaml.v3"
)

// Definition возвращает снимок топологии pipeline: имена, описания, рёбра и стартовый узел.
// Состояние выполнения (статусы, outputs, контекст) в определение не попадает.
func (p *Pipeline) Definition() domain.PipelineDef {
	p.mu.Lock()
	defer p.mu.Unlock()

	def := domain.PipelineDef{
		Name:        p.name,
		Description: p.description,
		StartNode:   p.start,
		Nodes:       make([]domain.NodeDef, 0, len(p.order)),
	}
	for _, name := range p.order {
		node := p.nodes[name]
		def.Nodes = append(def.Nodes, domain.NodeDef{
			Name:        node.name,
			Description: node.description,
			Next:        slices.Clone(node.successors),
		})
	}
	return def
}

// WriteJSON пишет определение pipeline в JSON с отступом в 2 пробела.
func (p *Pipeline) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p.Definition()); err != nil {
		return fmt.Errorf("encode pipeline definition: %w", err)
	}
	return nil
}

// WriteYAML пишет определение pipeline в YAML.
func (p *Pipeline) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p.Definition()); err != nil {
		return fmt.Errorf("encode pipeline definition: %w", err)
	}
	return enc.Close()
}

// SaveJSON сохраняет определение pipeline в JSON-файл.
func (p *Pipeline) SaveJSON(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if err := p.WriteJSON(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}

	p.logger.Info("pipeline definition saved", "pipeline", p.name, "path", path)
	return nil
}
