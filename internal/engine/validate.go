package engine

import (
	"fmt"
	"slices"
	"strings"
)

// Validate проверяет структуру pipeline.
//
// Проверяет:
// - Наличие стартового узла
// - Что все рёбра ведут в зарегистрированные узлы
//
// Циклы ошибкой не считаются: обход их не зацикливает (см. FindCycle).
func (p *Pipeline) Validate() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.validateLocked()
}

func (p *Pipeline) validateLocked() error {
	if p.start == "" {
		return ErrNoStartNode
	}

	// Рёбра, добавленные через Node.ConnectTo в обход Pipeline.Connect,
	// могут ссылаться на узлы из другого pipeline.
	for _, name := range p.order {
		for _, next := range p.nodes[name].successors {
			if _, ok := p.nodes[next]; !ok {
				return NewGraphError(name,
					fmt.Sprintf("connected to unknown node: %s", next), ErrUnknownNode)
			}
		}
	}

	return nil
}

// FindCycle возвращает путь одного цикла (первый и последний элемент совпадают)
// или nil, если граф ацикличен. Поиск идёт в глубину в порядке добавления узлов.
func (p *Pipeline) FindCycle() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	const (
		white = iota // не посещён
		grey         // в текущем стеке обхода
		black        // полностью обработан
	)

	color := make(map[string]int, len(p.nodes))
	var stack []string
	var cycle []string

	var visit func(name string) bool
	visit = func(name string) bool {
		color[name] = grey
		stack = append(stack, name)

		node, ok := p.nodes[name]
		if ok {
			for _, next := range node.successors {
				switch color[next] {
				case grey:
					idx := slices.Index(stack, next)
					cycle = append(slices.Clone(stack[idx:]), next)
					return true
				case white:
					if visit(next) {
						return true
					}
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[name] = black
		return false
	}

	for _, name := range p.order {
		if color[name] == white && visit(name) {
			return cycle
		}
	}
	return nil
}

// CheckAcyclic возвращает GraphError с ErrCyclicDependency, если в графе есть цикл.
// Execute циклы допускает, проверка нужна там, где граф обязан быть DAG.
func (p *Pipeline) CheckAcyclic() error {
	cycle := p.FindCycle()
	if cycle == nil {
		return nil
	}
	return NewGraphError(cycle[0],
		fmt.Sprintf("cyclic dependency detected: %s", strings.Join(cycle, " -> ")), ErrCyclicDependency)
}

// Unreachable возвращает узлы, недостижимые из стартового, в порядке добавления.
// Такие узлы после запуска останутся в PENDING.
func (p *Pipeline) Unreachable() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.start == "" {
		return slices.Clone(p.order)
	}

	seen := map[string]bool{}
	var walk func(name string)
	walk = func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		if node, ok := p.nodes[name]; ok {
			for _, next := range node.successors {
				walk(next)
			}
		}
	}
	walk(p.start)

	var out []string
	for _, name := range p.order {
		if !seen[name] {
			out = append(out, name)
		}
	}
	return out
}
