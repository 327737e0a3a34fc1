package engine

// Builder собирает pipeline цепочкой вызовов.
//
// Первая ошибка запоминается, последующие вызовы ничего не делают,
// а Build возвращает эту ошибку:
//
//	p, err := engine.NewBuilder("etl").
//		Start(load).
//		Add(transform).
//		Add(save).
//		Connect("load", "transform").
//		Connect("transform", "save").
//		Build()
type Builder struct {
	p   *Pipeline
	err error
}

// NewBuilder создаёт Builder для нового pipeline.
func NewBuilder(name string, opts ...Option) *Builder {
	return &Builder{p: NewPipeline(name, opts...)}
}

// Add добавляет узел.
func (b *Builder) Add(node *Node) *Builder {
	if b.err == nil {
		b.err = b.p.AddNode(node, false)
	}
	return b
}

// Start добавляет узел и делает его стартовым.
func (b *Builder) Start(node *Node) *Builder {
	if b.err == nil {
		b.err = b.p.AddNode(node, true)
	}
	return b
}

// Connect добавляет ребро from → to.
func (b *Builder) Connect(from, to string) *Builder {
	if b.err == nil {
		b.err = b.p.Connect(from, to)
	}
	return b
}

// Err возвращает первую ошибку построения.
func (b *Builder) Err() error {
	return b.err
}

// Build возвращает pipeline или первую ошибку построения.
func (b *Builder) Build() (*Pipeline, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.p, nil
}

// LinearStep — описание шага линейного pipeline.
type LinearStep struct {
	Name        string
	Task        Task
	Inputs      map[string]any
	Description string
}

// NewLinearPipeline строит цепочку step[0] → step[1] → ... → step[n-1].
// Первый шаг становится стартовым.
func NewLinearPipeline(name, description string, steps []LinearStep, opts ...Option) (*Pipeline, error) {
	opts = append([]Option{WithPipelineDescription(description)}, opts...)
	b := NewBuilder(name, opts...)

	prev := ""
	for i, step := range steps {
		node, err := NewNode(step.Name, step.Task,
			WithInputs(step.Inputs),
			WithDescription(step.Description),
		)
		if err != nil {
			return nil, err
		}

		if i == 0 {
			b.Start(node)
		} else {
			b.Add(node).Connect(prev, step.Name)
		}
		prev = step.Name
	}

	return b.Build()
}
