package steps

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/engine"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadFile_YAML(t *testing.T) {
	def, err := LoadFile("testdata/etl.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if def.Name != "etl" || def.StartNode != "load" || len(def.Nodes) != 3 {
		t.Fatalf("unexpected definition: %+v", def)
	}

	enrich, ok := def.Node("enrich")
	if !ok {
		t.Fatal("enrich should be declared")
	}
	if enrich.Type != "transform" || enrich.Inputs["factor"] != 2 {
		t.Errorf("unexpected enrich node: %+v", enrich)
	}
}

func TestLoad_RunsYAMLPipeline(t *testing.T) {
	p, _, err := Load("testdata/etl.yaml", nil, engine.WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	result, err := p.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if result.Status != domain.PipelineStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s (%s)", result.Status, result.Error)
	}
	if result.FinalContext["doubled"] != int64(200) {
		t.Errorf("doubled: expected 200, got %v (%T)", result.FinalContext["doubled"], result.FinalContext["doubled"])
	}
	if result.FinalContext["summary"] != "warehouse: 100 rows" {
		t.Errorf("summary: unexpected %v", result.FinalContext["summary"])
	}
	if p.Description() != "Load, transform and report" {
		t.Errorf("description: unexpected %q", p.Description())
	}
}

func TestLoad_BranchingJSON(t *testing.T) {
	p, _, err := Load("testdata/branching.json", DefaultRegistry(), engine.WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	result, err := p.Execute(context.Background(), nil, engine.WithStopOnError(false))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if result.FinalContext["final"] != int64(25) {
		t.Errorf("final: expected 25, got %v (%T)", result.FinalContext["final"], result.FinalContext["final"])
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	_, err := LoadFile("testdata/invalid.yaml")
	if !errors.Is(err, ErrInvalidDefinition) {
		t.Fatalf("expected ErrInvalidDefinition, got %v", err)
	}

	var defErr *DefinitionError
	if !errors.As(err, &defErr) {
		t.Fatalf("expected DefinitionError, got %T", err)
	}

	msg := err.Error()
	for _, want := range []string{"Name is required", "unique name", `start_node "ghost"`, `next node "b"`} {
		if !strings.Contains(msg, want) {
			t.Errorf("error should mention %q: %s", want, msg)
		}
	}
}

func TestLoadFile_UnsupportedExtension(t *testing.T) {
	if _, err := LoadFile("testdata/pipeline.toml"); !errors.Is(err, ErrInvalidDefinition) {
		t.Errorf("expected ErrInvalidDefinition, got %v", err)
	}
}

func TestDecode_UnknownField(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"name": "x", "nodes": [{"name": "a"}], "owner": "me"}`), FormatJSON)
	if !errors.Is(err, ErrInvalidDefinition) {
		t.Errorf("expected ErrInvalidDefinition, got %v", err)
	}
}

func TestDecode_EmptyNodes(t *testing.T) {
	_, err := Decode(strings.NewReader("name: x\nnodes: []\n"), FormatYAML)
	if !errors.Is(err, ErrInvalidDefinition) || !strings.Contains(err.Error(), "Nodes") {
		t.Errorf("expected nodes error, got %v", err)
	}
}

func TestBuild_UnknownStepType(t *testing.T) {
	def := &domain.PipelineDef{
		Name:  "x",
		Nodes: []domain.NodeDef{{Name: "a", Type: "teleport"}},
	}

	if _, err := Build(def, DefaultRegistry()); !errors.Is(err, ErrStepNotFound) {
		t.Errorf("expected ErrStepNotFound, got %v", err)
	}
}

func TestBuild_InvalidStepConfig(t *testing.T) {
	def := &domain.PipelineDef{
		Name:  "x",
		Nodes: []domain.NodeDef{{Name: "wait", Type: "delay"}},
	}

	if _, err := Build(def, DefaultRegistry()); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestBuild_ExportedTopologyRoundTrip(t *testing.T) {
	src, _, err := Load("testdata/etl.yaml", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	// Экспорт содержит только топологию: узлы без типа становятся пустыми шагами
	exported := src.Definition()
	p, err := Build(&exported, nil, engine.WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("build exported: %v", err)
	}

	if p.StartNode() != "load" || p.Size() != 3 {
		t.Errorf("unexpected pipeline: start=%s size=%d", p.StartNode(), p.Size())
	}
	if p.Visualize() != src.Visualize() {
		t.Errorf("views differ:\n%s\n---\n%s", p.Visualize(), src.Visualize())
	}

	result, err := p.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Status != domain.PipelineStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", result.Status)
	}
}
