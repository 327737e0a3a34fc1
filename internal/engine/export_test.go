package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/shaiso/Conveyor/internal/domain"
	"gopkg.in/yaml.v3"
)

func TestDefinition_TopologyOnly(t *testing.T) {
	p := diamond(t, nil)
	if _, err := p.Execute(context.Background(), map[string]any{"secret": 1}); err != nil {
		t.Fatalf("execute: %v", err)
	}

	def := p.Definition()

	if def.Name != "diamond" || def.StartNode != "start" {
		t.Errorf("unexpected header: %+v", def)
	}
	if len(def.Nodes) != 4 {
		t.Fatalf("expected 4 nodes, got %d", len(def.Nodes))
	}
	if def.Nodes[0].Name != "start" || !slices.Equal(def.Nodes[0].Next, []string{"left", "right"}) {
		t.Errorf("unexpected start node: %+v", def.Nodes[0])
	}
	if len(def.Nodes[3].Next) != 0 {
		t.Errorf("final should have no successors: %+v", def.Nodes[3])
	}
}

func TestWriteJSON(t *testing.T) {
	p, err := NewLinearPipeline("etl", "Load and save", []LinearStep{
		{Name: "load", Task: constTask(1), Description: "Load raw data"},
		{Name: "save", Task: constTask(2)},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	var buf bytes.Buffer
	if err := p.WriteJSON(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "\n  \"name\": \"etl\"") {
		t.Errorf("expected 2-space indent:\n%s", out)
	}
	if strings.Contains(out, "status") || strings.Contains(out, "outputs") {
		t.Errorf("definition should not contain runtime state:\n%s", out)
	}

	var raw map[string]any
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if raw["start_node"] != "load" {
		t.Errorf("expected start_node load, got %v", raw["start_node"])
	}
	nodes := raw["nodes"].([]any)
	first := nodes[0].(map[string]any)
	if first["next_nodes"].([]any)[0] != "save" {
		t.Errorf("unexpected next_nodes: %v", first["next_nodes"])
	}
}

func TestWriteYAML(t *testing.T) {
	p := diamond(t, nil)

	var buf bytes.Buffer
	if err := p.WriteYAML(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}

	var def domain.PipelineDef
	if err := yaml.Unmarshal(buf.Bytes(), &def); err != nil {
		t.Fatalf("invalid yaml: %v", err)
	}
	if def.StartNode != "start" || len(def.Nodes) != 4 {
		t.Errorf("unexpected definition: %+v", def)
	}
}

func TestSaveJSON(t *testing.T) {
	p := diamond(t, nil)
	path := filepath.Join(t.TempDir(), "diamond.json")

	if err := p.SaveJSON(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var def domain.PipelineDef
	if err := json.Unmarshal(data, &def); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if def.Name != "diamond" {
		t.Errorf("expected name diamond, got %q", def.Name)
	}
}

func TestSaveJSON_BadPath(t *testing.T) {
	p := diamond(t, nil)
	if err := p.SaveJSON(filepath.Join(t.TempDir(), "missing", "x.json")); err == nil {
		t.Error("expected error for missing directory")
	}
}
