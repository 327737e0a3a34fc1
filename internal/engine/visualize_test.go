package engine

import (
	"context"
	"strings"
	"testing"
)

func TestVisualize_Empty(t *testing.T) {
	p := NewPipeline("empty")
	if got := p.Visualize(); got != EmptyPipelineView {
		t.Errorf("expected %q, got %q", EmptyPipelineView, got)
	}
}

func TestVisualize_DiamondRendersSharedNodeOnce(t *testing.T) {
	p := diamond(t, nil)

	want := strings.Join([]string{
		"",
		"Pipeline: diamond",
		"",
		"Flow:",
		"start",
		"  └─ left",
		"    └─ final",
		"  └─ right",
	}, "\n")

	if got := p.Visualize(); got != want {
		t.Errorf("unexpected view:\n%s\nwant:\n%s", got, want)
	}
}

func TestVisualize_StatusAndDescription(t *testing.T) {
	p, err := NewLinearPipeline("etl", "Load and save", []LinearStep{
		{Name: "load", Task: constTask(1), Description: "Load raw data"},
		{Name: "save", Task: failing("disk full"), Description: "Save results"},
		{Name: "report", Task: constTask(3)},
	}, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	before := p.Visualize()
	if strings.Contains(before, "[") {
		t.Errorf("pending nodes should have no status:\n%s", before)
	}

	if _, err := p.Execute(context.Background(), nil); err != nil {
		t.Fatalf("execute: %v", err)
	}

	want := strings.Join([]string{
		"",
		"Pipeline: etl",
		"Description: Load and save",
		"",
		"Flow:",
		"load [COMPLETED]",
		"  (Load raw data)",
		"  └─ save [FAILED]",
		"    └─ report",
	}, "\n")

	if got := p.Visualize(); got != want {
		t.Errorf("unexpected view:\n%s\nwant:\n%s", got, want)
	}
}

func TestVisualize_DoesNotMutate(t *testing.T) {
	var calls []string
	p := diamond(t, &calls)

	_ = p.Visualize()
	_ = p.Visualize()

	if len(calls) != 0 {
		t.Errorf("visualize should not invoke tasks, got %v", calls)
	}
	for _, n := range p.Nodes() {
		if n.Status() != "PENDING" {
			t.Errorf("%s: status changed to %s", n.Name(), n.Status())
		}
	}
}
