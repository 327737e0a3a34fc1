package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/engine"
	"github.com/shaiso/Conveyor/internal/mq"
)

// runCmd выполняет команду и возвращает stdout и stderr.
func runCmd(t *testing.T, factory func(func() *Output) *cobra.Command, jsonMode bool, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := factory(func() *Output { return NewOutputTo(jsonMode, &stdout, &stderr) })
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestParseInputs(t *testing.T) {
	inputs, err := parseInputs([]string{"x=5", "ratio=0.5", "ok=true", "name=bob", "tags=[a, b]", "empty=", "expr=a=b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if inputs["x"] != 5 {
		t.Errorf("x: expected int 5, got %v (%T)", inputs["x"], inputs["x"])
	}
	if inputs["ratio"] != 0.5 {
		t.Errorf("ratio: expected 0.5, got %v", inputs["ratio"])
	}
	if inputs["ok"] != true {
		t.Errorf("ok: expected true, got %v", inputs["ok"])
	}
	if inputs["name"] != "bob" || inputs["empty"] != "" || inputs["expr"] != "a=b" {
		t.Errorf("unexpected strings: %v", inputs)
	}
	if tags, ok := inputs["tags"].([]any); !ok || len(tags) != 2 {
		t.Errorf("tags: expected list, got %v (%T)", inputs["tags"], inputs["tags"])
	}

	for _, bad := range []string{"novalue", "=5"} {
		if _, err := parseInputs([]string{bad}); err == nil {
			t.Errorf("%q should be rejected", bad)
		}
	}
}

func TestExportFormat(t *testing.T) {
	tests := []struct {
		format, path string
		expected     string
		wantErr      bool
	}{
		{"", "", "json", false},
		{"yaml", "", "yaml", false},
		{"YML", "out.json", "yaml", false},
		{"", "out.yml", "yaml", false},
		{"", "out.json", "json", false},
		{"", "out.txt", "", true},
		{"xml", "", "", true},
	}

	for _, tt := range tests {
		f, err := exportFormat(tt.format, tt.path)
		if tt.wantErr {
			if err == nil {
				t.Errorf("format=%q path=%q: expected error", tt.format, tt.path)
			}
			continue
		}
		if err != nil || string(f) != tt.expected {
			t.Errorf("format=%q path=%q: expected %s, got %s (%v)", tt.format, tt.path, tt.expected, f, err)
		}
	}
}

func TestRunCmd(t *testing.T) {
	stdout, _, err := runCmd(t, NewRunCmd, false, "testdata/double.yaml", "--input", "x=21")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{"Pipeline: double", "Status:   COMPLETED", "NODE", "report", "message", "y=42"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("output should contain %q:\n%s", want, stdout)
		}
	}
}

func TestRunCmd_JSON(t *testing.T) {
	stdout, _, err := runCmd(t, NewRunCmd, true, "testdata/double.yaml", "--input", "x=2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result domain.ExecutionResult
	if err := json.Unmarshal([]byte(stdout), &result); err != nil {
		t.Fatalf("output is not a result: %v\n%s", err, stdout)
	}
	if result.Status != domain.PipelineStatusCompleted || result.FinalContext["message"] != "y=4" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestRunCmd_FailedRun(t *testing.T) {
	stdout, _, err := runCmd(t, NewRunCmd, false, "testdata/double.yaml")
	if !errors.Is(err, ErrRunFailed) {
		t.Fatalf("expected ErrRunFailed, got %v", err)
	}
	if !strings.Contains(stdout, "FAILED") || !strings.Contains(stdout, "PENDING") {
		t.Errorf("summary should show the failed and the pending node:\n%s", stdout)
	}
}

func TestRunCmd_BadInput(t *testing.T) {
	if _, _, err := runCmd(t, NewRunCmd, false, "testdata/double.yaml", "--input", "x"); err == nil {
		t.Error("expected input format error")
	}
}

func TestGraphCmd(t *testing.T) {
	stdout, _, err := runCmd(t, NewGraphCmd, false, "testdata/double.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := "\nPipeline: double\nDescription: Doubles x and reports it\n\nFlow:\ndouble\n  └─ report\n"
	if stdout != expected {
		t.Errorf("unexpected view:\n%q\nexpected:\n%q", stdout, expected)
	}
}

func TestValidateCmd_Warnings(t *testing.T) {
	stdout, stderr, err := runCmd(t, NewValidateCmd, false, "testdata/loop.yaml")
	if err != nil {
		t.Fatalf("cycles are allowed: %v", err)
	}
	if !strings.Contains(stderr, "cycle detected: a -> b -> a") {
		t.Errorf("expected cycle warning, got %q", stderr)
	}
	if !strings.Contains(stderr, "unreachable from start: orphan") {
		t.Errorf("expected unreachable warning, got %q", stderr)
	}
	if !strings.Contains(stdout, "loop") {
		t.Errorf("expected report table, got %q", stdout)
	}
}

func TestValidateCmd_StrictRejectsCycle(t *testing.T) {
	_, _, err := runCmd(t, NewValidateCmd, false, "--strict", "testdata/loop.yaml")
	if !errors.Is(err, engine.ErrCyclicDependency) {
		t.Fatalf("expected ErrCyclicDependency, got %v", err)
	}
	if !strings.Contains(err.Error(), "a -> b -> a") {
		t.Errorf("error should show the cycle, got %q", err)
	}

	if _, _, err := runCmd(t, NewValidateCmd, false, "--strict", "testdata/double.yaml"); err != nil {
		t.Errorf("acyclic definition should pass: %v", err)
	}
}

func TestValidateCmd_JSON(t *testing.T) {
	stdout, _, err := runCmd(t, NewValidateCmd, true, "testdata/double.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var report validationReport
	if err := json.Unmarshal([]byte(stdout), &report); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if report.Nodes != 2 || report.StartNode != "double" || len(report.Cycle) != 0 {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestValidateCmd_MissingFile(t *testing.T) {
	if _, _, err := runCmd(t, NewValidateCmd, false, "testdata/missing.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestExportCmd(t *testing.T) {
	stdout, _, err := runCmd(t, NewExportCmd, false, "testdata/double.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var def domain.PipelineDef
	if err := json.Unmarshal([]byte(stdout), &def); err != nil {
		t.Fatalf("invalid json: %v\n%s", err, stdout)
	}
	if def.StartNode != "double" || len(def.Nodes) != 2 || def.Nodes[0].Type != "" {
		t.Errorf("export should contain topology only: %+v", def)
	}

	dir := t.TempDir()
	for _, name := range []string{"out.json", "out.yaml"} {
		path := filepath.Join(dir, name)
		if _, _, err := runCmd(t, NewExportCmd, false, "testdata/double.yaml", "-o", path); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		data, err := os.ReadFile(path)
		if err != nil || !strings.Contains(string(data), "report") {
			t.Errorf("%s: unexpected content %q (%v)", name, data, err)
		}
	}
}

func TestOutput_Summary(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutputTo(false, &buf, &bytes.Buffer{})

	out.Summary(&domain.ExecutionResult{
		RunID:     uuid.New(),
		Pipeline:  "etl",
		Status:    domain.PipelineStatusFailed,
		TotalTime: 1500 * time.Millisecond,
		Order:     []string{"load", "save"},
		Nodes: map[string]domain.NodeSnapshot{
			"load": {Name: "load", Status: domain.NodeStatusCompleted, ExecutionTime: 20 * time.Millisecond},
			"save": {Name: "save", Status: domain.NodeStatusFailed, Error: "boom"},
		},
		FinalContext: map[string]any{"rows": 3, "meta": map[string]any{"ok": true}},
		Error:        `node "save": boom`,
	})

	text := buf.String()
	for _, want := range []string{"Status:   FAILED", "Total:    1.5s", "load", "20ms", "boom", `{"ok":true}`} {
		if !strings.Contains(text, want) {
			t.Errorf("summary should contain %q:\n%s", want, text)
		}
	}
	if strings.Index(text, "load") > strings.Index(text, "save") {
		t.Error("nodes should follow insertion order")
	}
}

func TestFormatEvent(t *testing.T) {
	runID := uuid.New()
	ev := mq.Event{
		Type:     mq.MessageTypeNodeFailed,
		Time:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		RunID:    runID,
		Pipeline: "etl",
		Node:     "save",
		Status:   "FAILED",
		Error:    "boom",
		Duration: 20 * time.Millisecond,
	}

	text := formatEvent(ev)
	for _, want := range []string{"node.failed", "etl", runID.String(), "node=save", "status=FAILED", "time=20ms", "error=boom"} {
		if !strings.Contains(text, want) {
			t.Errorf("event line should contain %q: %s", want, text)
		}
	}

	var buf bytes.Buffer
	printEvent(NewOutputTo(true, &buf, &buf), ev)

	var decoded mq.Event
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if decoded.RunID != runID || decoded.Node != "save" {
		t.Errorf("unexpected json event: %+v", decoded)
	}
}
