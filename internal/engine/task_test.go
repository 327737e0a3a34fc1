package engine

import (
	"context"
	"errors"
	"testing"
)

func TestResolveInput(t *testing.T) {
	task := NewTask(func(context.Context, Input) (any, error) { return nil, nil },
		Required("a"),
		Required("b"),
		Optional("c", "def"),
	)

	in, err := resolveInput(task,
		map[string]any{"a": "static"},
		map[string]any{"a": "ctx", "b": "ctx", "z": "ignored"},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if in["a"] != "static" || in["b"] != "ctx" || in["c"] != "def" {
		t.Errorf("unexpected input: %v", in)
	}
	if _, ok := in["z"]; ok {
		t.Error("undeclared key should be filtered out")
	}
}

func TestResolveInput_Missing(t *testing.T) {
	task := Func(func(context.Context, Input) (any, error) { return nil, nil }, "a", "b", "c")

	_, err := resolveInput(task, nil, map[string]any{"b": 1})

	var bindErr *BindingError
	if !errors.As(err, &bindErr) {
		t.Fatalf("expected BindingError, got %v", err)
	}
	if len(bindErr.Missing) != 2 || bindErr.Missing[0] != "a" || bindErr.Missing[1] != "c" {
		t.Errorf("expected missing [a c], got %v", bindErr.Missing)
	}
	if !errors.Is(err, ErrMissingParameter) {
		t.Error("BindingError should match ErrMissingParameter")
	}
}

func TestTaskError_Matching(t *testing.T) {
	cause := errors.New("boom")
	err := error(&TaskError{Node: "n", Err: cause})

	if !errors.Is(err, ErrTaskInvocation) {
		t.Error("TaskError should match ErrTaskInvocation")
	}
	if !errors.Is(err, cause) {
		t.Error("TaskError should unwrap to the task error")
	}
	if err.Error() != `node "n" failed: boom` {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestInputAccessors(t *testing.T) {
	in := Input{"i": 3, "f": 2.5, "jsonNum": float64(7), "s": "x", "b": true}

	if v, err := in.Int("i"); err != nil || v != 3 {
		t.Errorf("Int(i) = %v, %v", v, err)
	}
	if v, err := in.Int("jsonNum"); err != nil || v != 7 {
		t.Errorf("Int(jsonNum) = %v, %v", v, err)
	}
	if v, err := in.Float("i"); err != nil || v != 3 {
		t.Errorf("Float(i) = %v, %v", v, err)
	}
	if v, err := in.Float("f"); err != nil || v != 2.5 {
		t.Errorf("Float(f) = %v, %v", v, err)
	}
	if v, err := in.String("s"); err != nil || v != "x" {
		t.Errorf("String(s) = %v, %v", v, err)
	}
	if v, err := in.Bool("b"); err != nil || !v {
		t.Errorf("Bool(b) = %v, %v", v, err)
	}

	if _, err := in.Int("s"); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("Int(s): expected ErrTypeMismatch, got %v", err)
	}
	if _, err := in.String("missing"); !errors.Is(err, ErrMissingParameter) {
		t.Errorf("String(missing): expected ErrMissingParameter, got %v", err)
	}
	if _, err := Get[int](in, "s"); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("Get[int](s): expected ErrTypeMismatch, got %v", err)
	}
}

func TestCallTask_RecoversPanic(t *testing.T) {
	task := NewTask(func(context.Context, Input) (any, error) {
		var m map[string]int
		m["x"] = 1 // запись в nil map
		return nil, nil
	})

	_, err := callTask(context.Background(), task, Input{})
	if !errors.Is(err, ErrTaskPanic) {
		t.Errorf("expected ErrTaskPanic, got %v", err)
	}
}
