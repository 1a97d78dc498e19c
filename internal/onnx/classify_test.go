package onnx

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeGraph struct {
	name    string
	outputs map[string]*Tensor
	err     error
	gotIn   []string
	closed  int
}

func (f *fakeGraph) Name() string { return f.name }

func (f *fakeGraph) Run(_ context.Context, inputs map[string]*Tensor) (map[string]*Tensor, error) {
	for k := range inputs {
		f.gotIn = append(f.gotIn, k)
	}

	return f.outputs, f.err
}

func (f *fakeGraph) Close() { f.closed++ }

func mustTensor(t *testing.T, data []float32, shape ...int64) *Tensor {
	t.Helper()

	tt, err := NewTensor(data, shape)
	if err != nil {
		t.Fatalf("NewTensor: %v", err)
	}

	return tt
}

func TestClassifyUsesDeclaredBindings(t *testing.T) {
	logits := mustTensor(t, []float32{1, 2}, 1, 2)
	g := &fakeGraph{name: "m", outputs: map[string]*Tensor{
		"aux":    mustTensor(t, []float32{0}, 1, 1),
		"logits": logits,
	}}

	m := NewGraphModule(g, ImageSession("m", "m.onnx", "pixels", "logits", 1, 2))

	got, err := m.Classify(context.Background(), mustTensor(t, make([]float32, 12), ImageShape(1, 2)...))
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	if got != logits {
		t.Fatal("Classify returned the wrong output")
	}

	if len(g.gotIn) != 1 || g.gotIn[0] != "pixels" {
		t.Fatalf("input bound as %v; want [pixels]", g.gotIn)
	}
}

func TestClassifySingleOutputFallback(t *testing.T) {
	only := mustTensor(t, []float32{3}, 1, 1)
	g := &fakeGraph{name: "m", outputs: map[string]*Tensor{"probs": only}}

	got, err := NewGraphModule(g, ImageSession("m", "m.onnx", "input", "output", 1, 1)).
		Classify(context.Background(), mustTensor(t, make([]float32, 3), ImageShape(1, 1)...))
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	if got != only {
		t.Fatal("expected single output fallback")
	}
}

func TestClassifyErrors(t *testing.T) {
	input := mustTensor(t, make([]float32, 3), ImageShape(1, 1)...)
	meta := ImageSession("m", "m.onnx", "input", "output", 1, 1)

	ambiguous := &fakeGraph{name: "m", outputs: map[string]*Tensor{"a": input, "b": input}}
	if _, err := NewGraphModule(ambiguous, meta).Classify(context.Background(), input); err == nil ||
		!strings.Contains(err.Error(), "[a b]") {
		t.Fatalf("ambiguous outputs error = %v", err)
	}

	boom := errors.New("boom")
	failing := &fakeGraph{name: "m", err: boom}
	if _, err := NewGraphModule(failing, meta).Classify(context.Background(), input); !errors.Is(err, boom) {
		t.Fatalf("run error = %v; want boom", err)
	}

	if _, err := NewGraphModule(failing, meta).Classify(context.Background(), nil); err == nil {
		t.Fatal("expected nil input error")
	}
}

func TestGraphModuleClose(t *testing.T) {
	g := &fakeGraph{name: "m"}
	m := NewGraphModule(g, Session{Name: "m"})

	if m.Name() != "m" {
		t.Fatalf("Name() = %q", m.Name())
	}

	m.Close()

	if g.closed != 1 {
		t.Fatalf("Close forwarded %d times; want 1", g.closed)
	}
}
