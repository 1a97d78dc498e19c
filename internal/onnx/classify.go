package onnx

import (
	"context"
	"fmt"
	"sort"
)

// GraphRunner is the minimal named-tensor runner contract. Runner
// implements it; tests and alternate runtimes can supply their own.
type GraphRunner interface {
	Run(ctx context.Context, inputs map[string]*Tensor) (map[string]*Tensor, error)
	Name() string
}

func classify(ctx context.Context, g GraphRunner, meta Session, input *Tensor) (*Tensor, error) {
	if input == nil {
		return nil, fmt.Errorf("classify %q: nil input", g.Name())
	}

	inName := DefaultInputName
	if len(meta.Inputs) > 0 && meta.Inputs[0].Name != "" {
		inName = meta.Inputs[0].Name
	}

	outputs, err := g.Run(ctx, map[string]*Tensor{inName: input})
	if err != nil {
		return nil, err
	}

	if len(meta.Outputs) > 0 && meta.Outputs[0].Name != "" {
		if t, ok := outputs[meta.Outputs[0].Name]; ok {
			return t, nil
		}
	}

	if len(outputs) == 1 {
		for _, t := range outputs {
			return t, nil
		}
	}

	names := make([]string, 0, len(outputs))
	for name := range outputs {
		names = append(names, name)
	}
	sort.Strings(names)

	return nil, fmt.Errorf("classify %q: expected output %q, graph produced %v", g.Name(), nodeNames(meta.Outputs), names)
}

// graphModule adapts a GraphRunner to Module.
type graphModule struct {
	g    GraphRunner
	meta Session
}

// NewGraphModule wraps g so it can be dispatched like a loaded Runner.
func NewGraphModule(g GraphRunner, meta Session) Module {
	return &graphModule{g: g, meta: meta}
}

func (m *graphModule) Name() string { return m.g.Name() }

func (m *graphModule) Classify(ctx context.Context, input *Tensor) (*Tensor, error) {
	return classify(ctx, m.g, m.meta, input)
}

func (m *graphModule) Close() {
	if c, ok := m.g.(interface{ Close() }); ok {
		c.Close()
	}
}
