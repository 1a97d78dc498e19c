package onnx

import (
	"context"
	"strings"
)

const (
	DefaultInputName  = "input"
	DefaultOutputName = "output"
)

type NodeInfo struct {
	Name  string `json:"name"`
	DType string `json:"dtype"`
	Shape []any  `json:"shape"`
}

// Session describes one model file and the tensors it is driven with.
type Session struct {
	Name string
	Path string

	Inputs  []NodeInfo
	Outputs []NodeInfo
}

// ImageSession describes a vision classifier taking a single
// [batch, 3, resolution, resolution] float input.
func ImageSession(name, path, inputName, outputName string, batch, resolution int) Session {
	return Session{
		Name: name,
		Path: path,
		Inputs: []NodeInfo{{
			Name:  inputName,
			DType: string(DTypeFloat32),
			Shape: []any{batch, 3, resolution, resolution},
		}},
		Outputs: []NodeInfo{{
			Name:  outputName,
			DType: string(DTypeFloat32),
			Shape: []any{batch, "classes"},
		}},
	}
}

// Module is a loaded inference graph.
type Module interface {
	Name() string
	Classify(ctx context.Context, input *Tensor) (*Tensor, error)
	Close()
}

func nodeNames(nodes []NodeInfo) string {
	if len(nodes) == 0 {
		return ""
	}

	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		names = append(names, n.Name)
	}

	return strings.Join(names, ",")
}
