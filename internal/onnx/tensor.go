package onnx

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

type TensorDType string

const (
	DTypeFloat32 TensorDType = "float32"
	DTypeInt64   TensorDType = "int64"
)

var errNilTensor = errors.New("nil tensor")

// Tensor is a dense row-major buffer exchanged with the runtime. Image
// inputs and class scores are float32; int64 is kept for label-style graph
// inputs.
type Tensor struct {
	dtype TensorDType
	shape []int64
	data  any
}

// NewTensor copies data into a tensor of the given shape.
func NewTensor[T ~int64 | ~float32](data []T, shape []int64) (*Tensor, error) {
	count, err := elementCount(shape)
	if err != nil {
		return nil, err
	}

	if count != len(data) {
		return nil, fmt.Errorf("shape %v expects %d elements, got %d", shape, count, len(data))
	}

	t := &Tensor{shape: append([]int64(nil), shape...)}

	var zero T
	switch any(zero).(type) {
	case float32:
		buf := make([]float32, len(data))
		for i, v := range data {
			buf[i] = float32(v)
		}

		t.dtype, t.data = DTypeFloat32, buf
	default:
		buf := make([]int64, len(data))
		for i, v := range data {
			buf[i] = int64(v)
		}

		t.dtype, t.data = DTypeInt64, buf
	}

	return t, nil
}

// NewZeroTensor builds a zero tensor from a declared node type and shape.
// Symbolic dimensions (strings) resolve to 1.
func NewZeroTensor(dtype string, shape []any) (*Tensor, error) {
	dt, err := parseDType(dtype)
	if err != nil {
		return nil, err
	}

	dims, err := resolveShape(shape)
	if err != nil {
		return nil, err
	}

	count, err := elementCount(dims)
	if err != nil {
		return nil, err
	}

	if dt == DTypeInt64 {
		return NewTensor(make([]int64, count), dims)
	}

	return NewTensor(make([]float32, count), dims)
}

func (t *Tensor) DType() TensorDType {
	return t.dtype
}

func (t *Tensor) Shape() []int64 {
	return append([]int64(nil), t.shape...)
}

// ExtractFloat32 returns a copy of the float32 values held by a *Tensor or
// a []float32.
func ExtractFloat32(v any) ([]float32, error) {
	switch out := v.(type) {
	case []float32:
		return append([]float32(nil), out...), nil
	case *Tensor:
		if out == nil {
			return nil, errNilTensor
		}

		data, ok := out.data.([]float32)
		if !ok {
			return nil, fmt.Errorf("expected float32 tensor, got %s", out.dtype)
		}

		return append([]float32(nil), data...), nil
	default:
		return nil, fmt.Errorf("expected float32 tensor or []float32, got %T", v)
	}
}

func parseDType(raw string) (TensorDType, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	name = strings.TrimSuffix(strings.TrimPrefix(name, "tensor("), ")")

	switch name {
	case "float", "float32":
		return DTypeFloat32, nil
	case "int64", "long":
		return DTypeInt64, nil
	default:
		return "", fmt.Errorf("unsupported tensor dtype %q", raw)
	}
}

func resolveShape(shape []any) ([]int64, error) {
	dims := make([]int64, len(shape))

	for i, dim := range shape {
		var n int64

		switch v := dim.(type) {
		case int:
			n = int64(v)
		case int64:
			n = v
		case float64:
			if v != math.Trunc(v) {
				return nil, fmt.Errorf("shape[%d]=%v is not a positive integer", i, v)
			}

			n = int64(v)
			if n < 1 {
				return nil, fmt.Errorf("shape[%d]=%v is not a positive integer", i, v)
			}
		case string:
			if strings.TrimSpace(v) == "" {
				return nil, fmt.Errorf("shape[%d] has empty symbolic dimension", i)
			}

			n = 1
		default:
			return nil, fmt.Errorf("shape[%d] has unsupported type %T", i, dim)
		}

		if n < 1 {
			return nil, fmt.Errorf("shape[%d]=%d is not positive", i, n)
		}

		dims[i] = n
	}

	return dims, nil
}

func elementCount(shape []int64) (int, error) {
	count := int64(1)

	for i, dim := range shape {
		if dim < 1 {
			return 0, fmt.Errorf("shape[%d]=%d is not positive", i, dim)
		}

		if count > math.MaxInt64/dim {
			return 0, fmt.Errorf("shape %v overflows element count", shape)
		}

		count *= dim
	}

	if count > int64(math.MaxInt) {
		return 0, fmt.Errorf("shape %v exceeds platform int capacity", shape)
	}

	return int(count), nil
}
