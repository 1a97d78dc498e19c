package onnx

import (
	"fmt"
	"math/rand/v2"
	"sort"
)

// ImageShape returns the NCHW shape of a batch of RGB images.
func ImageShape(batch, resolution int) []int64 {
	return []int64{int64(batch), 3, int64(resolution), int64(resolution)}
}

// NewRandomTensor returns a float32 tensor filled with uniform samples
// from [0, 1).
func NewRandomTensor(rng *rand.Rand, shape []int64) (*Tensor, error) {
	count, err := elementCount(shape)
	if err != nil {
		return nil, err
	}

	data := make([]float32, count)
	for i := range data {
		data[i] = rng.Float32()
	}

	return &Tensor{
		dtype: DTypeFloat32,
		shape: append([]int64(nil), shape...),
		data:  data,
	}, nil
}

// Rows splits a 2D float32 tensor into per-row copies.
func (t *Tensor) Rows() ([][]float32, error) {
	if len(t.shape) != 2 {
		return nil, fmt.Errorf("expected 2D tensor, got shape %v", t.shape)
	}

	data, ok := t.data.([]float32)
	if !ok {
		return nil, fmt.Errorf("expected float32 tensor, got %s", t.dtype)
	}

	n, width := int(t.shape[0]), int(t.shape[1])
	rows := make([][]float32, n)
	for i := range n {
		rows[i] = append([]float32(nil), data[i*width:(i+1)*width]...)
	}

	return rows, nil
}

type ScoredIndex struct {
	Index int
	Score float32
}

// TopK returns the k highest scores in descending order. Equal scores keep
// the lower index first.
func TopK(row []float32, k int) []ScoredIndex {
	if k > len(row) {
		k = len(row)
	}

	if k <= 0 {
		return nil
	}

	all := make([]ScoredIndex, len(row))
	for i, v := range row {
		all[i] = ScoredIndex{Index: i, Score: v}
	}

	sort.SliceStable(all, func(a, b int) bool {
		return all[a].Score > all[b].Score
	})

	return all[:k]
}
