package eval

import (
	"fmt"
	"math"

	"github.com/example/go-edge-perf/internal/onnx"
)

// TopKCorrect counts rows whose target is among the k highest scores.
func TopKCorrect(rows [][]float32, targets []int, k int) int {
	correct := 0

	for i, row := range rows {
		for _, s := range onnx.TopK(row, k) {
			if s.Index == targets[i] {
				correct++
				break
			}
		}
	}

	return correct
}

// CrossEntropy returns the mean negative log-softmax of the targets.
func CrossEntropy(rows [][]float32, targets []int) (float64, error) {
	if len(rows) == 0 {
		return 0, fmt.Errorf("cross entropy: empty batch")
	}

	var total float64

	for i, row := range rows {
		t := targets[i]
		if t < 0 || t >= len(row) {
			return 0, fmt.Errorf("cross entropy: target %d out of range for %d classes", t, len(row))
		}

		maxVal := math.Inf(-1)
		for _, v := range row {
			maxVal = math.Max(maxVal, float64(v))
		}

		var sum float64
		for _, v := range row {
			sum += math.Exp(float64(v) - maxVal)
		}

		total += maxVal + math.Log(sum) - float64(row[t])
	}

	return total / float64(len(rows)), nil
}

// MeanStd returns the mean and sample standard deviation of data.
func MeanStd(data []float32) (mean, std float64) {
	n := len(data)
	if n == 0 {
		return 0, 0
	}

	for _, v := range data {
		mean += float64(v)
	}

	mean /= float64(n)

	if n == 1 {
		return mean, 0
	}

	var ss float64
	for _, v := range data {
		d := float64(v) - mean
		ss += d * d
	}

	return mean, math.Sqrt(ss / float64(n-1))
}

func allFinite(data []float32) bool {
	for _, v := range data {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return false
		}
	}

	return true
}
