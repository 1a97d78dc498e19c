// Package eval measures classification accuracy of a loaded model over an
// ImageFolder validation set.
package eval

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/example/go-edge-perf/internal/catalog"
	"github.com/example/go-edge-perf/internal/onnx"
)

// progressEvery is the batch interval between progress log lines.
const progressEvery = 50

// Classifier is the part of a loaded module the evaluator drives.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, input *onnx.Tensor) (*onnx.Tensor, error)
}

// Metrics summarizes one model's validation pass.
type Metrics struct {
	Model      string
	Resolution int
	BatchSize  int
	Images     int
	Classes    int

	// Acc1 and Acc5 are percentages over all images. Loss is the mean of
	// per-batch mean cross-entropy.
	Acc1 float64
	Acc5 float64
	Loss float64

	ProbeMean  float64
	ProbeStd   float64
	OutputMean float64
	OutputStd  float64
}

// Evaluator runs a probe pass on the dispatcher's input and then a full
// pass over the dataset at DataPath.
type Evaluator struct {
	DataPath string
	Out      io.Writer
}

func (e *Evaluator) out() io.Writer {
	if e.Out != nil {
		return e.Out
	}

	return io.Discard
}

// Evaluate checks that m maps input to finite [batch, classes] scores and
// then scores m on the dataset, batching images like input.
func (e *Evaluator) Evaluate(ctx context.Context, m Classifier, entry catalog.Entry, input *onnx.Tensor) (Metrics, error) {
	shape := input.Shape()
	if len(shape) != 4 {
		return Metrics{}, fmt.Errorf("evaluate %q: input shape %v is not NCHW", m.Name(), shape)
	}

	batch := int(shape[0])
	res := Metrics{Model: m.Name(), Resolution: entry.Resolution, BatchSize: batch}

	probe, err := m.Classify(ctx, input)
	if err != nil {
		return res, fmt.Errorf("evaluate %q probe: %w", m.Name(), err)
	}

	probeData, err := checkOutput(probe, batch)
	if err != nil {
		return res, fmt.Errorf("evaluate %q probe: %w", m.Name(), err)
	}

	res.Classes = int(probe.Shape()[1])
	res.ProbeMean, res.ProbeStd = MeanStd(probeData)

	slog.Debug("probe pass", "model", m.Name(), "classes", res.Classes, "mean", res.ProbeMean, "std", res.ProbeStd)

	ds, err := OpenImageFolder(e.DataPath)
	if err != nil {
		return res, fmt.Errorf("evaluate %q: %w", m.Name(), err)
	}

	res.Images = ds.Len()

	tr := NewTransform(entry.Resolution, entry.USIEval)
	r := entry.Resolution
	per := 3 * r * r

	var (
		correct1, correct5 int
		lossSum            float64
		batches            int
		lastOutput         []float32
	)

	total := (ds.Len() + batch - 1) / batch

	for start := 0; start < ds.Len(); start += batch {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		end := min(start+batch, ds.Len())
		n := end - start

		data := make([]float32, n*per)
		targets := make([]int, n)

		for i := range n {
			img, err := decodeImage(ds.Samples[start+i].Path)
			if err != nil {
				return res, fmt.Errorf("evaluate %q: %w", m.Name(), err)
			}

			if err := tr.Apply(img, data[i*per:(i+1)*per]); err != nil {
				return res, fmt.Errorf("evaluate %q: %s: %w", m.Name(), ds.Samples[start+i].Path, err)
			}

			targets[i] = ds.Target(start + i)
		}

		t, err := onnx.NewTensor(data, onnx.ImageShape(n, r))
		if err != nil {
			return res, err
		}

		out, err := m.Classify(ctx, t)
		if err != nil {
			return res, fmt.Errorf("evaluate %q batch %d: %w", m.Name(), batches, err)
		}

		outData, err := checkOutput(out, n)
		if err != nil {
			return res, fmt.Errorf("evaluate %q batch %d: %w", m.Name(), batches, err)
		}

		rows, err := out.Rows()
		if err != nil {
			return res, err
		}

		loss, err := CrossEntropy(rows, targets)
		if err != nil {
			return res, fmt.Errorf("evaluate %q batch %d: %w", m.Name(), batches, err)
		}

		correct1 += TopKCorrect(rows, targets, 1)
		correct5 += TopKCorrect(rows, targets, 5)
		lossSum += loss
		batches++
		lastOutput = outData

		if batches%progressEvery == 0 || batches == total {
			slog.Debug("validation progress", "model", m.Name(), "batch", batches, "of", total, "loss", loss)
		}
	}

	res.Acc1 = 100 * float64(correct1) / float64(ds.Len())
	res.Acc5 = 100 * float64(correct5) / float64(ds.Len())
	res.Loss = lossSum / float64(batches)
	res.OutputMean, res.OutputStd = MeanStd(lastOutput)

	w := e.out()
	_, _ = fmt.Fprintf(w, "* Acc@1 %.3f Acc@5 %.3f loss %.3f\n", res.Acc1, res.Acc5, res.Loss)
	_, _ = fmt.Fprintf(w, "%g %g\n", res.OutputMean, res.OutputStd)
	_, _ = fmt.Fprintf(w, "Accuracy on %d test images: %.1f%%\n", res.Images, res.Acc1)

	return res, nil
}

// checkOutput verifies out is a finite [batch, classes] float32 tensor.
func checkOutput(out *onnx.Tensor, batch int) ([]float32, error) {
	shape := out.Shape()
	if len(shape) != 2 || int(shape[0]) != batch || shape[1] < 1 {
		return nil, fmt.Errorf("output shape %v, want [%d, classes]", shape, batch)
	}

	data, err := onnx.ExtractFloat32(out)
	if err != nil {
		return nil, err
	}

	if !allFinite(data) {
		return nil, fmt.Errorf("output contains NaN or Inf")
	}

	return data, nil
}
