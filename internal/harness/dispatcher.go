// Package harness drives the per-model dispatch loop: filter, load under the
// inference-only guard, then route to the evaluator or the benchmarker.
package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"path/filepath"

	"github.com/example/go-edge-perf/internal/bench"
	"github.com/example/go-edge-perf/internal/catalog"
	"github.com/example/go-edge-perf/internal/config"
	"github.com/example/go-edge-perf/internal/eval"
	"github.com/example/go-edge-perf/internal/onnx"
)

// Loader opens one model file under an inference mode.
type Loader interface {
	Load(ctx context.Context, meta onnx.Session, mode onnx.InferenceMode) (onnx.Module, error)
}

type Evaluator interface {
	Evaluate(ctx context.Context, m eval.Classifier, entry catalog.Entry, input *onnx.Tensor) (eval.Metrics, error)
}

type Benchmarker interface {
	Benchmark(ctx context.Context, m bench.Classifier, input *onnx.Tensor) (bench.Result, error)
}

// Options configure a Dispatcher.
type Options struct {
	Run config.RunConfig

	ModelDir string
	ModelExt string

	// KeepGoing records per-model failures and moves on instead of
	// stopping at the first one.
	KeepGoing bool

	// Seed seeds the random input tensors; 0 selects a fixed seed of 1.
	Seed uint64

	Out      io.Writer
	Observer Observer
}

// Result is the outcome for one processed model. Exactly one of Bench,
// Eval and Err is set.
type Result struct {
	Entry catalog.Entry
	Path  string
	Bench *bench.Result
	Eval  *eval.Metrics
	Err   error
}

type Dispatcher struct {
	catalog     *catalog.Catalog
	loader      Loader
	evaluator   Evaluator
	benchmarker Benchmarker
	opts        Options

	state State
}

func New(cat *catalog.Catalog, loader Loader, ev Evaluator, bm Benchmarker, opts Options) *Dispatcher {
	if opts.Out == nil {
		opts.Out = io.Discard
	}

	if opts.Run.BatchSize < 1 {
		opts.Run.BatchSize = 1
	}

	return &Dispatcher{
		catalog:     cat,
		loader:      loader,
		evaluator:   ev,
		benchmarker: bm,
		opts:        opts,
		state:       Idle,
	}
}

// State returns the current dispatch state.
func (d *Dispatcher) State() State {
	return d.state
}

// ModelPath is where the file for model name is expected.
func ModelPath(dir, name, ext string) string {
	return filepath.Join(dir, name+ext)
}

func (d *Dispatcher) ModelPath(e catalog.Entry) string {
	return ModelPath(d.opts.ModelDir, e.Name, d.opts.ModelExt)
}

func (d *Dispatcher) moveTo(s State, model string) {
	t := Transition{From: d.state, To: s, Model: model}
	d.state = s

	if d.opts.Observer != nil {
		d.opts.Observer(t)
	}
}

// Run processes the catalog in declared order. It returns the results of
// every model it got to. Without KeepGoing the first failure ends the run
// and is returned; with KeepGoing all failures are joined.
func (d *Dispatcher) Run(ctx context.Context) ([]Result, error) {
	var (
		results []Result
		errs    []error
	)

	defer d.moveTo(Done, "")

	for _, entry := range d.catalog.Entries() {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		d.moveTo(SelectingModel, entry.Name)
		d.moveTo(Filtering, entry.Name)

		if !catalog.Matches(entry.Name, d.opts.Run.OnlyTest) {
			d.moveTo(Idle, entry.Name)
			continue
		}

		res := d.process(ctx, entry)
		results = append(results, res)

		d.moveTo(Idle, entry.Name)

		if res.Err == nil {
			continue
		}

		if !d.opts.KeepGoing {
			return results, res.Err
		}

		slog.Error("model failed", "model", entry.Name, "error", res.Err)
		errs = append(errs, res.Err)
	}

	return results, errors.Join(errs...)
}

// process handles one selected entry. The guard and the module are scoped
// to this call.
func (d *Dispatcher) process(ctx context.Context, entry catalog.Entry) Result {
	res := Result{Entry: entry, Path: d.ModelPath(entry)}

	_, _ = fmt.Fprintf(d.opts.Out, "Creating onnx runtime session: %s\n", entry.Name)

	d.moveTo(Loading, entry.Name)

	release := onnx.EnterMode(onnx.InferenceOnly())
	defer release()

	batch := d.opts.Run.BatchSize
	meta := onnx.ImageSession(entry.Name, res.Path, entry.InputName, entry.OutputName, batch, entry.Resolution)

	m, err := d.loader.Load(ctx, meta, onnx.ActiveMode())
	if err != nil {
		res.Err = fmt.Errorf("load %s: %w", entry.Name, err)
		return res
	}
	defer m.Close()

	input, err := onnx.NewRandomTensor(d.rng(), onnx.ImageShape(batch, entry.Resolution))
	if err != nil {
		res.Err = fmt.Errorf("input for %s: %w", entry.Name, err)
		return res
	}

	slog.Debug("dispatching model",
		"model", entry.Name,
		"path", res.Path,
		"input_shape", input.Shape(),
		"validation", d.opts.Run.Validation,
	)

	if d.opts.Run.Validation {
		d.moveTo(Evaluating, entry.Name)

		metrics, err := d.evaluator.Evaluate(ctx, m, entry, input)
		if err != nil {
			res.Err = err
			return res
		}

		res.Eval = &metrics

		return res
	}

	d.moveTo(Benchmarking, entry.Name)

	br, err := d.benchmarker.Benchmark(ctx, m, input)
	if err != nil {
		res.Err = err
		return res
	}

	res.Bench = &br

	return res
}

func (d *Dispatcher) rng() *rand.Rand {
	seed := d.opts.Seed
	if seed == 0 {
		seed = 1
	}

	return rand.New(rand.NewPCG(seed, seed))
}
