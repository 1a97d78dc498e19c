package harness

import (
	"errors"
	"fmt"
	"io"

	"github.com/example/go-edge-perf/internal/bench"
	"github.com/example/go-edge-perf/internal/config"
	"github.com/example/go-edge-perf/internal/eval"
)

// WriteReport writes the summary of results in format. Benchmark and
// validation results are reported as separate sections.
func WriteReport(results []Result, format string, w io.Writer) error {
	var (
		benches []bench.Result
		evals   []eval.Metrics
	)

	for _, r := range results {
		switch {
		case r.Bench != nil:
			benches = append(benches, *r.Bench)
		case r.Eval != nil:
			evals = append(evals, *r.Eval)
		}
	}

	switch format {
	case config.FormatNone:
		return nil
	case config.FormatTable:
		if len(benches) > 0 {
			bench.FormatTable(benches, w)
		}

		if len(evals) > 0 {
			eval.FormatTable(evals, w)
		}

		return nil
	case config.FormatJSON:
		if len(evals) > 0 && len(benches) == 0 {
			return eval.FormatJSON(evals, w)
		}

		return bench.FormatJSON(benches, w)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// CheckLatency applies the mean-latency gate to every benchmark result.
func CheckLatency(results []Result, thresholdMS float64) error {
	var errs []error

	for _, r := range results {
		if r.Bench == nil {
			continue
		}

		if err := bench.CheckLatencyThreshold(r.Bench.Model, r.Bench.Stats.Mean, thresholdMS); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
