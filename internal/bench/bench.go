// Package bench times repeated inference over a fixed input and reports
// latency statistics.
package bench

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/example/go-edge-perf/internal/onnx"
)

const (
	DefaultWarmup   = 5 * time.Second
	DefaultDuration = 20 * time.Second

	// TopN is the number of (index, score) pairs printed after warm-up.
	TopN = 3
)

// ---------------------------------------------------------------------------
// Run result and stats
// ---------------------------------------------------------------------------

// Classifier is the part of a loaded module the benchmarker drives.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, input *onnx.Tensor) (*onnx.Tensor, error)
}

// Result holds the timing of one model's benchmark.
type Result struct {
	Model      string
	Resolution int
	BatchSize  int

	WarmupIterations int
	Top              []onnx.ScoredIndex
	Durations        []time.Duration
	Stats            Stats
}

// Stats holds aggregate timing statistics across all runs.
type Stats struct {
	Min    time.Duration
	Max    time.Duration
	Mean   time.Duration
	Median time.Duration
}

// ComputeStats calculates min, max, mean and median over a slice of
// durations. An empty slice yields zero stats.
func ComputeStats(durations []time.Duration) Stats {
	if len(durations) == 0 {
		return Stats{}
	}

	mn, mx := durations[0], durations[0]

	var sum time.Duration
	for _, d := range durations {
		if d < mn {
			mn = d
		}

		if d > mx {
			mx = d
		}

		sum += d
	}

	sorted := slices.Clone(durations)
	slices.Sort(sorted)

	mid := len(sorted) / 2

	median := sorted[mid]
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	}

	return Stats{
		Min:    mn,
		Max:    mx,
		Mean:   sum / time.Duration(len(durations)),
		Median: median,
	}
}

// Milliseconds returns d as fractional milliseconds.
func Milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// ---------------------------------------------------------------------------
// Benchmarker
// ---------------------------------------------------------------------------

// Benchmarker runs a warm-up phase then a timed phase over the same input.
type Benchmarker struct {
	Warmup   time.Duration
	Duration time.Duration
	Out      io.Writer

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

func (b *Benchmarker) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}

	return time.Now()
}

func (b *Benchmarker) out() io.Writer {
	if b.Out != nil {
		return b.Out
	}

	return io.Discard
}

// Benchmark warms m up for b.Warmup, prints the top scores of the last
// warm-up output, then calls m until the summed call time reaches
// b.Duration. Both phases run at least once.
func (b *Benchmarker) Benchmark(ctx context.Context, m Classifier, input *onnx.Tensor) (Result, error) {
	res := Result{Model: m.Name()}

	if shape := input.Shape(); len(shape) == 4 {
		res.BatchSize = int(shape[0])
		res.Resolution = int(shape[3])
	}

	var (
		output *onnx.Tensor
		err    error
	)

	start := b.now()
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		output, err = m.Classify(ctx, input)
		if err != nil {
			return res, fmt.Errorf("warm-up %q: %w", m.Name(), err)
		}

		res.WarmupIterations++

		if b.now().Sub(start) >= b.Warmup {
			break
		}
	}

	rows, err := output.Rows()
	if err != nil {
		return res, fmt.Errorf("warm-up %q output: %w", m.Name(), err)
	}

	if len(rows) > 0 {
		res.Top = onnx.TopK(rows[0], TopN)
	}

	_, _ = fmt.Fprintln(b.out(), formatTop(res.Top))

	var total time.Duration
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		t0 := b.now()

		if _, err := m.Classify(ctx, input); err != nil {
			return res, fmt.Errorf("benchmark %q: %w", m.Name(), err)
		}

		d := b.now().Sub(t0)
		res.Durations = append(res.Durations, d)
		total += d

		if total >= b.Duration {
			break
		}
	}

	res.Stats = ComputeStats(res.Durations)

	_, _ = fmt.Fprintf(b.out(), "min = %7.2fms  max = %7.2fms  mean = %7.2fms, median = %7.2fms\n",
		Milliseconds(res.Stats.Min),
		Milliseconds(res.Stats.Max),
		Milliseconds(res.Stats.Mean),
		Milliseconds(res.Stats.Median),
	)

	return res, nil
}

// formatTop renders pairs as [(idx, score), ...].
func formatTop(top []onnx.ScoredIndex) string {
	parts := make([]string, len(top))
	for i, s := range top {
		parts[i] = fmt.Sprintf("(%d, %s)", s.Index, strconv.FormatFloat(float64(s.Score), 'g', -1, 32))
	}

	return "[" + strings.Join(parts, ", ") + "]"
}

// ---------------------------------------------------------------------------
// Latency threshold gate
// ---------------------------------------------------------------------------

// CheckLatencyThreshold returns an error if mean exceeds thresholdMS.
// A threshold of 0 disables the gate.
func CheckLatencyThreshold(model string, mean time.Duration, thresholdMS float64) error {
	if thresholdMS <= 0 {
		return nil
	}

	if ms := Milliseconds(mean); ms > thresholdMS {
		return fmt.Errorf("%s: mean latency %.2fms exceeds threshold %.2fms", model, ms, thresholdMS)
	}

	return nil
}

// ---------------------------------------------------------------------------
// Output formatters
// ---------------------------------------------------------------------------

// FormatTable writes a human-readable ASCII table of bench results to w.
func FormatTable(results []Result, w io.Writer) {
	sb := &strings.Builder{}

	fmt.Fprintf(sb, "%-24s  %5s  %5s  %6s  %9s  %9s  %9s  %9s\n",
		"Model", "Res", "Batch", "Iters", "Min(ms)", "Max(ms)", "Mean(ms)", "Median(ms)")
	fmt.Fprintln(sb, strings.Repeat("-", 92))

	for _, r := range results {
		fmt.Fprintf(sb, "%-24s  %5d  %5d  %6d  %9.2f  %9.2f  %9.2f  %9.2f\n",
			r.Model,
			r.Resolution,
			r.BatchSize,
			len(r.Durations),
			Milliseconds(r.Stats.Min),
			Milliseconds(r.Stats.Max),
			Milliseconds(r.Stats.Mean),
			Milliseconds(r.Stats.Median),
		)
	}

	fmt.Fprint(w, sb.String())
}

// jsonReport is the top-level JSON structure emitted by FormatJSON.
type jsonReport struct {
	Models []jsonModel `json:"models"`
}

type jsonModel struct {
	Model      string    `json:"model"`
	Resolution int       `json:"resolution"`
	BatchSize  int       `json:"batch_size"`
	Warmup     int       `json:"warmup_iterations"`
	Iterations int       `json:"iterations"`
	Top        []jsonTop `json:"top"`
	Stats      jsonStats `json:"stats"`
}

type jsonTop struct {
	Index int     `json:"index"`
	Score float32 `json:"score"`
}

type jsonStats struct {
	MinMS    float64 `json:"min_ms"`
	MaxMS    float64 `json:"max_ms"`
	MeanMS   float64 `json:"mean_ms"`
	MedianMS float64 `json:"median_ms"`
}

// FormatJSON writes a JSON report of bench results to w.
func FormatJSON(results []Result, w io.Writer) error {
	jr := jsonReport{Models: make([]jsonModel, len(results))}

	for i, r := range results {
		top := make([]jsonTop, len(r.Top))
		for j, s := range r.Top {
			top[j] = jsonTop{Index: s.Index, Score: s.Score}
		}

		jr.Models[i] = jsonModel{
			Model:      r.Model,
			Resolution: r.Resolution,
			BatchSize:  r.BatchSize,
			Warmup:     r.WarmupIterations,
			Iterations: len(r.Durations),
			Top:        top,
			Stats: jsonStats{
				MinMS:    Milliseconds(r.Stats.Min),
				MaxMS:    Milliseconds(r.Stats.Max),
				MeanMS:   Milliseconds(r.Stats.Mean),
				MedianMS: Milliseconds(r.Stats.Median),
			},
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(jr)
}
