package eval

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// FormatTable writes a human-readable table of validation results to w.
func FormatTable(results []Metrics, w io.Writer) {
	sb := &strings.Builder{}

	fmt.Fprintf(sb, "%-24s  %5s  %5s  %7s  %8s  %8s  %8s\n", "Model", "Res", "Batch", "Images", "Acc@1", "Acc@5", "Loss")
	fmt.Fprintln(sb, strings.Repeat("-", 76))

	for _, r := range results {
		fmt.Fprintf(sb, "%-24s  %5d  %5d  %7d  %8.3f  %8.3f  %8.3f\n",
			r.Model, r.Resolution, r.BatchSize, r.Images, r.Acc1, r.Acc5, r.Loss)
	}

	fmt.Fprint(w, sb.String())
}

type jsonMetrics struct {
	Model      string  `json:"model"`
	Resolution int     `json:"resolution"`
	BatchSize  int     `json:"batch_size"`
	Images     int     `json:"images"`
	Classes    int     `json:"classes"`
	Acc1       float64 `json:"acc1"`
	Acc5       float64 `json:"acc5"`
	Loss       float64 `json:"loss"`
	OutputMean float64 `json:"output_mean"`
	OutputStd  float64 `json:"output_std"`
}

// FormatJSON writes a JSON report of validation results to w.
func FormatJSON(results []Metrics, w io.Writer) error {
	out := struct {
		Models []jsonMetrics `json:"models"`
	}{Models: make([]jsonMetrics, len(results))}

	for i, r := range results {
		out.Models[i] = jsonMetrics{
			Model:      r.Model,
			Resolution: r.Resolution,
			BatchSize:  r.BatchSize,
			Images:     r.Images,
			Classes:    r.Classes,
			Acc1:       r.Acc1,
			Acc5:       r.Acc5,
			Loss:       r.Loss,
			OutputMean: r.OutputMean,
			OutputStd:  r.OutputStd,
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(out)
}
