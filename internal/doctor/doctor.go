// Package doctor provides environment preflight checks for edgeperf.
package doctor

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// RuntimeFunc returns the resolved ONNX Runtime library path and version,
// or an error if no library is available.
type RuntimeFunc func() (path, version string, err error)

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// Runtime locates the ONNX Runtime shared library.
	Runtime RuntimeFunc
	// SkipRuntime skips the runtime library check.
	SkipRuntime bool
	// APIVersion is the ORT C API version the runner requests. A detected
	// library older than 1.<APIVersion> fails.
	APIVersion uint32

	// Catalog returns the number of catalog entries or the load error.
	Catalog func() (int, error)

	// ModelFiles are the model paths the run would load.
	ModelFiles []string

	// DatasetPath is checked only when Validation is set.
	DatasetPath string
	Validation  bool

	// LogicalCPUs is the host processor count.
	LogicalCPUs int
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	// ---- ONNX Runtime library ---------------------------------------------
	switch {
	case cfg.SkipRuntime:
		fmt.Fprintf(w, "%s onnx runtime: skipped\n", PassMark)
	case cfg.Runtime == nil:
		res.fail("onnx runtime: no probe configured")
		fmt.Fprintf(w, "%s onnx runtime: no probe configured\n", FailMark)
	default:
		path, ver, err := cfg.Runtime()
		if err != nil {
			res.fail(fmt.Sprintf("onnx runtime: %v", err))
			fmt.Fprintf(w, "%s onnx runtime: not found (%v)\n", FailMark, err)
		} else if verErr := checkORTVersion(ver, cfg.APIVersion); verErr != nil {
			res.fail(fmt.Sprintf("onnx runtime version: %v", verErr))
			fmt.Fprintf(w, "%s onnx runtime %s: %v\n", FailMark, ver, verErr)
		} else {
			fmt.Fprintf(w, "%s onnx runtime: %s (%s)\n", PassMark, path, ver)
		}
	}

	// ---- catalog ----------------------------------------------------------
	if cfg.Catalog != nil {
		n, err := cfg.Catalog()
		if err != nil {
			res.fail(fmt.Sprintf("catalog: %v", err))
			fmt.Fprintf(w, "%s catalog: %v\n", FailMark, err)
		} else {
			fmt.Fprintf(w, "%s catalog: %d models\n", PassMark, n)
		}
	}

	// ---- model files ------------------------------------------------------
	for _, path := range cfg.ModelFiles {
		if _, err := os.Stat(path); err != nil {
			res.fail(fmt.Sprintf("model file %q: %v", path, err))
			fmt.Fprintf(w, "%s model file %s: not found\n", FailMark, path)
		} else {
			fmt.Fprintf(w, "%s model file: %s\n", PassMark, path)
		}
	}

	// ---- dataset ----------------------------------------------------------
	if cfg.Validation {
		if st, err := os.Stat(cfg.DatasetPath); err != nil {
			res.fail(fmt.Sprintf("dataset %q: %v", cfg.DatasetPath, err))
			fmt.Fprintf(w, "%s dataset %s: not found\n", FailMark, cfg.DatasetPath)
		} else if !st.IsDir() {
			res.fail(fmt.Sprintf("dataset %q: not a directory", cfg.DatasetPath))
			fmt.Fprintf(w, "%s dataset %s: not a directory\n", FailMark, cfg.DatasetPath)
		} else {
			fmt.Fprintf(w, "%s dataset: %s\n", PassMark, cfg.DatasetPath)
		}
	}

	// ---- host -------------------------------------------------------------
	if cfg.LogicalCPUs < 1 {
		res.fail(fmt.Sprintf("host: %d logical CPUs", cfg.LogicalCPUs))
		fmt.Fprintf(w, "%s host: no CPUs reported\n", FailMark)
	} else {
		fmt.Fprintf(w, "%s host: %d logical CPUs\n", PassMark, cfg.LogicalCPUs)
	}

	return res
}

// checkORTVersion returns an error if ver is known and older than the
// release that introduced C API apiVersion (1.<apiVersion>).
func checkORTVersion(ver string, apiVersion uint32) error {
	if ver == "" || ver == "unknown" || apiVersion == 0 {
		return nil
	}

	major, minor, err := parseMajorMinor(ver)
	if err != nil {
		return fmt.Errorf("cannot parse %q: %w", ver, err)
	}

	if major != 1 {
		return fmt.Errorf("requires ONNX Runtime 1.x, got %d", major)
	}

	if minor < int(apiVersion) {
		return fmt.Errorf("API version %d requires ONNX Runtime >=1.%d, got 1.%d", apiVersion, apiVersion, minor)
	}

	return nil
}

func parseMajorMinor(ver string) (major, minor int, err error) {
	parts := strings.SplitN(ver, ".", 3)
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("unexpected version format %q", ver)
	}

	major, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("bad major in %q: %w", ver, err)
	}

	minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("bad minor in %q: %w", ver, err)
	}

	return major, minor, nil
}
