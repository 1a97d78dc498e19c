package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/go-edge-perf/internal/config"
	"github.com/example/go-edge-perf/internal/harness"
	"github.com/example/go-edge-perf/internal/host"
	"github.com/example/go-edge-perf/internal/onnx"
)

func TestNewRootCmd_HasExpectedSubcommands(t *testing.T) {
	root := NewRootCmd()

	want := []string{"catalog", "doctor", "verify"}
	for _, name := range want {
		found := false

		for _, sub := range root.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}

		if !found {
			t.Errorf("expected subcommand %q not found in root", name)
		}
	}
}

func TestNewRootCmd_HasPersistentConfigFlag(t *testing.T) {
	root := NewRootCmd()
	if root.PersistentFlags().Lookup("config") == nil {
		t.Error("expected --config persistent flag to be registered")
	}

	for _, name := range []string{"validation", "debug", "backend", "batch-size", "only-test", "append", "data-path", "threads"} {
		if root.PersistentFlags().Lookup(name) == nil {
			t.Errorf("expected --%s persistent flag to be registered", name)
		}
	}
}

func TestSetupLogger_DoesNotPanic(_ *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		setupLogger(level)
	}
}

func TestSetupLogger_InvalidLevelFallsBackToInfo(_ *testing.T) {
	setupLogger("not-a-level")
}

func TestRequireConfig_FailsWhenNotInitialized(t *testing.T) {
	orig := activeCfg

	t.Cleanup(func() { activeCfg = orig })

	activeCfg = config.Config{}

	_, err := requireConfig()
	if err == nil {
		t.Fatal("expected error when config is not loaded")
	}
}

func TestRequireConfig_SucceedsWhenLoaded(t *testing.T) {
	orig := activeCfg

	t.Cleanup(func() { activeCfg = orig })

	activeCfg = config.Config{
		Paths: config.PathsConfig{ModelDir: "/some/model/dir"},
	}

	got, err := requireConfig()
	if err != nil {
		t.Fatalf("requireConfig returned unexpected error: %v", err)
	}

	if got.Paths.ModelDir != "/some/model/dir" {
		t.Errorf("unexpected ModelDir: %q", got.Paths.ModelDir)
	}
}

// ---------------------------------------------------------------------------
// Full runs against a fake runtime
// ---------------------------------------------------------------------------

type fakeGraph struct {
	name    string
	classes int
}

func (g *fakeGraph) Name() string { return g.name }

func (g *fakeGraph) Run(_ context.Context, inputs map[string]*onnx.Tensor) (map[string]*onnx.Tensor, error) {
	var batch int64 = 1
	for _, t := range inputs {
		batch = t.Shape()[0]
	}

	data := make([]float32, int(batch)*g.classes)
	for i := range data {
		data[i] = float32(i%g.classes) / float32(g.classes)
	}

	out, err := onnx.NewTensor(data, []int64{batch, int64(g.classes)})
	if err != nil {
		return nil, err
	}

	return map[string]*onnx.Tensor{"output": out}, nil
}

// statLoader fails like the real loader when the model file is absent.
type statLoader struct {
	modes []onnx.InferenceMode
}

func (l *statLoader) Load(_ context.Context, meta onnx.Session, mode onnx.InferenceMode) (onnx.Module, error) {
	l.modes = append(l.modes, mode)

	if err := mode.Validate(); err != nil {
		return nil, err
	}

	if _, err := os.Stat(meta.Path); err != nil {
		return nil, fmt.Errorf("load %q: %w: %s", meta.Name, onnx.ErrModelNotFound, meta.Path)
	}

	return onnx.NewGraphModule(&fakeGraph{name: meta.Name, classes: 10}, meta), nil
}

type runEnv struct {
	dir       string
	modelDir  string
	catalog   string
	loader    *statLoader
	runnerCfg []onnx.RunnerConfig
}

// newRunEnv writes a two-model catalog, creates the model file for "alpha"
// only and swaps the runtime seams for fakes.
func newRunEnv(t *testing.T) *runEnv {
	t.Helper()

	dir := t.TempDir()
	modelDir := filepath.Join(dir, "onnx")

	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	if err := os.WriteFile(filepath.Join(modelDir, "alpha.onnx"), []byte("fake"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	catalogPath := filepath.Join(dir, "catalog.yaml")
	catalogYAML := "models:\n  - name: alpha\n    resolution: 8\n  - name: beta\n    resolution: 8\n"

	if err := os.WriteFile(catalogPath, []byte(catalogYAML), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	env := &runEnv{dir: dir, modelDir: modelDir, catalog: catalogPath, loader: &statLoader{}}

	origBootstrap, origLoader, origHost, origCfg := bootstrapRuntime, newLoader, describeHost, activeCfg

	t.Cleanup(func() {
		bootstrapRuntime, newLoader, describeHost, activeCfg = origBootstrap, origLoader, origHost, origCfg
	})

	bootstrapRuntime = func(config.RuntimeConfig) (onnx.RuntimeInfo, error) {
		return onnx.RuntimeInfo{LibraryPath: "/fake/libonnxruntime.so", Version: "1.23.0", Initialized: true}, nil
	}
	newLoader = func(cfg onnx.RunnerConfig) harness.Loader {
		env.runnerCfg = append(env.runnerCfg, cfg)
		return env.loader
	}
	describeHost = func() host.Info {
		return host.Info{LogicalCPUs: 4, PhysicalCores: 2, Brand: "Fake CPU", OS: "linux", Arch: "amd64"}
	}

	return env
}

func (e *runEnv) args(extra ...string) []string {
	base := []string{
		"--catalog", e.catalog,
		"--model-dir", e.modelDir,
		"--warmup", "0s",
		"--duration", "0s",
		"--log-level", "error",
	}

	return append(base, extra...)
}

func TestRun_BenchmarksSelectedModel(t *testing.T) {
	env := newRunEnv(t)

	var out bytes.Buffer

	err := run(context.Background(), env.args("-o", "alpha", "-t", "3"), &out)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out.String())
	}

	got := out.String()
	for _, want := range []string{
		"nb processors 4",
		"Fake CPU",
		"INFO: Using num_threads == 3",
		"Creating onnx runtime session: alpha",
		"[(",
		"min = ",
		"median = ",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}

	if strings.Contains(got, "beta") {
		t.Errorf("filtered model beta was processed:\n%s", got)
	}

	if len(env.loader.modes) != 1 || env.loader.modes[0].GradTracking {
		t.Errorf("loader modes = %+v; want one inference-only load", env.loader.modes)
	}
}

func TestRun_ThreadsReachRunner(t *testing.T) {
	env := newRunEnv(t)

	var out bytes.Buffer

	if err := run(context.Background(), env.args("-o", "alpha", "--threads", "4"), &out); err != nil {
		t.Fatalf("run: %v\n%s", err, out.String())
	}

	if len(env.runnerCfg) != 1 {
		t.Fatalf("loader built %d times; want 1", len(env.runnerCfg))
	}

	got := env.runnerCfg[0]
	if got.IntraOpThreads != 4 || got.LibraryPath != "/fake/libonnxruntime.so" {
		t.Errorf("runner config = %+v; want 4 intra-op threads on the fake library", got)
	}
}

func TestRun_MissingModelStopsRun(t *testing.T) {
	env := newRunEnv(t)

	var out bytes.Buffer

	err := run(context.Background(), env.args("-o", "beta"), &out)
	if !errors.Is(err, onnx.ErrModelNotFound) {
		t.Fatalf("run error = %v; want ErrModelNotFound", err)
	}

	if !strings.Contains(out.String(), "Creating onnx runtime session: beta") {
		t.Errorf("diagnostic line missing:\n%s", out.String())
	}
}

func TestRun_KeepGoingReportsEveryModel(t *testing.T) {
	env := newRunEnv(t)
	report := filepath.Join(env.dir, "report.json")

	var out bytes.Buffer

	err := run(context.Background(), env.args("--keep-going", "--report", report), &out)
	if !errors.Is(err, onnx.ErrModelNotFound) {
		t.Fatalf("run error = %v; want ErrModelNotFound", err)
	}

	if len(env.loader.modes) != 2 {
		t.Fatalf("loads = %d; want 2", len(env.loader.modes))
	}

	data, readErr := os.ReadFile(report)
	if readErr != nil {
		t.Fatalf("ReadFile: %v", readErr)
	}

	var decoded struct {
		Models []struct {
			Model string `json:"model"`
		} `json:"models"`
	}
	if jsonErr := json.Unmarshal(data, &decoded); jsonErr != nil {
		t.Fatalf("report is not JSON: %v\n%s", jsonErr, data)
	}

	// Only the model that ran has timings.
	if len(decoded.Models) != 1 || decoded.Models[0].Model != "alpha" {
		t.Errorf("report models = %+v; want only alpha", decoded.Models)
	}
}

func TestRun_NoMatchingModelIsNotAnError(t *testing.T) {
	env := newRunEnv(t)

	bootstrapRuntime = func(config.RuntimeConfig) (onnx.RuntimeInfo, error) {
		t.Fatal("runtime bootstrapped for an empty selection")
		return onnx.RuntimeInfo{}, nil
	}

	var out bytes.Buffer

	if err := run(context.Background(), env.args("-o", "gamma"), &out); err != nil {
		t.Fatalf("run: %v", err)
	}

	if strings.Contains(out.String(), "Creating onnx runtime session") {
		t.Errorf("no model should be loaded:\n%s", out.String())
	}
}

func TestRun_UnknownOptionsAreReportedAndIgnored(t *testing.T) {
	env := newRunEnv(t)

	var out bytes.Buffer

	err := run(context.Background(), env.args("--bogus", "-o", "alpha", "---x", "--append", "hello"), &out)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out.String())
	}

	got := out.String()
	for _, want := range []string{
		"Got unknown option.",
		"Got unknown parse returns: ---x",
		"Got long option append.\nhello\n",
		"Creating onnx runtime session: alpha",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestRun_TrailingValueOptionIsNotFatal(t *testing.T) {
	env := newRunEnv(t)

	var out bytes.Buffer

	err := run(context.Background(), env.args("-o", "alpha", "--batch-size"), &out)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out.String())
	}

	got := out.String()
	if !strings.Contains(got, "Got unknown option.") {
		t.Errorf("missing unknown option line:\n%s", got)
	}

	if !strings.Contains(got, "Creating onnx runtime session: alpha") {
		t.Errorf("alpha was not dispatched:\n%s", got)
	}
}

func TestRun_ValidationFailsWithoutDataset(t *testing.T) {
	env := newRunEnv(t)

	var out bytes.Buffer

	err := run(context.Background(), env.args("-v", "-o", "alpha", "-d", filepath.Join(env.dir, "missing")), &out)
	if err == nil {
		t.Fatal("expected validation error for missing dataset")
	}

	if strings.Contains(out.String(), "min = ") {
		t.Errorf("validation run printed benchmark stats:\n%s", out.String())
	}
}

func TestRun_InvalidBatchSizeUnderStrictPolicy(t *testing.T) {
	env := newRunEnv(t)

	var out bytes.Buffer

	err := run(context.Background(), env.args("--numeric-policy", "strict", "-b", "abc"), &out)
	if err == nil {
		t.Fatal("expected error for non-numeric batch size under strict policy")
	}
}

func TestRun_BootstrapFailure(t *testing.T) {
	env := newRunEnv(t)

	bootstrapRuntime = func(config.RuntimeConfig) (onnx.RuntimeInfo, error) {
		return onnx.RuntimeInfo{}, errors.New("no library")
	}

	var out bytes.Buffer

	err := run(context.Background(), env.args("-o", "alpha"), &out)
	if err == nil || !strings.Contains(err.Error(), "onnx runtime") {
		t.Fatalf("run error = %v; want onnx runtime error", err)
	}
}

func TestRun_LatencyGate(t *testing.T) {
	env := newRunEnv(t)

	var out bytes.Buffer

	// Any real measurement exceeds one picosecond.
	err := run(context.Background(), env.args("-o", "alpha", "--max-latency-ms", "0.000000001"), &out)
	if err == nil {
		t.Fatal("expected latency gate error")
	}
}
