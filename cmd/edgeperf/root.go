package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/example/go-edge-perf/internal/bench"
	"github.com/example/go-edge-perf/internal/catalog"
	"github.com/example/go-edge-perf/internal/config"
	"github.com/example/go-edge-perf/internal/eval"
	"github.com/example/go-edge-perf/internal/harness"
	"github.com/example/go-edge-perf/internal/host"
	"github.com/example/go-edge-perf/internal/onnx"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	activeCfg config.Config
)

// Seams for tests.
var (
	bootstrapRuntime = onnx.Bootstrap
	newLoader        = func(cfg onnx.RunnerConfig) harness.Loader { return onnx.NewLoader(cfg) }
	describeHost     = host.Describe
)

func NewRootCmd() *cobra.Command {
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "edgeperf",
		Short: "Benchmark and validate exported vision models with ONNX Runtime",
		Long: "edgeperf loads each model of the catalog from <model-dir>/<name><ext> and either\n" +
			"times repeated inference on a random input or, with --validation, measures\n" +
			"accuracy over an ImageFolder dataset.",
		Args:               cobra.ArbitraryArgs,
		SilenceUsage:       true,
		FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(config.LoadOptions{
				Cmd:        cmd,
				ConfigFile: cfgFile,
				Defaults:   defaults,
			})
			if err != nil {
				return err
			}

			activeCfg = loaded

			level := loaded.LogLevel
			if loaded.Harness.Debug {
				level = "debug"
			}

			setupLogger(level)

			return nil
		},
		RunE: runHarness,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Optional config file (yaml|toml|json)")
	config.RegisterFlags(cmd.PersistentFlags(), defaults)

	cmd.AddCommand(newCatalogCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newVerifyCmd())

	for _, sub := range cmd.Commands() {
		sub.FParseErrWhitelist = cobra.FParseErrWhitelist{UnknownFlags: true}
	}

	return cmd
}

// setupLogger configures the process-wide slog default logger.
func setupLogger(levelStr string) {
	lvl, err := config.ParseLogLevel(levelStr)
	if err != nil {
		lvl = slog.LevelInfo
	}

	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(h))
}

func requireConfig() (config.Config, error) {
	if activeCfg.Paths.ModelDir == "" {
		return config.Config{}, fmt.Errorf("configuration not loaded")
	}

	return activeCfg, nil
}

// loadCatalog returns the configured catalog file or the built-in table.
func loadCatalog(cfg config.Config) (*catalog.Catalog, error) {
	return catalog.LoadOrDefault(cfg.Paths.Catalog)
}

// runnerConfig is the session setup shared by every model of a run.
func runnerConfig(cfg config.Config, rt onnx.RuntimeInfo, threads int) onnx.RunnerConfig {
	return onnx.RunnerConfig{
		LibraryPath:    rt.LibraryPath,
		APIVersion:     cfg.Runtime.ORTAPIVersion,
		IntraOpThreads: threads,
	}
}

func runHarness(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if len(args) > 0 {
		slog.Warn("ignoring positional arguments", "args", strings.Join(args, " "))
	}

	if _, err := config.NormalizeBackend(cfg.Harness.Backend); err != nil {
		slog.Warn("backend option ignored", "error", err)
	}

	runCfg, err := cfg.RunConfig()
	if err != nil {
		return err
	}

	format, err := config.NormalizeFormat(cfg.Report.Format)
	if err != nil {
		return err
	}

	info := describeHost()
	host.WriteBanner(out, info, runCfg.Threads)
	slog.Debug("host",
		"physical_cores", info.PhysicalCores,
		"vendor", info.Vendor,
		"simd", info.SIMD(),
		"go", info.GoVersion,
		"os", info.OS,
		"arch", info.Arch,
	)

	cat, err := loadCatalog(cfg)
	if err != nil {
		return err
	}

	if len(cat.Select(runCfg.OnlyTest)) == 0 {
		slog.Warn("no catalog model matches the filter", "only_test", runCfg.OnlyTest, "catalog_size", cat.Len())
		return nil
	}

	rt, err := bootstrapRuntime(cfg.Runtime)
	if err != nil {
		return fmt.Errorf("onnx runtime: %w", err)
	}

	slog.Info("onnx runtime", "library", rt.LibraryPath, "version", rt.Version, "threads", runCfg.Threads)

	d := harness.New(
		cat,
		newLoader(runnerConfig(cfg, rt, runCfg.Threads)),
		&eval.Evaluator{DataPath: runCfg.DataPath, Out: out},
		&bench.Benchmarker{Warmup: cfg.Bench.Warmup, Duration: cfg.Bench.Duration, Out: out},
		harness.Options{
			Run:       runCfg,
			ModelDir:  cfg.Paths.ModelDir,
			ModelExt:  cfg.Paths.ModelExt,
			KeepGoing: cfg.Harness.KeepGoing,
			Seed:      cfg.Harness.Seed,
			Out:       out,
			Observer: func(t harness.Transition) {
				slog.Debug("dispatch", "from", t.From.String(), "to", t.To.String(), "model", t.Model)
			},
		},
	)

	results, runErr := d.Run(cmd.Context())

	reportErr := writeReports(results, format, cfg.Report.Path, out)
	gateErr := harness.CheckLatency(results, cfg.Bench.MaxLatencyMS)

	return errors.Join(runErr, reportErr, gateErr)
}

// writeReports prints the summary to out and, when path is set, writes the
// JSON summary there too.
func writeReports(results []harness.Result, format, path string, out io.Writer) error {
	if len(results) == 0 {
		return nil
	}

	if format != config.FormatNone {
		_, _ = fmt.Fprintln(out)

		if err := harness.WriteReport(results, format, out); err != nil {
			return err
		}
	}

	if path == "" {
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}

	if err := harness.WriteReport(results, config.FormatJSON, f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write report: %w", err)
	}

	return f.Close()
}
