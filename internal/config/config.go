package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Harness  HarnessConfig `mapstructure:"harness"`
	Paths    PathsConfig   `mapstructure:"paths"`
	Runtime  RuntimeConfig `mapstructure:"runtime"`
	Bench    BenchConfig   `mapstructure:"bench"`
	Report   ReportConfig  `mapstructure:"report"`
	LogLevel string        `mapstructure:"log_level"`
}

// HarnessConfig holds the options of the dispatch loop. BatchSize is kept
// as the raw option text and converted under NumericPolicy by RunConfig.
type HarnessConfig struct {
	Validation    bool   `mapstructure:"validation"`
	Debug         bool   `mapstructure:"debug"`
	Backend       string `mapstructure:"backend"`
	BatchSize     string `mapstructure:"batch_size"`
	OnlyTest      string `mapstructure:"only_test"`
	Append        string `mapstructure:"append"`
	KeepGoing     bool   `mapstructure:"keep_going"`
	NumericPolicy string `mapstructure:"numeric_policy"`
	Seed          uint64 `mapstructure:"seed"`
}

type PathsConfig struct {
	DataPath string `mapstructure:"data_path"`
	ModelDir string `mapstructure:"model_dir"`
	ModelExt string `mapstructure:"model_ext"`
	Catalog  string `mapstructure:"catalog"`
}

type RuntimeConfig struct {
	Threads        string `mapstructure:"threads"`
	ORTLibraryPath string `mapstructure:"ort_library_path"`
	ORTVersion     string `mapstructure:"ort_version"`
	ORTAPIVersion  uint32 `mapstructure:"ort_api_version"`
}

type BenchConfig struct {
	Warmup       time.Duration `mapstructure:"warmup"`
	Duration     time.Duration `mapstructure:"duration"`
	MaxLatencyMS float64       `mapstructure:"max_latency_ms"`
}

type ReportConfig struct {
	Format string `mapstructure:"format"`
	Path   string `mapstructure:"path"`
}

// RunConfig is the resolved view the dispatcher works from.
type RunConfig struct {
	Validation bool
	BatchSize  int
	Debug      bool
	DataPath   string
	OnlyTest   string
	Threads    int
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Harness: HarnessConfig{
			Validation:    false,
			Debug:         false,
			Backend:       BackendORT,
			BatchSize:     "1",
			OnlyTest:      "",
			KeepGoing:     false,
			NumericPolicy: NumericLenient,
			Seed:          0,
		},
		Paths: PathsConfig{
			DataPath: "imagenet-div50",
			ModelDir: "onnx",
			ModelExt: ".onnx",
			Catalog:  "",
		},
		Runtime: RuntimeConfig{
			Threads:        "1",
			ORTLibraryPath: "",
			ORTVersion:     "",
			ORTAPIVersion:  23,
		},
		Bench: BenchConfig{
			Warmup:       5 * time.Second,
			Duration:     20 * time.Second,
			MaxLatencyMS: 0,
		},
		Report: ReportConfig{
			Format: FormatTable,
			Path:   "",
		},
		LogLevel: "info",
	}
}

// flagKeys maps every registered flag to its nested config key.
var flagKeys = []struct {
	flag string
	key  string
}{
	{"validation", "harness.validation"},
	{"debug", "harness.debug"},
	{"backend", "harness.backend"},
	{"batch-size", "harness.batch_size"},
	{"only-test", "harness.only_test"},
	{"append", "harness.append"},
	{"keep-going", "harness.keep_going"},
	{"numeric-policy", "harness.numeric_policy"},
	{"seed", "harness.seed"},
	{"data-path", "paths.data_path"},
	{"model-dir", "paths.model_dir"},
	{"model-ext", "paths.model_ext"},
	{"catalog", "paths.catalog"},
	{"threads", "runtime.threads"},
	{"ort-lib", "runtime.ort_library_path"},
	{"ort-version", "runtime.ort_version"},
	{"ort-api-version", "runtime.ort_api_version"},
	{"warmup", "bench.warmup"},
	{"duration", "bench.duration"},
	{"max-latency-ms", "bench.max_latency_ms"},
	{"format", "report.format"},
	{"report", "report.path"},
	{"log-level", "log_level"},
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.BoolP("validation", "v", defaults.Harness.Validation, "Run accuracy validation instead of the timing benchmark")
	fs.BoolP("debug", "g", defaults.Harness.Debug, "Enable debug output")
	fs.StringP("backend", "u", defaults.Harness.Backend, "Inference backend (accepted for compatibility; only onnxruntime is driven)")
	fs.StringP("batch-size", "b", defaults.Harness.BatchSize, "Batch size of the input tensor `N`")
	fs.StringP("only-test", "o", defaults.Harness.OnlyTest, "Only run catalog models whose name contains `SUBSTRING`")
	fs.String("append", defaults.Harness.Append, "Free-form `VALUE` echoed to stdout")
	fs.Bool("keep-going", defaults.Harness.KeepGoing, "Continue with the next model after a load or run failure")
	fs.String("numeric-policy", defaults.Harness.NumericPolicy, "How to treat non-numeric counts: lenient|strict")
	fs.Uint64("seed", defaults.Harness.Seed, "Seed for random input tensors (0 = fixed default seed)")
	fs.StringP("data-path", "d", defaults.Paths.DataPath, "Validation dataset root")
	fs.String("model-dir", defaults.Paths.ModelDir, "Directory holding <model><ext> files")
	fs.String("model-ext", defaults.Paths.ModelExt, "Model file extension")
	fs.String("catalog", defaults.Paths.Catalog, "Model catalog file (yaml|json|toml); empty uses the built-in table")
	fs.StringP("threads", "t", defaults.Runtime.Threads, "Thread count reported for the run `N`")
	fs.String("ort-lib", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library")
	fs.String("ort-version", defaults.Runtime.ORTVersion, "Expected ONNX Runtime version")
	fs.Uint32("ort-api-version", defaults.Runtime.ORTAPIVersion, "ONNX Runtime C API version expected by the purego binding")
	fs.Duration("warmup", defaults.Bench.Warmup, "Benchmark warm-up time per model")
	fs.Duration("duration", defaults.Bench.Duration, "Accumulated measured time per model")
	fs.Float64("max-latency-ms", defaults.Bench.MaxLatencyMS, "Exit non-zero if any model's mean latency exceeds this value (0 = disabled)")
	fs.String("format", defaults.Report.Format, "Summary format: table|json|none")
	fs.String("report", defaults.Report.Path, "Also write the JSON summary to this file")
	fs.String("log-level", defaults.LogLevel, "Log level: debug|info|warn|error")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("EDGEPERF")
	replacer := strings.NewReplacer("-", "_", ".", "_")
	v.SetEnvKeyReplacer(replacer)
	if err := v.BindEnv("runtime.ort_library_path", "EDGEPERF_ORT_LIB", "ORT_LIBRARY_PATH"); err != nil {
		return Config{}, fmt.Errorf("bind ort env vars: %w", err)
	}
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("edgeperf")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

// RunConfig converts the raw counts under the configured numeric policy.
func (c Config) RunConfig() (RunConfig, error) {
	policy, err := NormalizeNumericPolicy(c.Harness.NumericPolicy)
	if err != nil {
		return RunConfig{}, err
	}

	batch, err := ParseCount("batch-size", c.Harness.BatchSize, 1, policy)
	if err != nil {
		return RunConfig{}, err
	}

	threads, err := ParseCount("threads", c.Runtime.Threads, 1, policy)
	if err != nil {
		return RunConfig{}, err
	}

	return RunConfig{
		Validation: c.Harness.Validation,
		BatchSize:  batch,
		Debug:      c.Harness.Debug,
		DataPath:   c.Paths.DataPath,
		OnlyTest:   c.Harness.OnlyTest,
		Threads:    threads,
	}, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("harness.validation", c.Harness.Validation)
	v.SetDefault("harness.debug", c.Harness.Debug)
	v.SetDefault("harness.backend", c.Harness.Backend)
	v.SetDefault("harness.batch_size", c.Harness.BatchSize)
	v.SetDefault("harness.only_test", c.Harness.OnlyTest)
	v.SetDefault("harness.append", c.Harness.Append)
	v.SetDefault("harness.keep_going", c.Harness.KeepGoing)
	v.SetDefault("harness.numeric_policy", c.Harness.NumericPolicy)
	v.SetDefault("harness.seed", c.Harness.Seed)
	v.SetDefault("paths.data_path", c.Paths.DataPath)
	v.SetDefault("paths.model_dir", c.Paths.ModelDir)
	v.SetDefault("paths.model_ext", c.Paths.ModelExt)
	v.SetDefault("paths.catalog", c.Paths.Catalog)
	v.SetDefault("runtime.threads", c.Runtime.Threads)
	v.SetDefault("runtime.ort_library_path", c.Runtime.ORTLibraryPath)
	v.SetDefault("runtime.ort_version", c.Runtime.ORTVersion)
	v.SetDefault("runtime.ort_api_version", c.Runtime.ORTAPIVersion)
	v.SetDefault("bench.warmup", c.Bench.Warmup)
	v.SetDefault("bench.duration", c.Bench.Duration)
	v.SetDefault("bench.max_latency_ms", c.Bench.MaxLatencyMS)
	v.SetDefault("report.format", c.Report.Format)
	v.SetDefault("report.path", c.Report.Path)
	v.SetDefault("log_level", c.LogLevel)
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, fk := range flagKeys {
		f := fs.Lookup(fk.flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(fk.key, f); err != nil {
			return fmt.Errorf("bind flag --%s: %w", fk.flag, err)
		}
	}

	return nil
}
