package onnx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"sync/atomic"

	"github.com/example/go-edge-perf/internal/config"
)

// RuntimeInfo identifies the ONNX Runtime shared library a run uses.
type RuntimeInfo struct {
	LibraryPath string
	Version     string
	Initialized bool
}

// libraryEnvVars are consulted after the configured path, in order.
var libraryEnvVars = []string{"EDGEPERF_ORT_LIB", "ORT_LIBRARY_PATH"}

// libraryCandidates are probed in order when nothing is configured.
var libraryCandidates = []string{
	"/usr/lib/libonnxruntime.so",
	"/usr/local/lib/libonnxruntime.so",
	"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
	"/opt/homebrew/lib/libonnxruntime.dylib",
	"C:/onnxruntime/lib/onnxruntime.dll",
}

var semverInName = regexp.MustCompile(`([0-9]+\.[0-9]+\.[0-9]+)`)

var (
	bootstrapOnce sync.Once
	bootstrapInfo RuntimeInfo
	errBootstrap  error
	shutdownFlag  atomic.Bool
)

// Bootstrap resolves the library once per process and exports its path as
// EDGEPERF_ORT_LIB. Later calls return the first outcome.
func Bootstrap(cfg config.RuntimeConfig) (RuntimeInfo, error) {
	bootstrapOnce.Do(func() {
		info, err := DetectRuntime(cfg)
		if err == nil {
			err = os.Setenv("EDGEPERF_ORT_LIB", info.LibraryPath)
			if err != nil {
				err = fmt.Errorf("set EDGEPERF_ORT_LIB: %w", err)
			}
		}

		if err != nil {
			errBootstrap = err
			return
		}

		info.Initialized = true
		bootstrapInfo = info
	})

	if errBootstrap != nil {
		return RuntimeInfo{}, errBootstrap
	}

	return bootstrapInfo, nil
}

// Shutdown marks the bootstrapped runtime as released. Runners own their
// ORT handles, so nothing else is freed here. Repeated calls are no-ops.
func Shutdown() error {
	if !bootstrapInfo.Initialized || shutdownFlag.Swap(true) {
		return nil
	}

	bootstrapInfo.Initialized = false

	return nil
}

// DetectRuntime locates the library from cfg, the environment or the
// well-known install paths, and infers its version.
func DetectRuntime(cfg config.RuntimeConfig) (RuntimeInfo, error) {
	path := libraryPath(cfg)
	if path == "" {
		return RuntimeInfo{LibraryPath: "not found", Version: "unknown"}, errors.New("unable to detect ONNX Runtime library path")
	}

	if _, err := os.Stat(path); err != nil {
		return RuntimeInfo{LibraryPath: path, Version: "unknown"}, fmt.Errorf("onnx runtime library path check failed: %w", err)
	}

	return RuntimeInfo{LibraryPath: path, Version: libraryVersion(cfg, path)}, nil
}

func libraryPath(cfg config.RuntimeConfig) string {
	if cfg.ORTLibraryPath != "" {
		return cfg.ORTLibraryPath
	}

	for _, env := range libraryEnvVars {
		if p := os.Getenv(env); p != "" {
			return p
		}
	}

	for _, c := range libraryCandidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}

	return ""
}

// libraryVersion prefers the configured version, then ORT_VERSION, then a
// x.y.z found in the file name.
func libraryVersion(cfg config.RuntimeConfig, path string) string {
	if cfg.ORTVersion != "" {
		return cfg.ORTVersion
	}

	if v := os.Getenv("ORT_VERSION"); v != "" {
		return v
	}

	if m := semverInName.FindStringSubmatch(filepath.Base(path)); len(m) == 2 {
		return m[1]
	}

	return "unknown"
}
