package onnx

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/example/go-edge-perf/internal/config"
)

func resetRuntimeStateForTest() {
	bootstrapOnce = sync.Once{}
	bootstrapInfo = RuntimeInfo{}
	errBootstrap = nil
	shutdownFlag.Store(false)
}

func writeFakeLib(t *testing.T, dir, name string) string {
	t.Helper()

	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("fake"), 0o644); err != nil {
		t.Fatalf("write fake lib: %v", err)
	}

	return p
}

func TestDetectRuntimePrefersEdgePerfORTLib(t *testing.T) {
	tmp := t.TempDir()
	lib := writeFakeLib(t, tmp, "libonnxruntime.so")

	t.Setenv("EDGEPERF_ORT_LIB", lib)
	t.Setenv("ORT_LIBRARY_PATH", filepath.Join(tmp, "does-not-exist"))

	info, err := DetectRuntime(config.RuntimeConfig{})
	if err != nil {
		t.Fatalf("DetectRuntime failed: %v", err)
	}

	if info.LibraryPath != lib {
		t.Fatalf("expected %q, got %q", lib, info.LibraryPath)
	}
}

func TestDetectRuntimeConfigBeatsEnv(t *testing.T) {
	tmp := t.TempDir()
	fromCfg := writeFakeLib(t, tmp, "libonnxruntime.so.1.22.0")
	fromEnv := writeFakeLib(t, tmp, "env.so")

	t.Setenv("EDGEPERF_ORT_LIB", fromEnv)
	t.Setenv("ORT_VERSION", "")

	info, err := DetectRuntime(config.RuntimeConfig{ORTLibraryPath: fromCfg})
	if err != nil {
		t.Fatalf("DetectRuntime failed: %v", err)
	}

	if info.LibraryPath != fromCfg {
		t.Fatalf("expected %q, got %q", fromCfg, info.LibraryPath)
	}

	if info.Version != "1.22.0" {
		t.Fatalf("expected version inferred from file name, got %q", info.Version)
	}
}

func TestDetectRuntimeMissingPath(t *testing.T) {
	t.Setenv("EDGEPERF_ORT_LIB", "")
	t.Setenv("ORT_LIBRARY_PATH", "")

	_, err := DetectRuntime(config.RuntimeConfig{ORTLibraryPath: filepath.Join(t.TempDir(), "nope.so")})
	if err == nil {
		t.Fatal("expected error for nonexistent library")
	}
}

func TestBootstrapRunsOnce(t *testing.T) {
	resetRuntimeStateForTest()
	t.Cleanup(resetRuntimeStateForTest)

	tmp := t.TempDir()
	lib1 := writeFakeLib(t, tmp, "lib1.so")
	lib2 := writeFakeLib(t, tmp, "lib2.so")

	t.Setenv("EDGEPERF_ORT_LIB", "")

	info1, err := Bootstrap(config.RuntimeConfig{ORTLibraryPath: lib1})
	if err != nil {
		t.Fatalf("first bootstrap failed: %v", err)
	}

	info2, err := Bootstrap(config.RuntimeConfig{ORTLibraryPath: lib2})
	if err != nil {
		t.Fatalf("second bootstrap failed: %v", err)
	}

	if info1.LibraryPath != lib1 {
		t.Fatalf("expected first lib path %q, got %q", lib1, info1.LibraryPath)
	}

	if info2.LibraryPath != lib1 {
		t.Fatalf("expected once semantics to keep %q, got %q", lib1, info2.LibraryPath)
	}

	if err := Shutdown(); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	if err := Shutdown(); err != nil {
		t.Fatalf("second shutdown failed: %v", err)
	}
}

func TestLibraryVersion(t *testing.T) {
	tests := []struct {
		name   string
		cfg    config.RuntimeConfig
		env    string
		path   string
		expect string
	}{
		{"config wins", config.RuntimeConfig{ORTVersion: "1.20.1"}, "1.19.0", "/lib/libonnxruntime.so.1.23.0", "1.20.1"},
		{"env before file name", config.RuntimeConfig{}, "1.19.0", "/lib/libonnxruntime.so.1.23.0", "1.19.0"},
		{"file name", config.RuntimeConfig{}, "", "/lib/libonnxruntime.so.1.23.0", "1.23.0"},
		{"unknown", config.RuntimeConfig{}, "", "/lib/libonnxruntime.so", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ORT_VERSION", tt.env)

			if got := libraryVersion(tt.cfg, tt.path); got != tt.expect {
				t.Errorf("libraryVersion() = %q; want %q", got, tt.expect)
			}
		})
	}
}
