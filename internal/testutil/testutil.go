// Package testutil provides shared skip helpers for integration tests.
//
// Each helper calls t.Skip with a clear human-readable reason when the named
// prerequisite is absent, so integration tests remain runnable in partial
// environments without failing noisily.
//
// Typical usage:
//
//	func TestMyIntegration(t *testing.T) {
//	    lib := testutil.RequireONNXRuntime(t)
//	    model := testutil.RequireModel(t)
//	    ...
//	}
package testutil

import (
	"os"
	"testing"
)

// systemLibraries are probed when no library path is set in the environment.
var systemLibraries = []string{
	"/usr/lib/libonnxruntime.so",
	"/usr/local/lib/libonnxruntime.so",
	"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
	"/opt/homebrew/lib/libonnxruntime.dylib",
}

// RequireONNXRuntime skips the test if no ONNX Runtime shared library can be
// located and returns its path otherwise. It checks (in order): the
// EDGEPERF_ORT_LIB env var, then ORT_LIBRARY_PATH, then common system
// library paths.
func RequireONNXRuntime(tb testing.TB) string {
	tb.Helper()

	for _, env := range []string{"EDGEPERF_ORT_LIB", "ORT_LIBRARY_PATH"} {
		if p := os.Getenv(env); p != "" {
			// #nosec G703 -- Integration tests intentionally accept explicit env-provided local library paths.
			_, err := os.Stat(p)
			if err == nil {
				return p
			}

			tb.Skipf("ONNX Runtime library not found at %s=%q", env, p)

			return ""
		}
	}

	for _, p := range systemLibraries {
		_, err := os.Stat(p)
		if err == nil {
			return p
		}
	}

	tb.Skip("ONNX Runtime shared library not found; set EDGEPERF_ORT_LIB or ORT_LIBRARY_PATH")

	return ""
}

// RequireModel skips the test unless EDGEPERF_TEST_MODEL names an existing
// exported classifier, and returns that path.
func RequireModel(tb testing.TB) string {
	tb.Helper()

	p := os.Getenv("EDGEPERF_TEST_MODEL")
	if p == "" {
		tb.Skip("no test model; set EDGEPERF_TEST_MODEL to an exported .onnx classifier")

		return ""
	}

	if _, err := os.Stat(p); err != nil {
		tb.Skipf("test model not available at %q: %v", p, err)

		return ""
	}

	return p
}
