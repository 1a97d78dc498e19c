//go:build !windows

package onnx

import "testing"

func TestSessionOptions(t *testing.T) {
	if got := sessionOptions(RunnerConfig{}); got != nil {
		t.Errorf("sessionOptions(zero) = %+v; want nil", got)
	}

	if got := sessionOptions(RunnerConfig{IntraOpThreads: -2}); got != nil {
		t.Errorf("sessionOptions(-2) = %+v; want nil", got)
	}

	got := sessionOptions(RunnerConfig{IntraOpThreads: 4})
	if got == nil || got.IntraOpNumThreads != 4 {
		t.Fatalf("sessionOptions(4) = %+v; want IntraOpNumThreads 4", got)
	}

	if len(got.ExecutionProviders) != 0 {
		t.Errorf("unexpected execution providers %v", got.ExecutionProviders)
	}
}
