//go:build windows

package onnx

import (
	"context"
	"fmt"
)

// RunnerConfig holds ORT library settings for creating runners.
// In windows builds, native ORT runner support is currently unavailable.
type RunnerConfig struct {
	LibraryPath    string
	APIVersion     uint32
	IntraOpThreads int
}

// Runner is unavailable in windows builds.
type Runner struct {
	name string
	mode InferenceMode
}

// NewRunner always returns an error in windows builds.
func NewRunner(meta Session, _ RunnerConfig, _ InferenceMode) (*Runner, error) {
	return nil, fmt.Errorf("native onnx runner is unavailable on windows for model %q", meta.Name)
}

// Run always returns an error in windows builds.
func (r *Runner) Run(_ context.Context, _ map[string]*Tensor) (map[string]*Tensor, error) {
	return nil, fmt.Errorf("native onnx runner is unavailable on windows for model %q", r.name)
}

// Classify always returns an error in windows builds.
func (r *Runner) Classify(ctx context.Context, input *Tensor) (*Tensor, error) {
	return r.Run(ctx, nil)
}

// Close is a no-op in windows builds.
func (r *Runner) Close() {}

// Name returns the model name.
func (r *Runner) Name() string {
	return r.name
}

// Mode returns the mode the runner was loaded under.
func (r *Runner) Mode() InferenceMode {
	return r.mode
}
