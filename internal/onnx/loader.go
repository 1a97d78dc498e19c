package onnx

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// ErrModelNotFound is returned by Loader.Load when the model file is absent.
var ErrModelNotFound = errors.New("model file not found")

// Loader creates one Runner per model file.
type Loader struct {
	cfg RunnerConfig
}

func NewLoader(cfg RunnerConfig) *Loader {
	return &Loader{cfg: cfg}
}

// Load opens meta.Path under mode. The caller owns the returned module and
// must Close it before loading the next one.
func (l *Loader) Load(ctx context.Context, meta Session, mode InferenceMode) (Module, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := mode.Validate(); err != nil {
		return nil, fmt.Errorf("load %q: %w", meta.Name, err)
	}

	info, err := os.Stat(meta.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %q: %w: %s", meta.Name, ErrModelNotFound, meta.Path)
		}

		return nil, fmt.Errorf("load %q: %w", meta.Name, err)
	}

	if info.IsDir() {
		return nil, fmt.Errorf("load %q: %s is a directory", meta.Name, meta.Path)
	}

	r, err := NewRunner(meta, l.cfg, mode)
	if err != nil {
		return nil, err
	}

	return r, nil
}
