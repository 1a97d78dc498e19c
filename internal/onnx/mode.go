package onnx

import (
	"errors"
	"sync"
)

// ErrTrainingMode is returned when a module is loaded under a mode that
// keeps gradient tracking on.
var ErrTrainingMode = errors.New("gradient tracking is enabled; modules are loaded for inference only")

// InferenceMode is the set of runtime policy toggles a module runs under.
// Only GradTracking is enforced (by Validate); ORT sessions are created
// without a graph-optimization setting, so UnifiedDispatch and
// GraphOptimization are recorded on the runner and logged.
type InferenceMode struct {
	GradTracking      bool
	UnifiedDispatch   bool
	GraphOptimization bool
}

// DefaultMode is the process state outside any guard.
func DefaultMode() InferenceMode {
	return InferenceMode{
		GradTracking:      true,
		UnifiedDispatch:   false,
		GraphOptimization: true,
	}
}

// InferenceOnly is the constrained mobile-style profile: no gradients,
// unified tensor dispatch, graph optimizer off.
func InferenceOnly() InferenceMode {
	return InferenceMode{
		GradTracking:      false,
		UnifiedDispatch:   true,
		GraphOptimization: false,
	}
}

func (m InferenceMode) Validate() error {
	if m.GradTracking {
		return ErrTrainingMode
	}

	return nil
}

var (
	modeMu     sync.Mutex
	activeMode = DefaultMode()
)

// ActiveMode returns the mode installed by the innermost live guard.
func ActiveMode() InferenceMode {
	modeMu.Lock()
	defer modeMu.Unlock()

	return activeMode
}

// EnterMode installs m until the returned release func runs. Release
// restores the mode that was active before and is safe to call more than
// once. Guards must be released in reverse order of acquisition.
func EnterMode(m InferenceMode) (release func()) {
	modeMu.Lock()
	prev := activeMode
	activeMode = m
	modeMu.Unlock()

	var once sync.Once

	return func() {
		once.Do(func() {
			modeMu.Lock()
			activeMode = prev
			modeMu.Unlock()
		})
	}
}
