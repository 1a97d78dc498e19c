package harness

// State is a step of the dispatch loop.
type State int

const (
	Idle State = iota
	SelectingModel
	Filtering
	Loading
	Evaluating
	Benchmarking
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case SelectingModel:
		return "selecting-model"
	case Filtering:
		return "filtering"
	case Loading:
		return "loading"
	case Evaluating:
		return "evaluating"
	case Benchmarking:
		return "benchmarking"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Transition records one state change. Model is empty for the final move
// to Done.
type Transition struct {
	From  State
	To    State
	Model string
}

// Observer is called synchronously on every transition.
type Observer func(Transition)
