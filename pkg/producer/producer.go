package producer

import "github.com/petrijr/seqflow/pkg/api"

// Producer generates the next value of a sequence from its current state.
// Implementations must be pure functions of state plus their immutable
// bounds.
type Producer[S any] interface {
	// Init returns the initial state.
	Init() S

	// Step advances the state by one iteration. A returned error is an
	// unexpected fault and fails the worker; exhaustion is reported
	// through Step.Done instead.
	Step(state S) (Step[S], error)
}

// Step is the outcome of one Producer.Step call.
type Step[S any] struct {
	// State is the state to pass to the next call.
	State S

	// Value is the emitted value; meaningful only when Emitted is true.
	Value   string
	Emitted bool

	// Progress is measured after this step.
	Progress api.ProgressSample

	// Done reports that the sequence is exhausted. A step may both emit
	// a value and be Done; the value is delivered before completion.
	Done bool
}

// Limit returns a pointer to n, for optional upper bounds.
func Limit(n int64) *int64 {
	return &n
}

// progressBetween measures current inside [lower, upper].
func progressBetween(current, lower int64, upper *int64) api.ProgressSample {
	if upper == nil {
		return api.Indeterminate(current - lower)
	}
	return api.Bounded(current-lower, *upper-lower)
}
