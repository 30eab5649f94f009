package producer

import (
	"fmt"
	"math"
	"strconv"

	"github.com/petrijr/seqflow/pkg/api"
)

// FibonacciBounds configures a Fibonacci run. A nil MaxValue runs until the
// terms no longer fit in an int64.
type FibonacciBounds struct {
	MaxValue *int64
}

// Validate checks the bounds before any worker is constructed.
func (b FibonacciBounds) Validate() error {
	if b.MaxValue != nil && *b.MaxValue < 0 {
		return api.NewValidationError("maxValue", strconv.FormatInt(*b.MaxValue, 10), "must be >= 0")
	}
	return nil
}

func (b FibonacciBounds) String() string {
	if b.MaxValue == nil {
		return "maxValue=unbounded"
	}
	return fmt.Sprintf("maxValue=%d", *b.MaxValue)
}

// FibonacciState holds the next term to emit (A) and the one after it (B).
// Last marks that B overflowed, so A is the final representable term.
type FibonacciState struct {
	A, B int64
	Last bool
}

// Fibonacci emits 0, 1, 1, 2, 3, 5, ... up to MaxValue.
type Fibonacci struct {
	bounds FibonacciBounds
}

var _ Producer[FibonacciState] = (*Fibonacci)(nil)

// NewFibonacci validates bounds and returns a Fibonacci producer.
func NewFibonacci(bounds FibonacciBounds) (*Fibonacci, error) {
	if err := bounds.Validate(); err != nil {
		return nil, err
	}
	return &Fibonacci{bounds: bounds}, nil
}

// Bounds returns the configured bounds.
func (f *Fibonacci) Bounds() FibonacciBounds {
	return f.bounds
}

func (f *Fibonacci) Init() FibonacciState {
	return FibonacciState{A: 0, B: 1}
}

func (f *Fibonacci) Step(st FibonacciState) (Step[FibonacciState], error) {
	max := f.bounds.MaxValue

	if max != nil && st.A > *max {
		// Only reachable with a hand-built state.
		return Step[FibonacciState]{State: st, Progress: api.Bounded(*max, *max), Done: true}, nil
	}
	if st.A < 0 || st.B < 0 {
		return Step[FibonacciState]{}, fmt.Errorf("negative fibonacci state (%d, %d)", st.A, st.B)
	}

	out := Step[FibonacciState]{
		Value:    strconv.FormatInt(st.A, 10),
		Emitted:  true,
		Progress: progressBetween(st.A, 0, max),
	}

	switch {
	case st.Last:
		out.State = st
		out.Done = true
	case max != nil && st.B > *max:
		out.State = st
		out.Done = true
	case st.B > math.MaxInt64-st.A:
		// A+B overflows: B is the last term that fits.
		out.State = FibonacciState{A: st.B, B: st.B, Last: true}
	default:
		out.State = FibonacciState{A: st.B, B: st.A + st.B}
	}
	return out, nil
}
