package producer

import (
	"fmt"
	"math"
	"strconv"

	"github.com/petrijr/seqflow/pkg/api"
)

// DefaultPrimeMin is the scan start when no minimum is supplied.
const DefaultPrimeMin = 2

// PrimeBounds configures a prime scan over [Min, Max].
// A nil Max scans until cancelled.
type PrimeBounds struct {
	Min int64
	Max *int64
}

// Validate checks the bounds before any worker is constructed.
func (b PrimeBounds) Validate() error {
	if b.Min < 0 {
		return api.NewValidationError("min", strconv.FormatInt(b.Min, 10), "must be >= 0")
	}
	if b.Max != nil && *b.Max < b.Min {
		return api.NewValidationError("max", strconv.FormatInt(*b.Max, 10),
			fmt.Sprintf("must be >= min (%d)", b.Min))
	}
	return nil
}

func (b PrimeBounds) String() string {
	if b.Max == nil {
		return fmt.Sprintf("min=%d max=unbounded", b.Min)
	}
	return fmt.Sprintf("min=%d max=%d", b.Min, *b.Max)
}

// PrimeState is the next integer to test.
type PrimeState struct {
	Current int64
}

// Primes emits the primes found while scanning upward from Min.
type Primes struct {
	bounds PrimeBounds
}

var _ Producer[PrimeState] = (*Primes)(nil)

// NewPrimes validates bounds and returns a prime producer.
func NewPrimes(bounds PrimeBounds) (*Primes, error) {
	if err := bounds.Validate(); err != nil {
		return nil, err
	}
	return &Primes{bounds: bounds}, nil
}

// Bounds returns the configured bounds.
func (p *Primes) Bounds() PrimeBounds {
	return p.bounds
}

func (p *Primes) Init() PrimeState {
	return PrimeState{Current: p.bounds.Min}
}

func (p *Primes) Step(st PrimeState) (Step[PrimeState], error) {
	n := st.Current
	max := p.bounds.Max

	if max != nil && n > *max {
		// Only reachable with a hand-built state.
		return Step[PrimeState]{State: st, Progress: api.Bounded(*max-p.bounds.Min, *max-p.bounds.Min), Done: true}, nil
	}

	out := Step[PrimeState]{
		Progress: progressBetween(n, p.bounds.Min, max),
	}
	if IsPrime(n) {
		out.Value = strconv.FormatInt(n, 10)
		out.Emitted = true
	}

	switch {
	case max != nil && n >= *max:
		out.State = st
		out.Done = true
	case n == math.MaxInt64:
		// Nothing left to scan.
		out.State = st
		out.Done = true
	default:
		out.State = PrimeState{Current: n + 1}
	}
	return out, nil
}

// maxInt64Sqrt is floor(sqrt(math.MaxInt64)).
const maxInt64Sqrt = 3037000499

// IsPrime reports whether n is prime using trial division up to floor(sqrt(n)).
func IsPrime(n int64) bool {
	if n <= 1 {
		return false
	}
	if n < 4 {
		return true
	}
	if n%2 == 0 {
		return false
	}
	limit := int64(math.Sqrt(float64(n)))
	if limit > maxInt64Sqrt {
		limit = maxInt64Sqrt
	}
	// Correct float rounding for large n.
	for limit*limit > n {
		limit--
	}
	for limit < maxInt64Sqrt && (limit+1)*(limit+1) <= n {
		limit++
	}
	for i := int64(3); i <= limit; i += 2 {
		if n%i == 0 {
			return false
		}
	}
	return true
}
