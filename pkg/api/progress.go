package api

import "fmt"

// ProgressSample reports how far a worker has advanced.
//
// When Known is false the total is unknown (unbounded sequences) and the
// sample is indeterminate; this is distinct from both 0% and 100%.
type ProgressSample struct {
	Current int64
	Total   int64
	Known   bool
}

// Indeterminate returns a sample with an unknown total.
func Indeterminate(current int64) ProgressSample {
	return ProgressSample{Current: current}
}

// Bounded returns a sample measuring current against total.
// Both values are relative to the same lower reference point.
func Bounded(current, total int64) ProgressSample {
	return ProgressSample{Current: current, Total: total, Known: true}
}

// Fraction returns the completed share clamped to [0, 1] and whether the
// sample is determinate. A zero total with a known bound means the range
// has a single point and is reported as complete.
func (p ProgressSample) Fraction() (float64, bool) {
	if !p.Known {
		return 0, false
	}
	if p.Total <= 0 {
		return 1, true
	}
	f := float64(p.Current) / float64(p.Total)
	switch {
	case f < 0:
		return 0, true
	case f > 1:
		return 1, true
	}
	return f, true
}

func (p ProgressSample) String() string {
	f, ok := p.Fraction()
	if !ok {
		return "indeterminate"
	}
	return fmt.Sprintf("%.1f%%", f*100)
}
