package producer

import (
	"errors"
	"strconv"
	"strings"

	"github.com/petrijr/seqflow/pkg/api"
)

// ParsePrimeBounds parses textual prime parameters as typed by a user.
// Empty text selects the default: Min 2, unbounded Max.
func ParsePrimeBounds(minText, maxText string) (PrimeBounds, error) {
	b := PrimeBounds{Min: DefaultPrimeMin}

	if s := strings.TrimSpace(minText); s != "" {
		n, err := parseInt("min", s)
		if err != nil {
			return PrimeBounds{}, err
		}
		b.Min = n
	}
	if s := strings.TrimSpace(maxText); s != "" {
		n, err := parseInt("max", s)
		if err != nil {
			return PrimeBounds{}, err
		}
		b.Max = Limit(n)
	}

	if err := b.Validate(); err != nil {
		return PrimeBounds{}, err
	}
	return b, nil
}

// ParseFibonacciBounds parses the textual Fibonacci limit.
// Empty text means unbounded.
func ParseFibonacciBounds(maxText string) (FibonacciBounds, error) {
	var b FibonacciBounds

	if s := strings.TrimSpace(maxText); s != "" {
		n, err := parseInt("maxValue", s)
		if err != nil {
			return FibonacciBounds{}, err
		}
		b.MaxValue = Limit(n)
	}

	if err := b.Validate(); err != nil {
		return FibonacciBounds{}, err
	}
	return b, nil
}

func parseInt(field, s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		reason := "not an integer"
		if errors.Is(err, strconv.ErrRange) {
			reason = "out of range"
		}
		return 0, api.NewValidationError(field, s, reason)
	}
	return n, nil
}
