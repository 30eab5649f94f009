package supervisor

import (
	"time"

	"github.com/petrijr/seqflow/pkg/api"
	"github.com/petrijr/seqflow/pkg/producer"
	"github.com/petrijr/seqflow/pkg/worker"
)

// Task names used by the built-in builders.
const (
	TaskPrimes    = "primes"
	TaskFibonacci = "fibonacci"
)

// PrimeBuilder builds prime workers throttled by delay.
func PrimeBuilder(delay time.Duration, opts ...worker.Option) Builder[producer.PrimeBounds] {
	return func(task string, bounds producer.PrimeBounds, obs api.Observer) (Worker, error) {
		p, err := producer.NewPrimes(bounds)
		if err != nil {
			return nil, err
		}
		return worker.New(task, p, obs, workerOptions(delay, bounds.String(), opts)...), nil
	}
}

// FibonacciBuilder builds Fibonacci workers throttled by delay.
func FibonacciBuilder(delay time.Duration, opts ...worker.Option) Builder[producer.FibonacciBounds] {
	return func(task string, bounds producer.FibonacciBounds, obs api.Observer) (Worker, error) {
		p, err := producer.NewFibonacci(bounds)
		if err != nil {
			return nil, err
		}
		return worker.New(task, p, obs, workerOptions(delay, bounds.String(), opts)...), nil
	}
}

// NewPrimes returns a supervisor for the primes task.
func NewPrimes(delay time.Duration, obs api.Observer, opts ...Option) *Supervisor[producer.PrimeBounds] {
	return New(TaskPrimes, PrimeBuilder(delay), obs, opts...)
}

// NewFibonacci returns a supervisor for the fibonacci task.
func NewFibonacci(delay time.Duration, obs api.Observer, opts ...Option) *Supervisor[producer.FibonacciBounds] {
	return New(TaskFibonacci, FibonacciBuilder(delay), obs, opts...)
}

func workerOptions(delay time.Duration, params string, extra []worker.Option) []worker.Option {
	opts := make([]worker.Option, 0, len(extra)+2)
	opts = append(opts, worker.WithDelay(delay), worker.WithParams(params))
	return append(opts, extra...)
}
