package seqflow_test

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/petrijr/seqflow"
)

// Example_runner runs both slots to completion and prints their values.
func Example_runner() {
	ctx := context.Background()

	r := seqflow.NewRunner(
		seqflow.WithPrimeDelay(time.Millisecond),
		seqflow.WithFibonacciDelay(time.Millisecond),
	)
	defer r.Stop()

	if err := r.StartPrimes(ctx, "2", "20"); err != nil {
		log.Fatal(err)
	}
	if err := r.Primes.Wait(ctx); err != nil {
		log.Fatal(err)
	}

	values := []string{}
	obs := seqflow.FuncObserver{
		Value: func(_ seqflow.WorkerInfo, v string) { values = append(values, v) },
	}
	fib := seqflow.NewRunner(
		seqflow.WithObserver(obs),
		seqflow.WithFibonacciDelay(time.Millisecond),
	)
	defer fib.Stop()

	if err := fib.StartFibonacci(ctx, "20"); err != nil {
		log.Fatal(err)
	}
	if err := fib.Wait(ctx); err != nil {
		log.Fatal(err)
	}

	fmt.Println(r.Primes.State(), values)
	// Output: COMPLETED [0 1 1 2 3 5 8 13]
}

// Example_validation shows that bad input never creates a worker.
func Example_validation() {
	r := seqflow.NewRunner()
	defer r.Stop()

	err := r.StartPrimes(context.Background(), "abc", "")
	fmt.Println(errors.Is(err, seqflow.ErrInvalidParams))
	fmt.Println(err)
	fmt.Println(r.Primes.State())
	// Output:
	// true
	// invalid min "abc": not an integer
	// IDLE
}
