// Package producer defines the pure step functions that pausable workers
// drive, plus the two built-in sequences: primes and Fibonacci numbers.
//
// A Producer never blocks, sleeps or touches shared state; a worker may
// stop calling Step between any two calls and resume later with the same
// state without changing the output. That makes producers testable with
// plain loops:
//
//	p, _ := producer.NewPrimes(producer.PrimeBounds{Min: 2, Max: producer.Limit(10)})
//	st := p.Init()
//	for {
//	    step, _ := p.Step(st)
//	    st = step.State
//	    if step.Emitted {
//	        fmt.Println(step.Value)
//	    }
//	    if step.Done {
//	        break
//	    }
//	}
package producer
