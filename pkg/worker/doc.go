// Package worker provides the pausable background worker that drives a
// sequence producer.
//
// A Worker owns a single goroutine. Each iteration advances the producer by
// one step, forwards the emitted value and a progress sample to an observer,
// and then sleeps for the configured throttling delay. Callers control the
// worker from any goroutine through Pause, Resume and Cancel.
//
// # Lifecycle
//
//	Idle -> Running <-> Paused
//	Running|Paused -> Cancelling -> Stopped
//	Running -> Completed | Failed
//
// Pause is acknowledged at the start of the next iteration. A paused worker
// blocks on a condition variable and consumes no CPU until Resume or Cancel
// wakes it. Cancel also interrupts the throttling sleep, so a worker stops
// promptly even with long delays. Cancelling the context passed to Start is
// equivalent to calling Cancel.
//
// Workers are single-use. Restarting a sequence means building a new Worker;
// the supervisor package does that for you.
//
// # Notifications
//
// All observer calls for one worker are made from its goroutine, in order:
// OnStart, then OnValue/OnProgress/OnStateChange as the run proceeds, then
// exactly one OnTerminal. Observer calls are made without holding the
// worker's lock, so an observer may call back into the worker.
//
// # Usage
//
//	p, err := producer.NewPrimes(producer.PrimeBounds{Min: 2, Max: producer.Limit(100)})
//	if err != nil {
//		return err
//	}
//	w := worker.New("primes", p, api.NewLoggingObserver(nil),
//		worker.WithDelay(worker.DefaultPrimeDelay))
//	if err := w.Start(ctx); err != nil {
//		return err
//	}
//	status, err := w.Wait(ctx)
package worker
