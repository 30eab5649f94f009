// Package api contains the core building blocks shared by the seqflow
// packages: worker states, progress samples, the observer contract and the
// error taxonomy.
//
// Most users interact with the higher-level seqflow package, which
// re-exports selected types and helpers from this package. The api package
// is intended for custom observers, custom producers, or contributors
// extending the worker itself.
//
// # Worker States
//
// A worker moves through a small state machine:
//
//	Idle -> Running <-> Paused
//	Running | Paused -> Cancelling -> Stopped | Completed | Failed
//
// Terminal states are final. ControlsFor derives which operations a front
// end should offer for each state.
//
// # Observability
//
// The Observer interface is the only channel through which a worker talks
// to the outside world. For one worker, notifications arrive in production
// order, OnStart first and OnTerminal last and exactly once.
//
// Ready-made implementations:
//
//   - NoopObserver, the default
//   - FuncObserver, a closure adapter
//   - LoggingObserver, structured logs through log/slog
//   - BasicMetrics, in-memory counters and run duration quantiles
//   - CompositeObserver, fan-out to several observers
//
// # Errors
//
// ValidationError is returned synchronously for bad parameters and never
// creates a worker. ProducerError is attached to a Failed terminal
// notification when a producer step faults, ObserverError when an observer
// callback panics. A user-requested stop is not an error.
package api
