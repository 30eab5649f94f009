// Package dispatch decouples observer delivery from worker goroutines with a
// bounded FIFO queue and a single dispatcher goroutine.
package dispatch
