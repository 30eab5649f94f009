// Package persistence stores the history of worker runs.
//
// A RunStore keeps one summary row per worker lifecycle and an EventStore
// keeps the append-only list of lifecycle events. Recorder is the Observer
// that feeds both. Backends: in-memory, SQLite, PostgreSQL, Redis and
// MongoDB.
package persistence
