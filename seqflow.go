package seqflow

import (
	"context"
	"database/sql"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/petrijr/seqflow/internal/persistence"
	"github.com/petrijr/seqflow/pkg/api"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	Observer             = api.Observer
	WorkerInfo           = api.WorkerInfo
	WorkerState          = api.WorkerState
	Status               = api.Status
	Controls             = api.Controls
	ProgressSample       = api.ProgressSample
	ValidationError      = api.ValidationError
	ProducerError        = api.ProducerError
	ObserverError        = api.ObserverError
	Run                  = api.Run
	WorkerEvent          = api.WorkerEvent
	RunListOptions       = api.RunListOptions
	FuncObserver         = api.FuncObserver
	LoggingObserver      = api.LoggingObserver
	BasicMetrics         = api.BasicMetrics
	BasicMetricsSnapshot = api.BasicMetricsSnapshot
	CompositeObserver    = api.CompositeObserver
	NoopObserver         = api.NoopObserver

	// HistoryStore persists worker runs and their events.
	HistoryStore = persistence.Store
)

// Re-export common observer helpers.

var (
	NewLoggingObserver   = api.NewLoggingObserver
	NewCompositeObserver = api.NewCompositeObserver
	ControlsFor          = api.ControlsFor
	IsValidationError    = api.IsValidationError
)

// ErrInvalidParams matches every *ValidationError via errors.Is.
var ErrInvalidParams = api.ErrInvalidParams

// ErrRunNotFound is returned by history lookups for unknown worker IDs.
var ErrRunNotFound = persistence.ErrRunNotFound

// Re-export state and status values for convenience.

const (
	StateIdle       = api.StateIdle
	StateRunning    = api.StateRunning
	StatePaused     = api.StatePaused
	StateCancelling = api.StateCancelling
	StateCompleted  = api.StateCompleted
	StateStopped    = api.StateStopped
	StateFailed     = api.StateFailed

	StatusCompleted = api.StatusCompleted
	StatusStopped   = api.StatusStopped
	StatusFailed    = api.StatusFailed
)

// History store constructors.
// These wrap the internal/persistence package so external callers
// never need to import internal packages.

// NewInMemoryHistory returns a non-durable HistoryStore.
func NewInMemoryHistory() HistoryStore {
	return persistence.NewInMemoryStore()
}

// NewSQLiteHistory returns a HistoryStore in a SQLite database, creating
// its tables if needed.
func NewSQLiteHistory(ctx context.Context, db *sql.DB) (HistoryStore, error) {
	store, err := persistence.NewSQLiteStore(ctx, db)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewPostgresHistory returns a HistoryStore in PostgreSQL, creating its
// tables if needed.
func NewPostgresHistory(ctx context.Context, db *sql.DB) (HistoryStore, error) {
	store, err := persistence.NewPostgresStore(ctx, db)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewRedisHistory returns a HistoryStore in Redis. Keys are namespaced by
// prefix; an empty prefix uses "seqflow:".
func NewRedisHistory(client *redis.Client, prefix string) HistoryStore {
	return persistence.NewRedisStore(client, prefix)
}

// NewMongoHistory returns a HistoryStore in the given MongoDB database.
// An empty dbName uses "seqflow".
func NewMongoHistory(client *mongo.Client, dbName string) HistoryStore {
	return persistence.NewMongoStore(client, dbName)
}
