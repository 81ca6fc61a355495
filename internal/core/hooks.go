package core

import (
	"context"
	"time"
)

// QueryEvent contains information about an executed statement.
// This is passed to QueryHook callbacks for logging, metrics, or tracing.
type QueryEvent struct {
	// SQL is the statement as written, with named parameters
	SQL string
	// BoundSQL is the statement sent to the driver, with positional placeholders
	BoundSQL string
	// Args are the positional arguments in placeholder order
	Args []interface{}
	// Duration is how long the statement took to execute
	Duration time.Duration
	// RowsAffected is the number of rows affected (for INSERT/UPDATE/DELETE)
	RowsAffected int64
	// Error is any error that occurred during execution (nil on success)
	Error error
	// Operation is the SQL operation type (SELECT, INSERT, UPDATE, DELETE, UNKNOWN)
	Operation string
	// Action is the repository action that issued the statement, empty for raw calls
	Action Action
}

// QueryHook is a callback function invoked after each statement execution.
//
// Example:
//
//	db, _ := entities.Open("postgres", dsn,
//	    entities.WithQueryHook(func(ctx context.Context, e entities.QueryEvent) {
//	        slog.Info("query", "sql", e.SQL, "duration", e.Duration, "err", e.Error)
//	    }))
type QueryHook func(ctx context.Context, event QueryEvent)

// invokeHook calls the query hook if set.
func (db *DB) invokeHook(ctx context.Context, event QueryEvent) {
	if db.queryHook != nil {
		db.queryHook(ctx, event)
	}
}

// Hooks are the optional per-record-type extension points of a Repository.
// Every hook receives the executor of the running operation, so statements
// issued from a hook join the caller's transaction.
//
// An Allow hook vetoes its operation by returning an error; the repository
// reports the veto as a *RepositoryError matching ErrRejected, carrying the
// hook error's message. Errors from Before and After hooks abort the operation
// and are returned wrapped in a *RepositoryError.
type Hooks[T any] struct {
	// AllowGet runs after a row is loaded by Get, MustGet or GetAlternate.
	AllowGet func(ctx context.Context, ex Executor, record *T) error
	// AfterGet runs after AllowGet accepted the record.
	AfterGet func(ctx context.Context, ex Executor, record *T) error

	AllowSave  func(ctx context.Context, ex Executor, action Action, record *T) error
	BeforeSave func(ctx context.Context, ex Executor, action Action, record *T) error
	// AfterSave sees the record with its identity assigned on insert.
	AfterSave func(ctx context.Context, ex Executor, action Action, record *T) error

	AllowDelete  func(ctx context.Context, ex Executor, record *T) error
	BeforeDelete func(ctx context.Context, ex Executor, record *T) error
	AfterDelete  func(ctx context.Context, ex Executor, record *T) error
}
