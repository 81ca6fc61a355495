package core

import (
	"errors"
	"fmt"
)

// Predefined errors returned by database and repository operations.
var (
	// ErrNotFound matches every *NotFoundError.
	ErrNotFound = errors.New("record not found")
	// ErrRejected matches repository errors caused by an Allow* hook veto.
	ErrRejected = errors.New("operation rejected")
	// ErrNoAlternateKey is returned by alternate-key lookups and merges on a
	// record type without an updatable key column.
	ErrNoAlternateKey = errors.New("record type has no alternate key")
	// ErrMissingParam is returned when a statement names a parameter that is
	// not bound.
	ErrMissingParam = errors.New("missing parameter")
	// ErrMultipleRows is returned when a single-row query yields more rows.
	ErrMultipleRows = errors.New("query returned more than one row")
	// ErrUnsupportedDialect is returned when no dialect is registered for a driver.
	ErrUnsupportedDialect = errors.New("unsupported database dialect")
	// ErrKeyType is returned when a repository key type differs from the
	// record's primary key field type.
	ErrKeyType = errors.New("key type does not match primary key field")
)

// Action names a repository operation.
type Action string

// Repository actions.
const (
	ActionGet          Action = "get"
	ActionGetAlternate Action = "getAlternate"
	ActionInsert       Action = "insert"
	ActionUpdate       Action = "update"
	ActionDelete       Action = "delete"
)

// RepositoryError wraps a failed or vetoed repository operation.
//
// Execution failures carry the statement text, the bound parameters and the
// driver error as Err. Hook vetoes carry the hook's message and no SQL.
type RepositoryError struct {
	Entity   string
	Action   Action
	Message  string
	SQL      string
	Params   Params
	Err      error
	Rejected bool
}

func (e *RepositoryError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s %s: %s", e.Entity, e.Action, msg)
}

// Unwrap returns the underlying cause.
func (e *RepositoryError) Unwrap() error {
	return e.Err
}

// Is reports ErrRejected for hook vetoes.
func (e *RepositoryError) Is(target error) bool {
	return target == ErrRejected && e.Rejected
}

// NotFoundError is returned by accessors that require a row to exist.
type NotFoundError struct {
	Entity string
	Key    interface{}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s row id %v not found", e.Entity, e.Key)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// WrapError wraps an error with additional context message.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{
		msg: message,
		err: err,
	}
}

type wrappedError struct {
	msg string
	err error
}

func (e *wrappedError) Error() string {
	return e.msg + ": " + e.err.Error()
}

func (e *wrappedError) Unwrap() error {
	return e.err
}
