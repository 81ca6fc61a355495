// Package entities synthesizes the canonical CRUD statements of a record type
// from its struct layout and runs them through a generic repository with
// hooks and transactions. PostgreSQL, SQL Server, MySQL and SQLite are
// supported; statements are built once per type and dialect and cached.
//
// Example:
//
//	type Invoice struct {
//	    Id     int64
//	    Number string `db:",key"`
//	    Total  float64
//	}
//
//	db, err := entities.Open("postgres", dsn, entities.WithNaming(entities.SnakeCase))
//	invoices, err := entities.NewRepository[Invoice, int64](db)
//	err = invoices.Save(ctx, &Invoice{Number: "A-1", Total: 10.5})
package entities

import (
	"context"

	"github.com/coregx/entities/internal/audit"
	"github.com/coregx/entities/internal/cache"
	"github.com/coregx/entities/internal/core"
	"github.com/coregx/entities/internal/dialects"
	"github.com/coregx/entities/internal/logger"
	"github.com/coregx/entities/internal/mapping"
	"github.com/coregx/entities/internal/naming"
	"github.com/coregx/entities/internal/schema"
	"github.com/coregx/entities/internal/sqlgen"
	"github.com/coregx/entities/internal/tracer"
)

type (
	// DB is a connection pool bound to one dialect.
	DB = core.DB
	// Option is a functional option for configuring DB.
	Option = core.Option
	// Config is the declarative, YAML-loadable form of a DB.
	Config = core.Config
	// Tx represents a database transaction.
	Tx = core.Tx
	// TxOptions represents transaction options including isolation level.
	TxOptions = core.TxOptions
	// Executor runs statements with named parameters on a pool or in a transaction.
	Executor = core.Executor
	// Params holds named statement parameters.
	Params = core.Params
	// QueryEvent describes one executed statement.
	QueryEvent = core.QueryEvent
	// QueryHook is invoked after every statement.
	QueryHook = core.QueryHook
	// Action names a repository operation.
	Action = core.Action

	// RepositoryError wraps a failed or vetoed repository operation.
	RepositoryError = core.RepositoryError
	// NotFoundError is returned by accessors that require a row to exist.
	NotFoundError = core.NotFoundError
	// MappingError reports a record type that cannot be mapped to a statement.
	MappingError = sqlgen.MappingError

	// NamingPolicy is the identifier naming policy of a dialect.
	NamingPolicy = naming.Policy
	// Dialect is the parameter set of one database engine.
	Dialect = dialects.Dialect
	// Descriptor is the static description of a record type.
	Descriptor = schema.Descriptor
	// DescriptorBuilder assembles a Descriptor without reflection.
	DescriptorBuilder = schema.Builder
	// ColumnMapping is the per-field mapping decision.
	ColumnMapping = mapping.ColumnMapping
	// Statements is the synthesized statement set of a record type.
	Statements = sqlgen.Statements
	// StatementCache caches statement sets per record type and dialect.
	StatementCache = cache.StmtCache

	// Logger is the logging interface used for statement and repository logs.
	Logger = logger.Logger
	// Tracer starts spans around statements and transactions.
	Tracer = tracer.Tracer
	// Auditor writes the audit trail of repository actions.
	Auditor = audit.Auditor
	// AuditLevel selects which actions are audited.
	AuditLevel = audit.Level
)

// Repository performs CRUD on records of type T keyed by K.
type Repository[T any, K comparable] = core.Repository[T, K]

// Hooks are the optional per-record-type extension points of a Repository.
type Hooks[T any] = core.Hooks[T]

// RepositoryOption configures a Repository.
type RepositoryOption[T any] = core.RepositoryOption[T]

// Naming policies.
const (
	Verbatim  = naming.Verbatim
	SnakeCase = naming.SnakeCase
	Exact     = naming.Exact
)

// Audit levels.
const (
	AuditNone   = audit.None
	AuditWrites = audit.Writes
	AuditAll    = audit.All
)

// Repository actions.
const (
	ActionGet          = core.ActionGet
	ActionGetAlternate = core.ActionGetAlternate
	ActionInsert       = core.ActionInsert
	ActionUpdate       = core.ActionUpdate
	ActionDelete       = core.ActionDelete
)

// Errors.
var (
	ErrNotFound           = core.ErrNotFound
	ErrRejected           = core.ErrRejected
	ErrNoAlternateKey     = core.ErrNoAlternateKey
	ErrMissingParam       = core.ErrMissingParam
	ErrMultipleRows       = core.ErrMultipleRows
	ErrUnsupportedDialect = core.ErrUnsupportedDialect
	ErrKeyType            = core.ErrKeyType
	ErrMapping            = sqlgen.ErrMapping
)

// Re-export core functions.
var (
	Open        = core.Open
	NewDB       = core.NewDB
	WrapDB      = core.WrapDB
	OpenConfig  = core.OpenConfig
	ParseConfig = core.ParseConfig
	LoadConfig  = core.LoadConfig

	WithMaxOpenConns    = core.WithMaxOpenConns
	WithMaxIdleConns    = core.WithMaxIdleConns
	WithConnMaxLifetime = core.WithConnMaxLifetime
	WithNaming          = core.WithNaming
	WithDialect         = core.WithDialect
	WithStatementCache  = core.WithStatementCache
	WithLogger          = core.WithLogger
	WithTracer          = core.WithTracer
	WithOtel            = core.WithOtel
	WithSensitiveParams = core.WithSensitiveParams
	WithQueryHook       = core.WithQueryHook
	WithHealthCheck     = core.WithHealthCheck
	WithAuditor         = core.WithAuditor

	NewStatementCache = cache.NewStmtCache
	NewSlogAdapter    = logger.NewSlogAdapter
	NewOtelTracer     = tracer.NewOtelTracer
	ParseNaming       = naming.ParsePolicy
	NewAuditor        = audit.New

	WithUser      = audit.WithUser
	WithClientIP  = audit.WithClientIP
	WithRequestID = audit.WithRequestID

	NewDescriptor = schema.NewBuilder
	DescriptorOf  = schema.Of

	FieldColumn      = schema.Column
	FieldKey         = schema.Key
	FieldNotMapped   = schema.NotMapped
	FieldNotInserted = schema.NotInserted
	FieldNotUpdated  = schema.NotUpdated
)

// NewRepository returns a repository for T on db. See core.NewRepository.
func NewRepository[T any, K comparable](db *DB, opts ...RepositoryOption[T]) (*Repository[T, K], error) {
	return core.NewRepository[T, K](db, opts...)
}

// WithHooks installs the record type's hooks.
func WithHooks[T any](hooks Hooks[T]) RepositoryOption[T] {
	return core.WithHooks(hooks)
}

// WithStatement replaces the synthesized statement of action.
func WithStatement[T any](action Action, sql string) RepositoryOption[T] {
	return core.WithStatement[T](action, sql)
}

// RunInTransaction runs fn in a transaction on db and returns its result.
// fn's error rolls back; a panic rolls back and is re-raised.
func RunInTransaction[R any](ctx context.Context, db *DB, opts *TxOptions, fn func(tx *Tx) (R, error)) (R, error) {
	return core.RunInTransaction(ctx, db, opts, fn)
}

// Columns extracts the column mappings of d.
func Columns(d *Descriptor) []ColumnMapping {
	return mapping.Extract(d, mapping.AllStatements)
}

// BuildStatements synthesizes the statement set of d for the named dialect
// and naming policy, without a database connection.
func BuildStatements(d *Descriptor, dialect string, policy NamingPolicy) (*Statements, error) {
	dd, ok := dialects.Get(dialect, policy)
	if !ok {
		return nil, ErrUnsupportedDialect
	}
	return sqlgen.Build(d, dd)
}
