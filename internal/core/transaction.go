package core

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/coregx/entities/internal/dialects"
	"github.com/coregx/entities/internal/tracer"
	"github.com/coregx/entities/internal/util"
)

// Tx is a transaction on a dedicated connection. It implements Executor;
// every statement it runs joins the transaction. A Tx ends exactly once,
// by Commit or Rollback, and releases its connection when it does.
type Tx struct {
	db     *DB
	conn   *sql.Conn
	tx     *sql.Tx
	runner runner
	span   tracer.Span

	mu        sync.Mutex
	done      bool
	committed bool
}

// TxOptions represents transaction options including isolation level.
type TxOptions struct {
	// Isolation level for the transaction (e.g., sql.LevelReadCommitted)
	Isolation sql.IsolationLevel
	// ReadOnly indicates whether the transaction is read-only
	ReadOnly bool
}

// Begin starts a transaction with default options.
func (db *DB) Begin(ctx context.Context) (*Tx, error) {
	return db.BeginTx(ctx, nil)
}

// BeginTx acquires a connection and starts a transaction on it.
// Options can specify isolation level and read-only mode.
func (db *DB) BeginTx(ctx context.Context, opts *TxOptions) (*Tx, error) {
	if util.IsCanceled(ctx) {
		return nil, ctx.Err()
	}

	var sqlOpts *sql.TxOptions
	if opts != nil {
		sqlOpts = &sql.TxOptions{
			Isolation: opts.Isolation,
			ReadOnly:  opts.ReadOnly,
		}
	}

	conn, err := db.sqlDB.Conn(ctx)
	if err != nil {
		return nil, WrapError(err, "acquire connection")
	}

	tx, err := conn.BeginTx(ctx, sqlOpts)
	if err != nil {
		_ = conn.Close()
		return nil, WrapError(err, "begin transaction")
	}

	_, span := db.tracer.StartSpan(ctx, tracer.SpanTransaction)
	span.SetAttributes(attribute.String("db.system", db.dialect.Name()))

	return &Tx{
		db:     db,
		conn:   conn,
		tx:     tx,
		runner: runner{db: db, q: tx},
		span:   span,
	}, nil
}

// Commit commits the transaction.
func (tx *Tx) Commit() error {
	return tx.end(true)
}

// Rollback rolls back the transaction.
func (tx *Tx) Rollback() error {
	return tx.end(false)
}

// end finishes the transaction once. Later calls return sql.ErrTxDone.
func (tx *Tx) end(commit bool) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.done {
		return sql.ErrTxDone
	}
	tx.done = true
	tx.committed = commit

	outcome := "rollback"
	var err error
	if commit {
		outcome = "commit"
		err = tx.tx.Commit()
	} else {
		err = tx.tx.Rollback()
	}
	if closeErr := tx.conn.Close(); err == nil {
		err = closeErr
	}

	tx.span.SetAttributes(attribute.String("entities.tx.outcome", outcome))
	tx.span.End(err)
	return err
}

func (tx *Tx) wasCommitted() bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.committed
}

// DB returns the database the transaction was started on.
func (tx *Tx) DB() *DB {
	return tx.db
}

// QueryOne implements Executor within the transaction.
func (tx *Tx) QueryOne(ctx context.Context, query string, params Params, dest interface{}) (bool, error) {
	return tx.runner.queryOne(ctx, query, params, dest)
}

// QueryAll implements Executor within the transaction.
func (tx *Tx) QueryAll(ctx context.Context, query string, params Params, dest interface{}) error {
	return tx.runner.queryAll(ctx, query, params, dest)
}

// ExecuteScalar implements Executor within the transaction.
func (tx *Tx) ExecuteScalar(ctx context.Context, query string, params Params, dest interface{}) error {
	return tx.runner.executeScalar(ctx, query, params, dest)
}

// Execute implements Executor within the transaction.
func (tx *Tx) Execute(ctx context.Context, query string, params Params) (sql.Result, error) {
	return tx.runner.execute(ctx, query, params)
}

// Dialect returns the dialect statements are bound for.
func (tx *Tx) Dialect() dialects.Dialect {
	return tx.db.dialect
}

// Transactional runs fn in a transaction with default options.
// fn's error rolls the transaction back and is returned unchanged; a nil
// error commits. A panic in fn rolls back and is re-raised.
//
// Example:
//
//	err := db.Transactional(ctx, func(tx *entities.Tx) error {
//	    return invoices.WithTx(tx).Save(ctx, &invoice)
//	})
func (db *DB) Transactional(ctx context.Context, fn func(tx *Tx) error) error {
	return db.TransactionalTx(ctx, nil, fn)
}

// TransactionalTx is Transactional with explicit transaction options.
func (db *DB) TransactionalTx(ctx context.Context, opts *TxOptions, fn func(tx *Tx) error) error {
	_, err := RunInTransaction(ctx, db, opts, func(tx *Tx) (struct{}, error) {
		return struct{}{}, fn(tx)
	})
	return err
}

// RunInTransaction runs fn in a transaction and returns its result.
// The result is discarded and the transaction rolled back when fn fails.
// fn may commit tx itself; the transaction then counts as committed. If fn
// rolls tx back and returns nil, RunInTransaction fails with sql.ErrTxDone.
func RunInTransaction[R any](ctx context.Context, db *DB, opts *TxOptions, fn func(tx *Tx) (R, error)) (R, error) {
	var zero R

	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return zero, err
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				db.logger.Error("transaction rollback after panic failed", "error", rbErr)
			}
			panic(p)
		}
	}()

	result, err := fn(tx)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			db.logger.Error("transaction rollback failed", "error", rbErr, "cause", err)
		}
		return zero, err
	}

	if err := tx.Commit(); err != nil {
		if errors.Is(err, sql.ErrTxDone) && tx.wasCommitted() {
			return result, nil
		}
		return zero, WrapError(err, "commit transaction")
	}
	return result, nil
}
