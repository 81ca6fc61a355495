package core

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"time"

	"github.com/coregx/entities/internal/audit"
	"github.com/coregx/entities/internal/dialects"
	"github.com/coregx/entities/internal/tracer"
	"github.com/coregx/entities/internal/util"
)

// Executor runs statements with named parameters. *DB runs them on the pool,
// *Tx inside its transaction.
type Executor interface {
	// QueryOne hydrates the single result row into dest, a pointer to struct.
	// It reports false when the query returned no rows and fails with
	// ErrMultipleRows when it returned more than one.
	QueryOne(ctx context.Context, query string, params Params, dest interface{}) (bool, error)
	// QueryAll hydrates every result row into dest, a pointer to a slice.
	QueryAll(ctx context.Context, query string, params Params, dest interface{}) error
	// ExecuteScalar stores the first column of the first row in dest, a
	// pointer to a numeric, string or assignable field.
	ExecuteScalar(ctx context.Context, query string, params Params, dest interface{}) error
	// Execute runs a statement that returns no rows.
	Execute(ctx context.Context, query string, params Params) (sql.Result, error)
	// Dialect returns the dialect statements are bound for.
	Dialect() dialects.Dialect
}

// queryer is the subset of *sql.DB, *sql.Conn and *sql.Tx statements run on.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type scopeKey struct{}

// scope identifies the repository action issuing statements.
type scope struct {
	entity string
	table  string
	action Action
}

func withScope(ctx context.Context, s scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

func scopeFrom(ctx context.Context) scope {
	s, _ := ctx.Value(scopeKey{}).(scope)
	return s
}

// runner binds, executes and observes statements on one queryer.
type runner struct {
	db *DB
	q  queryer
}

// execution carries the state observed after a statement ran.
type execution struct {
	sql          string
	bound        string
	params       Params
	args         []interface{}
	start        time.Time
	rowsAffected int64
}

func (r *runner) begin(ctx context.Context, query string, params Params) (context.Context, tracer.Span, *execution, error) {
	ctx, span := r.db.tracer.StartSpan(ctx, tracer.SpanQuery)
	e := &execution{sql: query, params: params, start: time.Now()}

	bound, args, err := bind(query, params, r.db.dialect)
	if err != nil {
		return ctx, span, e, err
	}
	e.bound, e.args = bound, args
	return ctx, span, e, nil
}

// finish logs, traces, audits and reports the execution to the query hook.
func (r *runner) finish(ctx context.Context, span tracer.Span, e *execution, err error) {
	elapsed := time.Since(e.start)
	sc := scopeFrom(ctx)
	action := sc.action
	operation := tracer.DetectOperation(e.sql)

	span.SetAttributes(tracer.QueryAttributes(tracer.QueryMetadata{
		SQL:          e.sql,
		ParamCount:   len(e.args),
		Duration:     elapsed,
		RowsAffected: e.rowsAffected,
		Database:     r.db.dialect.Name(),
		Operation:    operation,
		Table:        sc.table,
		Action:       string(action),
	})...)
	span.End(err)

	params := r.db.sanitizer.FormatParams(r.db.sanitizer.MaskParams(e.params))
	if err != nil {
		r.db.logger.Error("query execution failed",
			"sql", e.sql,
			"params", params,
			"action", string(action),
			"duration_ms", elapsed.Milliseconds(),
			"database", r.db.driverName,
			"error", err,
		)
	} else {
		r.db.logger.Info("query executed",
			"sql", e.sql,
			"params", params,
			"action", string(action),
			"duration_ms", elapsed.Milliseconds(),
			"rows_affected", e.rowsAffected,
			"database", r.db.driverName,
		)
	}

	if r.db.auditor != nil {
		event := audit.Event{
			Entity:       sc.entity,
			Action:       string(action),
			Operation:    operation,
			Table:        sc.table,
			SQL:          e.sql,
			ParamsHash:   audit.HashParams(e.params),
			AffectedRows: e.rowsAffected,
			Success:      err == nil,
			Duration:     elapsed.Milliseconds(),
		}
		if err != nil {
			event.Error = err.Error()
		}
		r.db.auditor.Record(ctx, event)
	}

	r.db.invokeHook(ctx, QueryEvent{
		SQL:          e.sql,
		BoundSQL:     e.bound,
		Args:         e.args,
		Duration:     elapsed,
		RowsAffected: e.rowsAffected,
		Error:        err,
		Operation:    operation,
		Action:       action,
	})
}

func (r *runner) queryOne(ctx context.Context, query string, params Params, dest interface{}) (found bool, err error) {
	ctx, span, e, err := r.begin(ctx, query, params)
	defer func() { r.finish(ctx, span, e, err) }()
	if err != nil {
		return false, err
	}

	rows, err := r.q.QueryContext(ctx, e.bound, e.args...)
	if err != nil {
		return false, err
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		return false, rows.Err()
	}
	if err = scanRow(rows, dest); err != nil {
		return false, err
	}
	e.rowsAffected = 1
	if rows.Next() {
		return false, ErrMultipleRows
	}
	return true, rows.Err()
}

func (r *runner) queryAll(ctx context.Context, query string, params Params, dest interface{}) (err error) {
	ctx, span, e, err := r.begin(ctx, query, params)
	defer func() { r.finish(ctx, span, e, err) }()
	if err != nil {
		return err
	}

	rows, err := r.q.QueryContext(ctx, e.bound, e.args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	if err = scanRows(rows, dest); err != nil {
		return err
	}
	if v := reflect.ValueOf(dest).Elem(); v.Kind() == reflect.Slice {
		e.rowsAffected = int64(v.Len())
	}
	return nil
}

func (r *runner) executeScalar(ctx context.Context, query string, params Params, dest interface{}) (err error) {
	target := reflect.ValueOf(dest)
	if target.Kind() != reflect.Ptr || target.IsNil() {
		return fmt.Errorf("ExecuteScalar: dest must be a non-nil pointer, got %T", dest)
	}

	ctx, span, e, err := r.begin(ctx, query, params)
	defer func() { r.finish(ctx, span, e, err) }()
	if err != nil {
		return err
	}

	rows, err := r.q.QueryContext(ctx, e.bound, e.args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	raw, err := firstValue(rows)
	if err != nil {
		return err
	}
	e.rowsAffected = 1
	return util.AssignIdentity(target.Elem(), raw)
}

// firstValue reads the first column of the first row.
func firstValue(rows *sql.Rows) (interface{}, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, sql.ErrNoRows
	}

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, sql.ErrNoRows
	}
	var raw interface{}
	dests := make([]interface{}, len(columns))
	dests[0] = &raw
	for i := 1; i < len(dests); i++ {
		var dummy interface{}
		dests[i] = &dummy
	}
	if err := rows.Scan(dests...); err != nil {
		return nil, err
	}
	return raw, nil
}

func (r *runner) execute(ctx context.Context, query string, params Params) (result sql.Result, err error) {
	ctx, span, e, err := r.begin(ctx, query, params)
	defer func() { r.finish(ctx, span, e, err) }()
	if err != nil {
		return nil, err
	}

	result, err = r.q.ExecContext(ctx, e.bound, e.args...)
	if err != nil {
		return nil, err
	}
	e.rowsAffected, _ = result.RowsAffected()
	return result, nil
}
