package core

import (
	"context"
	"fmt"
	"reflect"

	"github.com/coregx/entities/internal/audit"
	"github.com/coregx/entities/internal/cache"
	"github.com/coregx/entities/internal/dialects"
	"github.com/coregx/entities/internal/logger"
	"github.com/coregx/entities/internal/mapping"
	"github.com/coregx/entities/internal/schema"
	"github.com/coregx/entities/internal/sqlgen"
	"github.com/coregx/entities/internal/util"
)

// Repository performs CRUD on records of type T keyed by a primary key of
// type K. It holds no per-call state: the executor, the cached statement set,
// hooks and statement overrides. A Repository is safe for concurrent use.
type Repository[T any, K comparable] struct {
	db     *DB
	ex     Executor
	stmts  *sqlgen.Statements
	pk     mapping.ColumnMapping
	hooks  Hooks[T]
	custom map[Action]string
	entity string
	log    logger.Logger
}

type repositoryConfig[T any] struct {
	hooks  Hooks[T]
	custom map[Action]string
}

// RepositoryOption configures a Repository.
type RepositoryOption[T any] func(*repositoryConfig[T])

// WithHooks installs the record type's hooks. Nil hooks are no-ops.
func WithHooks[T any](hooks Hooks[T]) RepositoryOption[T] {
	return func(c *repositoryConfig[T]) {
		c.hooks = hooks
	}
}

// WithStatement replaces the synthesized statement of action with sql.
// The statement uses the same @Name parameters as the synthesized one.
//
// Example:
//
//	repo, err := entities.NewRepository[Invoice, int64](db,
//	    entities.WithStatement[Invoice](entities.ActionDelete,
//	        "UPDATE invoice SET deleted = true WHERE id = @Id"))
func WithStatement[T any](action Action, sql string) RepositoryOption[T] {
	return func(c *repositoryConfig[T]) {
		c.custom[action] = sql
	}
}

// NewRepository builds, or fetches from db's statement cache, the statement
// set of T and returns a repository on the connection pool. It fails with a
// *sqlgen.MappingError when T cannot be mapped, and with ErrKeyType when K
// is not the type of T's primary key field.
func NewRepository[T any, K comparable](db *DB, opts ...RepositoryOption[T]) (*Repository[T, K], error) {
	cfg := repositoryConfig[T]{custom: make(map[Action]string)}
	for _, opt := range opts {
		opt(&cfg)
	}

	typ := reflect.TypeOf((*T)(nil)).Elem()
	stmts, err := StatementsFor(db, typ)
	if err != nil {
		return nil, err
	}

	pk := stmts.Primary()
	keyType := reflect.TypeOf((*K)(nil)).Elem()
	if field := fieldType(typ, pk.Index); field != keyType {
		return nil, fmt.Errorf("%w: %s.%s is %v, repository key is %v",
			ErrKeyType, stmts.Descriptor.Name, pk.ParameterName, field, keyType)
	}

	entity := stmts.Descriptor.Name
	return &Repository[T, K]{
		db:     db,
		ex:     db,
		stmts:  stmts,
		pk:     pk,
		hooks:  cfg.hooks,
		custom: cfg.custom,
		entity: entity,
		log:    logger.With(db.logger, "entity", entity),
	}, nil
}

// StatementsFor returns the statement set of the record type typ for db's
// dialect and naming policy, synthesizing it on first use.
func StatementsFor(db *DB, typ reflect.Type) (*sqlgen.Statements, error) {
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	key := cache.Key{Type: typ, Dialect: db.dialect.Name() + "/" + db.naming.String()}
	return db.stmtCache.GetOrBuild(key, func() (*sqlgen.Statements, error) {
		desc, err := schema.FromType(typ)
		if err != nil {
			return nil, err
		}
		return sqlgen.Build(desc, db.dialect)
	})
}

func fieldType(typ reflect.Type, index []int) reflect.Type {
	if len(index) == 0 {
		return nil
	}
	return typ.FieldByIndex(index).Type
}

// WithTx returns a repository whose operations run inside tx.
func (r *Repository[T, K]) WithTx(tx *Tx) *Repository[T, K] {
	c := *r
	c.ex = tx
	return &c
}

// Executor returns the executor operations run on.
func (r *Repository[T, K]) Executor() Executor {
	return r.ex
}

// Statements returns the statement set in use.
func (r *Repository[T, K]) Statements() *sqlgen.Statements {
	return r.stmts
}

// statement returns the override for action or the synthesized statement.
func (r *Repository[T, K]) statement(action Action) string {
	if sql, ok := r.custom[action]; ok {
		return sql
	}
	switch action {
	case ActionGet:
		return r.stmts.GetByID
	case ActionGetAlternate:
		return r.stmts.GetByAlternateKey
	case ActionInsert:
		return r.stmts.Insert
	case ActionUpdate:
		return r.stmts.Update
	case ActionDelete:
		return r.stmts.Delete
	default:
		return ""
	}
}

func (r *Repository[T, K]) scoped(ctx context.Context, action Action) context.Context {
	return withScope(ctx, scope{entity: r.entity, table: r.stmts.TableName, action: action})
}

func (r *Repository[T, K]) failed(action Action, sql string, params Params, err error) error {
	r.log.Error("repository action failed", "action", string(action), "sql", sql, "error", err)
	return &RepositoryError{
		Entity: r.entity,
		Action: action,
		SQL:    sql,
		Params: params,
		Err:    err,
	}
}

func (r *Repository[T, K]) rejected(ctx context.Context, action Action, err error) error {
	r.log.Warn("repository action rejected", "action", string(action), "reason", err.Error())
	if r.db.auditor != nil {
		r.db.auditor.Record(ctx, audit.Event{
			Entity:   r.entity,
			Action:   string(action),
			Table:    r.stmts.TableName,
			Rejected: true,
			Error:    err.Error(),
		})
	}
	return &RepositoryError{
		Entity:   r.entity,
		Action:   action,
		Message:  err.Error(),
		Err:      err,
		Rejected: true,
	}
}

func (r *Repository[T, K]) hookFailed(action Action, hook string, err error) error {
	return &RepositoryError{
		Entity:  r.entity,
		Action:  action,
		Message: hook + ": " + err.Error(),
		Err:     err,
	}
}

func (r *Repository[T, K]) logAction(action Action, sql string, params Params) {
	r.log.Debug("repository action",
		"action", string(action),
		"sql", sql,
		"params", r.db.sanitizer.FormatParams(r.db.sanitizer.MaskParams(params)),
	)
}

func (r *Repository[T, K]) primaryKey(record *T) reflect.Value {
	return reflect.ValueOf(record).Elem().FieldByIndex(r.pk.Index)
}

// IsNew reports whether record's primary key is the zero value of its type.
func (r *Repository[T, K]) IsNew(record *T) bool {
	return util.IsPrimaryKeyZero(r.primaryKey(record))
}

func (r *Repository[T, K]) params(record *T) (Params, error) {
	p, err := util.StructToParams(record, r.stmts.Columns)
	if err != nil {
		return nil, err
	}
	return Params(p), nil
}

// Get loads the record with primary key key. It returns nil and no error
// when no row matches. AllowGet may reject the loaded record; AfterGet runs
// once it is accepted.
func (r *Repository[T, K]) Get(ctx context.Context, key K) (*T, error) {
	ctx = r.scoped(ctx, ActionGet)
	sql := r.statement(ActionGet)
	params := Params{"id": key}
	r.logAction(ActionGet, sql, params)

	record := new(T)
	found, err := r.ex.QueryOne(ctx, sql, params, record)
	if err != nil {
		return nil, r.failed(ActionGet, sql, params, err)
	}
	if !found {
		return nil, nil
	}
	if err := r.loaded(ctx, ActionGet, record); err != nil {
		return nil, err
	}
	return record, nil
}

// MustGet is Get for rows that must exist. A missing row is a *NotFoundError.
func (r *Repository[T, K]) MustGet(ctx context.Context, key K) (*T, error) {
	record, err := r.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, &NotFoundError{Entity: r.entity, Key: key}
	}
	return record, nil
}

func (r *Repository[T, K]) loaded(ctx context.Context, action Action, record *T) error {
	if r.hooks.AllowGet != nil {
		if err := r.hooks.AllowGet(ctx, r.ex, record); err != nil {
			return r.rejected(ctx, action, err)
		}
	}
	if r.hooks.AfterGet != nil {
		if err := r.hooks.AfterGet(ctx, r.ex, record); err != nil {
			return r.hookFailed(action, "after get", err)
		}
	}
	return nil
}

// GetAlternate loads the stored record whose alternate key columns equal
// those of record. It returns nil and no error when no row matches, and a
// *RepositoryError wrapping ErrNoAlternateKey when T has no alternate key.
func (r *Repository[T, K]) GetAlternate(ctx context.Context, record *T) (*T, error) {
	sql := r.statement(ActionGetAlternate)
	if sql == "" {
		return nil, &RepositoryError{Entity: r.entity, Action: ActionGetAlternate, Err: ErrNoAlternateKey}
	}

	ctx = r.scoped(ctx, ActionGetAlternate)
	params, err := r.params(record)
	if err != nil {
		return nil, r.failed(ActionGetAlternate, sql, nil, err)
	}
	r.logAction(ActionGetAlternate, sql, params)

	existing := new(T)
	found, err := r.ex.QueryOne(ctx, sql, params, existing)
	if err != nil {
		return nil, r.failed(ActionGetAlternate, sql, params, err)
	}
	if !found {
		return nil, nil
	}
	if err := r.loaded(ctx, ActionGetAlternate, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// Save inserts record when its primary key is zero and updates it
// otherwise. After an insert the generated identity is stored in the
// record's primary key field.
func (r *Repository[T, K]) Save(ctx context.Context, record *T) error {
	if r.IsNew(record) {
		return r.save(ctx, ActionInsert, record)
	}
	return r.save(ctx, ActionUpdate, record)
}

// Insert inserts record regardless of its primary key value and writes the
// generated identity back.
func (r *Repository[T, K]) Insert(ctx context.Context, record *T) error {
	return r.save(ctx, ActionInsert, record)
}

// Update updates the stored row of record.
func (r *Repository[T, K]) Update(ctx context.Context, record *T) error {
	return r.save(ctx, ActionUpdate, record)
}

// UpdateColumns updates only the updatable columns named by field name,
// matched case-insensitively. Save hooks run as for Update.
func (r *Repository[T, K]) UpdateColumns(ctx context.Context, record *T, names ...string) error {
	sql, err := r.stmts.UpdateColumns(names...)
	if err != nil {
		return r.failed(ActionUpdate, "", nil, err)
	}
	return r.saveWith(ctx, ActionUpdate, sql, record)
}

func (r *Repository[T, K]) save(ctx context.Context, action Action, record *T) error {
	return r.saveWith(ctx, action, r.statement(action), record)
}

func (r *Repository[T, K]) saveWith(ctx context.Context, action Action, sql string, record *T) error {
	ctx = r.scoped(ctx, action)

	if r.hooks.AllowSave != nil {
		if err := r.hooks.AllowSave(ctx, r.ex, action, record); err != nil {
			return r.rejected(ctx, action, err)
		}
	}
	if r.hooks.BeforeSave != nil {
		if err := r.hooks.BeforeSave(ctx, r.ex, action, record); err != nil {
			return r.hookFailed(action, "before save", err)
		}
	}

	params, err := r.params(record)
	if err != nil {
		return r.failed(action, sql, nil, err)
	}
	r.logAction(action, sql, params)

	if action == ActionInsert {
		err = r.insert(ctx, sql, params, record)
	} else {
		_, err = r.ex.Execute(ctx, sql, params)
	}
	if err != nil {
		return r.failed(action, sql, params, err)
	}

	if r.hooks.AfterSave != nil {
		if err := r.hooks.AfterSave(ctx, r.ex, action, record); err != nil {
			return r.hookFailed(action, "after save", err)
		}
	}
	return nil
}

// insert runs the INSERT and stores the identity the dialect reports.
func (r *Repository[T, K]) insert(ctx context.Context, sql string, params Params, record *T) error {
	key := r.primaryKey(record)

	if r.ex.Dialect().Identity() == dialects.IdentityLastInsertID {
		result, err := r.ex.Execute(ctx, sql, params)
		if err != nil {
			return err
		}
		id, err := result.LastInsertId()
		if err != nil {
			return err
		}
		return util.AssignIdentity(key, id)
	}

	return r.ex.ExecuteScalar(ctx, sql, params, key.Addr().Interface())
}

// Merge saves record, reusing the primary key of a stored row with the same
// alternate key. When record is new and such a row exists, onExisting (if
// not nil) is called with both records before record adopts the stored key.
// Records that already carry a key are saved directly.
func (r *Repository[T, K]) Merge(ctx context.Context, record *T, onExisting func(incoming, existing *T)) error {
	if r.IsNew(record) {
		existing, err := r.GetAlternate(ctx, record)
		if err != nil {
			return err
		}
		if existing != nil {
			if onExisting != nil {
				onExisting(record, existing)
			}
			r.primaryKey(record).Set(r.primaryKey(existing))
		}
	}
	return r.Save(ctx, record)
}

// Delete deletes the stored row of record. AllowDelete may veto it.
func (r *Repository[T, K]) Delete(ctx context.Context, record *T) error {
	ctx = r.scoped(ctx, ActionDelete)
	sql := r.statement(ActionDelete)

	if r.hooks.AllowDelete != nil {
		if err := r.hooks.AllowDelete(ctx, r.ex, record); err != nil {
			return r.rejected(ctx, ActionDelete, err)
		}
	}
	if r.hooks.BeforeDelete != nil {
		if err := r.hooks.BeforeDelete(ctx, r.ex, record); err != nil {
			return r.hookFailed(ActionDelete, "before delete", err)
		}
	}

	params, err := r.params(record)
	if err != nil {
		return r.failed(ActionDelete, sql, nil, err)
	}
	r.logAction(ActionDelete, sql, params)

	if _, err := r.ex.Execute(ctx, sql, params); err != nil {
		return r.failed(ActionDelete, sql, params, err)
	}

	if r.hooks.AfterDelete != nil {
		if err := r.hooks.AfterDelete(ctx, r.ex, record); err != nil {
			return r.hookFailed(ActionDelete, "after delete", err)
		}
	}
	return nil
}

// DeleteByID deletes by primary key alone. Hooks see a record whose only
// non-zero field is the key. When the synthesized DELETE also filters on
// other immutable keys, the key alone cannot address the row and DeleteByID
// fails with a *sqlgen.MappingError; use Delete with a loaded record.
func (r *Repository[T, K]) DeleteByID(ctx context.Context, key K) error {
	if _, custom := r.custom[ActionDelete]; !custom {
		if where := mapping.Filter(r.stmts.Columns, mapping.ImmutableKey); len(where) > 1 {
			return r.failed(ActionDelete, r.stmts.Delete, nil, &sqlgen.MappingError{
				Type:      r.entity,
				Statement: sqlgen.StmtDelete,
				Reason:    fmt.Sprintf("delete by id needs %d key columns, only the primary key is known", len(where)),
			})
		}
	}
	record := new(T)
	r.primaryKey(record).Set(reflect.ValueOf(key))
	return r.Delete(ctx, record)
}

// UpdatePartial loads the record with primary key key, applies mutate and
// saves it. When no row exists, create supplies the record instead; without
// create a missing row is a *NotFoundError.
func (r *Repository[T, K]) UpdatePartial(ctx context.Context, key K, mutate func(record *T), create func() *T) error {
	record, err := r.Get(ctx, key)
	if err != nil {
		return err
	}
	if record == nil && create != nil {
		record = create()
	}
	if record == nil {
		return &NotFoundError{Entity: r.entity, Key: key}
	}

	mutate(record)
	return r.Save(ctx, record)
}
