package core

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/coregx/entities/internal/audit"
	"github.com/coregx/entities/internal/cache"
	"github.com/coregx/entities/internal/dialects"
	"github.com/coregx/entities/internal/logger"
	"github.com/coregx/entities/internal/naming"
	"github.com/coregx/entities/internal/tracer"
)

// DB is a connection pool bound to one dialect. It executes statements with
// named parameters and owns the statement cache shared by its repositories.
type DB struct {
	sqlDB       *sql.DB
	driverName  string
	dialectName string
	dialect     dialects.Dialect
	naming      naming.Policy
	stmtCache   *cache.StmtCache
	logger      logger.Logger
	tracer      tracer.Tracer
	sanitizer   *logger.Sanitizer
	queryHook   QueryHook
	auditor     *audit.Auditor
	health      *healthChecker
	healthEvery time.Duration

	runner runner
}

// Option is a functional option for configuring DB.
type Option func(*DB)

// WithMaxOpenConns sets the maximum number of open connections.
func WithMaxOpenConns(n int) Option {
	return func(db *DB) {
		db.sqlDB.SetMaxOpenConns(n)
	}
}

// WithMaxIdleConns sets the maximum number of idle connections.
func WithMaxIdleConns(n int) Option {
	return func(db *DB) {
		db.sqlDB.SetMaxIdleConns(n)
	}
}

// WithConnMaxLifetime sets the maximum amount of time a connection may be reused.
func WithConnMaxLifetime(d time.Duration) Option {
	return func(db *DB) {
		db.sqlDB.SetConnMaxLifetime(d)
	}
}

// WithNaming sets the identifier naming policy. The default is naming.Verbatim.
func WithNaming(p naming.Policy) Option {
	return func(db *DB) {
		db.naming = p
	}
}

// WithDialect selects the dialect by name instead of by driver name.
// Use it with drivers registered under names the dialect registry does not
// know, such as "pgx/v5".
func WithDialect(name string) Option {
	return func(db *DB) {
		db.dialectName = name
	}
}

// WithStatementCache shares a statement cache between several DBs.
func WithStatementCache(c *cache.StmtCache) Option {
	return func(db *DB) {
		if c != nil {
			db.stmtCache = c
		}
	}
}

// WithLogger sets the logger for statement logging.
func WithLogger(l logger.Logger) Option {
	return func(db *DB) {
		if l != nil {
			db.logger = l
		}
	}
}

// WithTracer sets the tracer for statement and transaction spans.
func WithTracer(t tracer.Tracer) Option {
	return func(db *DB) {
		if t != nil {
			db.tracer = t
		}
	}
}

// WithOtel traces through the global OpenTelemetry tracer provider under
// the given instrumentation name.
func WithOtel(instrumentation string) Option {
	return WithTracer(tracer.NewOtelTracer(otel.Tracer(instrumentation)))
}

// WithSensitiveParams replaces the default list of parameter names masked in logs.
func WithSensitiveParams(names ...string) Option {
	return func(db *DB) {
		db.sanitizer = logger.NewSanitizer(names)
	}
}

// WithQueryHook registers a callback invoked after every statement.
func WithQueryHook(hook QueryHook) Option {
	return func(db *DB) {
		db.queryHook = hook
	}
}

// WithAuditor records repository actions to an audit trail. Rejected
// actions are recorded along with the statements that ran.
func WithAuditor(a *audit.Auditor) Option {
	return func(db *DB) {
		db.auditor = a
	}
}

// WithHealthCheck pings the pool every interval in the background.
// The result is reported by Healthy. Close stops the checker.
func WithHealthCheck(interval time.Duration) Option {
	return func(db *DB) {
		db.healthEvery = interval
	}
}

// NewDB opens a connection pool with default options.
func NewDB(driverName, dsn string) (*DB, error) {
	return Open(driverName, dsn)
}

// Open opens a connection pool and applies opts. The dialect is chosen by
// driver name unless WithDialect overrides it.
func Open(driverName, dsn string, opts ...Option) (*DB, error) {
	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}

	db, err := newDB(sqlDB, driverName, opts)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// WrapDB binds an existing *sql.DB. Closing the returned DB closes sqlDB.
func WrapDB(sqlDB *sql.DB, driverName string, opts ...Option) (*DB, error) {
	return newDB(sqlDB, driverName, opts)
}

func newDB(sqlDB *sql.DB, driverName string, opts []Option) (*DB, error) {
	db := &DB{
		sqlDB:      sqlDB,
		driverName: driverName,
		naming:     naming.Verbatim,
		stmtCache:  cache.NewStmtCache(),
		logger:     &logger.NoopLogger{},
		tracer:     &tracer.NoopTracer{},
		sanitizer:  logger.NewSanitizer(nil),
	}

	for _, opt := range opts {
		opt(db)
	}

	name := db.dialectName
	if name == "" {
		name = driverName
	}
	dialect, ok := dialects.Get(name, db.naming)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDialect, name)
	}
	db.dialect = dialect
	db.runner = runner{db: db, q: sqlDB}

	if db.healthEvery > 0 {
		db.health = newHealthChecker(sqlDB, db.logger, db.healthEvery)
		db.health.start()
	}

	return db, nil
}

// Close stops the health checker and releases all database resources.
func (db *DB) Close() error {
	if db.health != nil {
		db.health.shutdown()
	}
	return db.sqlDB.Close()
}

// Ping verifies a connection to the database is still alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.sqlDB.PingContext(ctx)
}

// Healthy reports the outcome of the last background health check and when
// it ran. Without WithHealthCheck it always reports true and a zero time.
func (db *DB) Healthy() (bool, time.Time) {
	if db.health == nil {
		return true, time.Time{}
	}
	return db.health.last()
}

// Stats returns connection pool statistics.
func (db *DB) Stats() sql.DBStats {
	return db.sqlDB.Stats()
}

// DB returns the underlying *sql.DB.
func (db *DB) DB() *sql.DB {
	return db.sqlDB
}

// DriverName returns the driver name the pool was opened with.
func (db *DB) DriverName() string {
	return db.driverName
}

// Dialect returns the dialect statements are bound for.
func (db *DB) Dialect() dialects.Dialect {
	return db.dialect
}

// Naming returns the identifier naming policy.
func (db *DB) Naming() naming.Policy {
	return db.naming
}

// StatementCache returns the cache of synthesized statement sets.
func (db *DB) StatementCache() *cache.StmtCache {
	return db.stmtCache
}

// Logger returns the configured logger.
func (db *DB) Logger() logger.Logger {
	return db.logger
}

// QueryOne implements Executor on the connection pool.
func (db *DB) QueryOne(ctx context.Context, query string, params Params, dest interface{}) (bool, error) {
	return db.runner.queryOne(ctx, query, params, dest)
}

// QueryAll implements Executor on the connection pool.
func (db *DB) QueryAll(ctx context.Context, query string, params Params, dest interface{}) error {
	return db.runner.queryAll(ctx, query, params, dest)
}

// ExecuteScalar implements Executor on the connection pool.
func (db *DB) ExecuteScalar(ctx context.Context, query string, params Params, dest interface{}) error {
	return db.runner.executeScalar(ctx, query, params, dest)
}

// Execute implements Executor on the connection pool.
func (db *DB) Execute(ctx context.Context, query string, params Params) (sql.Result, error) {
	return db.runner.execute(ctx, query, params)
}
