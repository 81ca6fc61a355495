package dialects

import "github.com/coregx/entities/internal/naming"

// SQLiteDialect implements SQLite-specific SQL dialect. SQLite 3.35+ is
// required for RETURNING.
type SQLiteDialect struct {
	Naming naming.Policy
}

func init() {
	f := func(p naming.Policy) Dialect { return &SQLiteDialect{Naming: p} }
	Register("sqlite", f)
	Register("sqlite3", f)
}

// Name returns "sqlite".
func (d *SQLiteDialect) Name() string { return "sqlite" }

// DefaultSchema returns "main", the primary database of a connection.
func (d *SQLiteDialect) DefaultSchema() string { return "main" }

// FormatIdentifier applies the naming policy.
func (d *SQLiteDialect) FormatIdentifier(s string) string { return d.Naming.Format(s) }

// QualifyName joins schema.table.
func (d *SQLiteDialect) QualifyName(schema, table string) string { return qualify(schema, table) }

// AliasColumns returns true.
func (d *SQLiteDialect) AliasColumns() bool { return true }

// IDPredicate returns "col = @id".
func (d *SQLiteDialect) IDPredicate(column string) string { return column + " = @id" }

// InsertSuffix returns a RETURNING clause.
func (d *SQLiteDialect) InsertSuffix(idColumn string) string { return " RETURNING " + idColumn + ";" }

// DeleteKeyword returns "DELETE FROM".
func (d *SQLiteDialect) DeleteKeyword() string { return "DELETE FROM" }

// Identity returns IdentityScalar.
func (d *SQLiteDialect) Identity() Identity { return IdentityScalar }

// Placeholder returns SQLite placeholder format (always "?").
func (d *SQLiteDialect) Placeholder(_ int) string {
	return "?"
}
