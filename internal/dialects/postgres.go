package dialects

import (
	"fmt"

	"github.com/coregx/entities/internal/naming"
)

// PostgresDialect implements PostgreSQL-specific SQL dialect.
type PostgresDialect struct {
	// Naming formats identifiers; SnakeCase suits unquoted PostgreSQL names.
	Naming naming.Policy
}

func init() {
	f := func(p naming.Policy) Dialect { return &PostgresDialect{Naming: p} }
	Register("postgres", f)
	Register("postgresql", f)
	Register("pgx", f)
}

// Name returns "postgres".
func (d *PostgresDialect) Name() string { return "postgres" }

// DefaultSchema returns "public".
func (d *PostgresDialect) DefaultSchema() string { return "public" }

// FormatIdentifier applies the naming policy.
func (d *PostgresDialect) FormatIdentifier(s string) string { return d.Naming.Format(s) }

// QualifyName joins schema.table.
func (d *PostgresDialect) QualifyName(schema, table string) string { return qualify(schema, table) }

// AliasColumns returns true; PostgreSQL column names rarely match field names.
func (d *PostgresDialect) AliasColumns() bool { return true }

// IDPredicate returns "col = @id".
func (d *PostgresDialect) IDPredicate(column string) string { return column + " = @id" }

// InsertSuffix returns a RETURNING clause.
func (d *PostgresDialect) InsertSuffix(idColumn string) string { return " RETURNING " + idColumn + ";" }

// DeleteKeyword returns "DELETE FROM".
func (d *PostgresDialect) DeleteKeyword() string { return "DELETE FROM" }

// Identity returns IdentityScalar.
func (d *PostgresDialect) Identity() Identity { return IdentityScalar }

// Placeholder returns PostgreSQL placeholder format ($1, $2, etc.).
func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index)
}
