package dialects

import (
	"strings"

	"github.com/coregx/entities/internal/naming"
)

// MySQLDialect implements MySQL-specific SQL dialect. MySQL has no schema
// separate from the connected database, so tables stay unqualified unless a
// record type names one explicitly.
type MySQLDialect struct {
	// Naming transforms case before backtick quoting. Exact behaves like
	// Verbatim since every identifier is quoted anyway.
	Naming naming.Policy
}

func init() {
	Register("mysql", func(p naming.Policy) Dialect { return &MySQLDialect{Naming: p} })
}

// Name returns "mysql".
func (d *MySQLDialect) Name() string { return "mysql" }

// DefaultSchema returns "".
func (d *MySQLDialect) DefaultSchema() string { return "" }

// FormatIdentifier quotes a MySQL identifier using backticks.
func (d *MySQLDialect) FormatIdentifier(s string) string {
	if d.Naming == naming.SnakeCase {
		s = naming.ToSnakeCase(s)
	}
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

// QualifyName joins `schema`.`table`.
func (d *MySQLDialect) QualifyName(schema, table string) string { return qualify(schema, table) }

// AliasColumns returns true.
func (d *MySQLDialect) AliasColumns() bool { return true }

// IDPredicate returns "col = @id".
func (d *MySQLDialect) IDPredicate(column string) string { return column + " = @id" }

// InsertSuffix returns ""; the key comes from LastInsertId.
func (d *MySQLDialect) InsertSuffix(_ string) string { return "" }

// DeleteKeyword returns "DELETE FROM".
func (d *MySQLDialect) DeleteKeyword() string { return "DELETE FROM" }

// Identity returns IdentityLastInsertID.
func (d *MySQLDialect) Identity() Identity { return IdentityLastInsertID }

// Placeholder returns MySQL placeholder format (always "?").
func (d *MySQLDialect) Placeholder(_ int) string {
	return "?"
}
