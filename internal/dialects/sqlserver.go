package dialects

import (
	"fmt"
	"strings"

	"github.com/coregx/entities/internal/naming"
)

// SQLServerDialect implements Microsoft SQL Server-specific SQL dialect.
type SQLServerDialect struct {
	// Naming transforms case before bracket quoting. Exact behaves like
	// Verbatim since every identifier is bracketed anyway.
	Naming naming.Policy
}

func init() {
	f := func(p naming.Policy) Dialect { return &SQLServerDialect{Naming: p} }
	Register("sqlserver", f)
	Register("mssql", f)
}

// Name returns "sqlserver".
func (d *SQLServerDialect) Name() string { return "sqlserver" }

// DefaultSchema returns "dbo".
func (d *SQLServerDialect) DefaultSchema() string { return "dbo" }

// FormatIdentifier quotes an identifier using square brackets.
func (d *SQLServerDialect) FormatIdentifier(s string) string {
	if d.Naming == naming.SnakeCase {
		s = naming.ToSnakeCase(s)
	}
	return "[" + strings.ReplaceAll(s, "]", "]]") + "]"
}

// QualifyName joins [schema].[table].
func (d *SQLServerDialect) QualifyName(schema, table string) string { return qualify(schema, table) }

// AliasColumns returns false; SELECT * is used and rows are matched by
// column name.
func (d *SQLServerDialect) AliasColumns() bool { return false }

// IDPredicate returns "[col]=@Id".
func (d *SQLServerDialect) IDPredicate(column string) string { return column + "=@Id" }

// InsertSuffix selects SCOPE_IDENTITY() after the insert.
func (d *SQLServerDialect) InsertSuffix(_ string) string { return "; SELECT SCOPE_IDENTITY()" }

// DeleteKeyword returns "DELETE".
func (d *SQLServerDialect) DeleteKeyword() string { return "DELETE" }

// Identity returns IdentityScalar.
func (d *SQLServerDialect) Identity() Identity { return IdentityScalar }

// Placeholder returns SQL Server ordinal placeholders (@p1, @p2, etc.).
func (d *SQLServerDialect) Placeholder(index int) string {
	return fmt.Sprintf("@p%d", index)
}
