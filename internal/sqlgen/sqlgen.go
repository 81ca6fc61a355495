// Package sqlgen synthesizes the canonical single-table CRUD statements of a
// record type from its column mappings and a dialect.
//
// Statements use named parameters of the form @Name, where Name is the field
// name. Binding them to driver placeholders happens at execution time.
package sqlgen

import (
	"strings"

	"github.com/coregx/entities/internal/dialects"
	"github.com/coregx/entities/internal/mapping"
	"github.com/coregx/entities/internal/schema"
)

// Statement names used in errors and logs.
const (
	StmtGetByID           = "getById"
	StmtGetByAlternateKey = "getByAlternateKey"
	StmtInsert            = "insert"
	StmtUpdate            = "update"
	StmtDelete            = "delete"
)

// Statements is the synthesized statement set of one record type.
// It is immutable once built.
type Statements struct {
	GetByID           string
	GetByAlternateKey string // empty unless HasAlternateKey
	HasAlternateKey   bool
	Insert            string
	Update            string
	Delete            string
	TableName         string // qualified, formatted table name
	Columns           []mapping.ColumnMapping

	Descriptor *schema.Descriptor
	Dialect    dialects.Dialect

	where string
}

// Build synthesizes every statement of d for dialect. Any statement that
// cannot be built fails the whole set with a *MappingError.
func Build(d *schema.Descriptor, dialect dialects.Dialect) (*Statements, error) {
	g := generator{desc: d, dialect: dialect}
	columns := mapping.Extract(d, mapping.AllStatements)

	pk, ok := mapping.Primary(columns)
	if !ok {
		return nil, g.fail(StmtGetByID, "no primary key field named "+schema.PrimaryKeyName)
	}

	s := &Statements{
		TableName:  g.tableName(),
		Columns:    columns,
		Descriptor: d,
		Dialect:    dialect,
	}

	selectList := g.selectList(columns)
	s.GetByID = "SELECT " + selectList + " FROM " + s.TableName +
		" WHERE " + dialect.IDPredicate(g.column(pk))

	if keys := mapping.Filter(columns, mapping.AlternateKey); len(keys) > 0 {
		s.HasAlternateKey = true
		s.GetByAlternateKey = "SELECT " + selectList + " FROM " + s.TableName +
			" WHERE " + g.assignments(keys, " AND ")
	}

	insert := mapping.Filter(columns, mapping.Insertable)
	if len(insert) == 0 {
		return nil, g.fail(StmtInsert, "no insert columns")
	}
	s.Insert = g.insert(s.TableName, insert, pk)

	where := mapping.Filter(columns, mapping.ImmutableKey)
	if len(where) == 0 {
		return nil, g.fail(StmtUpdate, "no key columns")
	}
	s.where = g.assignments(where, " AND ")

	update, err := s.buildUpdate(mapping.Filter(columns, mapping.Updatable))
	if err != nil {
		return nil, err
	}
	s.Update = update

	s.Delete = dialect.DeleteKeyword() + " " + s.TableName + " WHERE " + s.where
	return s, nil
}

// UpdateColumns returns an UPDATE whose set list holds only the updatable
// columns named by parameter name (case-insensitive). The WHERE clause is
// the same as Update's.
func (s *Statements) UpdateColumns(names ...string) (string, error) {
	return s.buildUpdate(mapping.Narrow(mapping.Filter(s.Columns, mapping.Updatable), names))
}

// Primary returns the primary key mapping.
func (s *Statements) Primary() mapping.ColumnMapping {
	pk, _ := mapping.Primary(s.Columns)
	return pk
}

func (s *Statements) buildUpdate(set []mapping.ColumnMapping) (string, error) {
	g := generator{desc: s.Descriptor, dialect: s.Dialect}
	if len(set) == 0 {
		return "", g.fail(StmtUpdate, "no update columns")
	}
	return "UPDATE " + s.TableName + " SET " + g.assignments(set, ", ") + " WHERE " + s.where, nil
}

type generator struct {
	desc    *schema.Descriptor
	dialect dialects.Dialect
}

func (g generator) fail(stmt, reason string) error {
	return &MappingError{Type: g.desc.Name, Statement: stmt, Reason: reason}
}

func (g generator) tableName() string {
	schemaName, table := g.desc.TableName(g.dialect.DefaultSchema())
	if schemaName != "" {
		schemaName = g.dialect.FormatIdentifier(schemaName)
	}
	return g.dialect.QualifyName(schemaName, g.dialect.FormatIdentifier(table))
}

func (g generator) column(c mapping.ColumnMapping) string {
	return g.dialect.FormatIdentifier(c.ColumnName)
}

func (g generator) selectList(columns []mapping.ColumnMapping) string {
	if !g.dialect.AliasColumns() {
		return "*"
	}
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = g.column(c) + " AS " + c.ParameterName
	}
	return strings.Join(parts, ", ")
}

// assignments renders col=@Param pairs joined by sep.
func (g generator) assignments(columns []mapping.ColumnMapping, sep string) string {
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = g.column(c) + "=@" + c.ParameterName
	}
	return strings.Join(parts, sep)
}

func (g generator) insert(table string, columns []mapping.ColumnMapping, pk mapping.ColumnMapping) string {
	names := make([]string, len(columns))
	values := make([]string, len(columns))
	for i, c := range columns {
		names[i] = g.column(c)
		values[i] = "@" + c.ParameterName
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(table)
	sb.WriteString(" (")
	sb.WriteString(strings.Join(names, ", "))
	sb.WriteString(") VALUES (")
	sb.WriteString(strings.Join(values, ", "))
	sb.WriteString(")")
	sb.WriteString(g.dialect.InsertSuffix(g.column(pk)))
	return sb.String()
}
