// Package mapping extracts the column mappings of a record type: which fields
// participate in which statement, under which column name, and which of them
// are keys.
package mapping

import (
	"strings"

	"github.com/coregx/entities/internal/schema"
)

// StatementKind narrows extraction to the fields of one statement.
type StatementKind int

const (
	// AllStatements returns every eligible field with participation flags.
	AllStatements StatementKind = iota
	// InsertStatement drops fields marked not-inserted.
	InsertStatement
	// UpdateStatement drops fields marked not-updated.
	UpdateStatement
)

// ColumnMapping is the per-field mapping decision.
type ColumnMapping struct {
	// ColumnName is the physical column, the field name unless aliased.
	// Dialect formatting is applied later, during synthesis.
	ColumnName string
	// ParameterName is always the field name.
	ParameterName string
	ForInsert     bool
	ForUpdate     bool
	IsKey         bool
	// IsPrimary marks the primary key column.
	IsPrimary bool

	// Index is the reflected field index path, nil for explicit descriptors.
	Index []int
}

// Eligible reports whether f can be mapped at all.
func Eligible(f schema.Field) bool {
	return !f.WriteOnly && !f.NotMapped && f.Scalar
}

// Extract builds the ordered column mappings of d. With AllStatements the
// full eligible set is returned; InsertStatement and UpdateStatement further
// skip fields marked not-inserted or not-updated.
func Extract(d *schema.Descriptor, kind StatementKind) []ColumnMapping {
	columns := make([]ColumnMapping, 0, len(d.Fields))

	for _, f := range d.Fields {
		if !Eligible(f) {
			continue
		}
		if kind == InsertStatement && f.NotInserted {
			continue
		}
		if kind == UpdateStatement && f.NotUpdated {
			continue
		}

		if f.Name == d.PrimaryKey {
			columns = append(columns, ColumnMapping{
				ColumnName:    f.ColumnName(),
				ParameterName: f.Name,
				IsKey:         true,
				IsPrimary:     true,
				Index:         f.Index,
			})
			continue
		}

		columns = append(columns, ColumnMapping{
			ColumnName:    f.ColumnName(),
			ParameterName: f.Name,
			ForInsert:     !f.NotInserted,
			ForUpdate:     !f.NotUpdated,
			IsKey:         f.Key,
			Index:         f.Index,
		})
	}

	markAlternateKey(columns, d.AlternateKey)
	return columns
}

// markAlternateKey flags the named columns as keys. Names match column or
// parameter names case-insensitively.
func markAlternateKey(columns []ColumnMapping, names []string) {
	for _, name := range names {
		for i := range columns {
			if strings.EqualFold(columns[i].ColumnName, name) || strings.EqualFold(columns[i].ParameterName, name) {
				columns[i].IsKey = true
			}
		}
	}
}

// HasAlternateKey reports whether any column is both a key and updatable.
func HasAlternateKey(columns []ColumnMapping) bool {
	for _, c := range columns {
		if c.IsKey && c.ForUpdate {
			return true
		}
	}
	return false
}

// Primary returns the primary key mapping.
func Primary(columns []ColumnMapping) (ColumnMapping, bool) {
	for _, c := range columns {
		if c.IsPrimary {
			return c, true
		}
	}
	return ColumnMapping{}, false
}

// Filter returns the columns matching keep, preserving order.
func Filter(columns []ColumnMapping, keep func(ColumnMapping) bool) []ColumnMapping {
	var out []ColumnMapping
	for _, c := range columns {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

// Insertable selects INSERT columns.
func Insertable(c ColumnMapping) bool { return c.ForInsert }

// Updatable selects UPDATE set-list columns.
func Updatable(c ColumnMapping) bool { return c.ForUpdate }

// ImmutableKey selects the WHERE columns of UPDATE and DELETE: keys that
// are not themselves updatable.
func ImmutableKey(c ColumnMapping) bool { return c.IsKey && !c.ForUpdate }

// AlternateKey selects the WHERE columns of the alternate key lookup.
func AlternateKey(c ColumnMapping) bool { return c.IsKey && c.ForUpdate }

// Narrow keeps the columns whose parameter name is in names, compared
// case-insensitively. The result follows column order, not names order.
func Narrow(columns []ColumnMapping, names []string) []ColumnMapping {
	return Filter(columns, func(c ColumnMapping) bool {
		for _, n := range names {
			if strings.EqualFold(c.ParameterName, n) {
				return true
			}
		}
		return false
	})
}
