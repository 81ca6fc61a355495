// Package schema describes the shape of record types: the ordered fields,
// their per-field mapping markers and the type-level table and alternate key
// metadata. Descriptors are built once per type and never mutated.
package schema

import (
	"reflect"
	"strings"
)

// Primary key field names, in order of preference.
const (
	PrimaryKeyName    = "Id"
	PrimaryKeyNameAlt = "ID"
)

// Field describes one field of a record type.
type Field struct {
	// Name is the field name. It is always the bind parameter name.
	Name string
	// Column overrides the physical column name. Empty means Name.
	Column string

	// Scalar is true for primitive, string, time and nullable scalar types.
	// Complex fields are never mapped.
	Scalar bool
	// WriteOnly fields cannot be read and are never mapped.
	WriteOnly bool

	NotMapped   bool
	NotInserted bool
	NotUpdated  bool
	Key         bool

	// Type and Index are set only for descriptors reflected from a Go type.
	Type  reflect.Type
	Index []int
}

// ColumnName returns the explicit column alias or the field name.
func (f Field) ColumnName() string {
	if f.Column != "" {
		return f.Column
	}
	return f.Name
}

// Descriptor is the static description of one record type.
type Descriptor struct {
	// Name is the type name, the default table name.
	Name string
	// Schema and Table are explicit overrides; empty means dialect default
	// schema and Name respectively.
	Schema string
	Table  string
	// AlternateKey lists field or column names that jointly form an
	// alternate key, in addition to any per-field Key markers.
	AlternateKey []string
	// PrimaryKey is the name of the primary key field, empty when the type
	// has none.
	PrimaryKey string

	Fields []Field

	// Type is the reflected Go type, nil for explicitly built descriptors.
	Type reflect.Type
}

// TableName resolves the (schema, table) pair, substituting defaultSchema and
// the type name for missing parts.
func (d *Descriptor) TableName(defaultSchema string) (string, string) {
	schema, table := defaultSchema, d.Name
	if strings.TrimSpace(d.Schema) != "" {
		schema = d.Schema
	}
	if strings.TrimSpace(d.Table) != "" {
		table = d.Table
	}
	return schema, table
}

// Field returns the field with the given name.
func (d *Descriptor) Field(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func resolvePrimaryKey(fields []Field) string {
	alt := ""
	for _, f := range fields {
		switch f.Name {
		case PrimaryKeyName:
			return f.Name
		case PrimaryKeyNameAlt:
			alt = f.Name
		}
	}
	return alt
}

// FieldOption sets a marker on a field declared through a Builder.
type FieldOption func(*Field)

// Column aliases the physical column name.
func Column(name string) FieldOption { return func(f *Field) { f.Column = name } }

// Key marks the field as part of the alternate key.
func Key() FieldOption { return func(f *Field) { f.Key = true } }

// NotMapped excludes the field from every statement.
func NotMapped() FieldOption { return func(f *Field) { f.NotMapped = true } }

// NotInserted excludes the field from INSERT.
func NotInserted() FieldOption { return func(f *Field) { f.NotInserted = true } }

// NotUpdated excludes the field from the UPDATE set list.
func NotUpdated() FieldOption { return func(f *Field) { f.NotUpdated = true } }

// Complex declares a non-scalar storage type.
func Complex() FieldOption { return func(f *Field) { f.Scalar = false } }

// WriteOnly declares an unreadable field.
func WriteOnly() FieldOption { return func(f *Field) { f.WriteOnly = true } }

// Builder assembles a Descriptor without reflection.
//
// Example:
//
//	desc := schema.NewBuilder("SampleEntity").
//	    Table("whatever", "Sample").
//	    Field("Id").
//	    Field("Name", schema.Key()).
//	    Field("Description").
//	    Build()
type Builder struct {
	desc Descriptor
}

// NewBuilder starts a descriptor for the named record type.
func NewBuilder(typeName string) *Builder {
	return &Builder{desc: Descriptor{Name: typeName}}
}

// Table sets the schema and table override. Empty parts keep their defaults.
func (b *Builder) Table(schema, table string) *Builder {
	b.desc.Schema = schema
	b.desc.Table = table
	return b
}

// AlternateKey declares the names that jointly form the alternate key.
func (b *Builder) AlternateKey(names ...string) *Builder {
	b.desc.AlternateKey = append(b.desc.AlternateKey, names...)
	return b
}

// Field appends a scalar, readable field.
func (b *Builder) Field(name string, opts ...FieldOption) *Builder {
	f := Field{Name: name, Scalar: true}
	for _, opt := range opts {
		opt(&f)
	}
	b.desc.Fields = append(b.desc.Fields, f)
	return b
}

// Build returns the finished descriptor. The builder may keep being used;
// later changes do not affect descriptors already built.
func (b *Builder) Build() *Descriptor {
	d := b.desc
	d.Fields = append([]Field(nil), b.desc.Fields...)
	d.AlternateKey = append([]string(nil), b.desc.AlternateKey...)
	d.PrimaryKey = resolvePrimaryKey(d.Fields)
	return &d
}
