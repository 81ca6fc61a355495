package schema

import (
	"database/sql/driver"
	"errors"
	"reflect"
	"strings"
	"sync"
	"time"
)

// TagName is the struct tag read by FromType.
const TagName = "db"

// Tag flags.
const (
	tagKey        = "key"
	tagNoInsert   = "noinsert"
	tagNoUpdate   = "noupdate"
	tagSkip       = "-"
	tagPrimaryKey = "pk"
)

// TableNamer overrides the table of a record type. The returned value is
// either "table" or "schema.table".
type TableNamer interface {
	TableName() string
}

// AlternateKeyer declares a composite alternate key by field names.
type AlternateKeyer interface {
	AlternateKey() []string
}

var (
	valuerType = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
	timeType   = reflect.TypeOf(time.Time{})

	descriptors sync.Map // reflect.Type -> *Descriptor
)

// Of returns the descriptor of the record type of v (a struct or pointer to struct).
func Of(v interface{}) (*Descriptor, error) {
	if v == nil {
		return nil, errors.New("schema: nil value")
	}
	return FromType(reflect.TypeOf(v))
}

// FromType reflects a struct type into a Descriptor. Results are memoised
// per type.
//
// Struct tag format:
//   - `db:"-"`                  -> not mapped
//   - `db:"column"`             -> column alias
//   - `db:",key"`               -> alternate key member, column = field name
//   - `db:"column,noinsert"`    -> excluded from INSERT
//   - `db:"column,noupdate"`    -> excluded from the UPDATE set list
//
// Flags may be combined: `db:"user_id,key,noupdate"`.
// Embedded structs without a tag are flattened in place.
func FromType(t reflect.Type) (*Descriptor, error) {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, errors.New("schema: expected struct type, got " + kindOf(t))
	}

	if d, ok := descriptors.Load(t); ok {
		return d.(*Descriptor), nil
	}

	d := &Descriptor{
		Name:   t.Name(),
		Type:   t,
		Fields: collectFields(t, nil),
	}
	d.PrimaryKey = resolvePrimaryKey(d.Fields)

	// Type-level markers live on methods; probe through a pointer so both
	// value and pointer receivers are seen.
	probe := reflect.New(t).Interface()
	if tn, ok := probe.(TableNamer); ok {
		d.Schema, d.Table = splitTableName(tn.TableName())
	}
	if ak, ok := probe.(AlternateKeyer); ok {
		d.AlternateKey = append([]string(nil), ak.AlternateKey()...)
	}

	actual, _ := descriptors.LoadOrStore(t, d)
	return actual.(*Descriptor), nil
}

func kindOf(t reflect.Type) string {
	if t == nil {
		return "nil"
	}
	return t.Kind().String()
}

func collectFields(t reflect.Type, index []int) []Field {
	var fields []Field
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		fieldIndex := append(append([]int{}, index...), i)
		tag, hasTag := sf.Tag.Lookup(TagName)

		// Only value embeds are flattened; a nil embedded pointer has no
		// addressable fields to bind or scan.
		if sf.Anonymous && !hasTag && sf.Type.Kind() == reflect.Struct && !isScalar(sf.Type) {
			fields = append(fields, collectFields(sf.Type, fieldIndex)...)
			continue
		}

		f := Field{
			Name:      sf.Name,
			Type:      sf.Type,
			Index:     fieldIndex,
			Scalar:    isScalar(sf.Type),
			WriteOnly: !sf.IsExported(),
		}
		if hasTag {
			applyTag(&f, tag)
		}
		fields = append(fields, f)
	}
	return fields
}

// applyTag parses a db tag into field markers.
func applyTag(f *Field, tag string) {
	parts := strings.Split(tag, ",")
	column := strings.TrimSpace(parts[0])
	if column == tagSkip && len(parts) == 1 {
		f.NotMapped = true
		return
	}
	f.Column = column

	for _, part := range parts[1:] {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case tagKey, tagPrimaryKey:
			f.Key = true
		case tagNoInsert:
			f.NotInserted = true
		case tagNoUpdate:
			f.NotUpdated = true
		}
	}
}

func splitTableName(name string) (string, string) {
	name = strings.TrimSpace(name)
	if i := strings.LastIndex(name, "."); i >= 0 {
		return strings.TrimSpace(name[:i]), strings.TrimSpace(name[i+1:])
	}
	return "", name
}

// isScalar reports whether values of t can be stored in a single column:
// booleans, numbers, strings, byte slices, time.Time, driver.Valuer
// implementations and pointers to any of those.
func isScalar(t reflect.Type) bool {
	if t.Kind() == reflect.Ptr {
		return isScalar(t.Elem())
	}
	if t == timeType || t.Implements(valuerType) || reflect.PointerTo(t).Implements(valuerType) {
		return true
	}

	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	case reflect.Slice:
		return t.Elem().Kind() == reflect.Uint8
	default:
		return false
	}
}
