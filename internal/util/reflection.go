// Package util provides reflection helpers for reading record fields into
// bind parameters and writing generated primary keys back into records.
package util

import (
	"errors"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/coregx/entities/internal/mapping"
)

// StructToParams reads the mapped fields of a struct into a map keyed by
// parameter name. Pointers are passed through; database/sql binds a nil
// pointer as NULL.
//
// Returns error if:
//   - data is not a struct or *struct.
//   - data is nil pointer.
func StructToParams(data interface{}, columns []mapping.ColumnMapping) (map[string]interface{}, error) {
	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, errors.New("StructToParams: nil pointer")
		}
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return nil, errors.New("StructToParams: expected struct, got " + v.Kind().String())
	}

	result := make(map[string]interface{}, len(columns))
	for _, c := range columns {
		if c.Index == nil {
			continue
		}
		fieldValue := v.FieldByIndex(c.Index)
		if !fieldValue.IsValid() || !fieldValue.CanInterface() {
			continue
		}
		result[c.ParameterName] = fieldValue.Interface()
	}

	return result, nil
}

// IsPrimaryKeyZero checks if a primary key holds the zero value of its type,
// meaning the record has not been stored yet. Nil pointers are zero.
func IsPrimaryKeyZero(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}

	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return true
		}
		return IsPrimaryKeyZero(v.Elem())
	}
	return v.IsZero()
}

// AssignIdentity writes a generated key returned by the database into field.
//
// Handles:
//   - int64 and float64 driver values (integral floats only)
//   - []byte and string values, parsed for numeric fields
//   - values assignable or convertible to the field type
//   - pointers: allocate if nil, then set
func AssignIdentity(field reflect.Value, src interface{}) error {
	if !field.IsValid() {
		return errors.New("AssignIdentity: invalid field")
	}
	if !field.CanSet() {
		return errors.New("AssignIdentity: field is not settable")
	}

	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}
		return AssignIdentity(field.Elem(), src)
	}

	switch s := src.(type) {
	case nil:
		return errors.New("AssignIdentity: database returned NULL identity")
	case int64:
		if isInteger(field.Kind()) {
			return SetPrimaryKeyValue(field, s)
		}
	case float64:
		if isInteger(field.Kind()) {
			return setFromFloat(field, s)
		}
	case []byte:
		return assignText(field, string(s))
	case string:
		return assignText(field, s)
	}

	rv := reflect.ValueOf(src)
	if isInteger(field.Kind()) {
		switch {
		case rv.CanInt():
			return SetPrimaryKeyValue(field, rv.Int())
		case rv.CanUint() && rv.Uint() <= math.MaxInt64:
			return SetPrimaryKeyValue(field, int64(rv.Uint()))
		}
	}
	if rv.Type().AssignableTo(field.Type()) {
		field.Set(rv)
		return nil
	}
	if rv.Type().ConvertibleTo(field.Type()) && !isInteger(field.Kind()) {
		field.Set(rv.Convert(field.Type()))
		return nil
	}
	return errors.New("AssignIdentity: cannot assign " + rv.Type().String() + " to " + field.Type().String())
}

func assignText(field reflect.Value, s string) error {
	if field.Kind() == reflect.String {
		field.SetString(s)
		return nil
	}
	if !isInteger(field.Kind()) {
		return errors.New("AssignIdentity: cannot assign text to " + field.Type().String())
	}

	s = strings.TrimSpace(s)
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return SetPrimaryKeyValue(field, id)
	}
	// SQL Server returns SCOPE_IDENTITY() as numeric(38,0).
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return errors.New("AssignIdentity: invalid numeric identity " + strconv.Quote(s))
	}
	return setFromFloat(field, f)
}

func setFromFloat(field reflect.Value, f float64) error {
	if f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return errors.New("AssignIdentity: identity is not an integer")
	}
	return SetPrimaryKeyValue(field, int64(f))
}

func isInteger(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	default:
		return false
	}
}

// SetPrimaryKeyValue sets an integer primary key using reflection.
//
// Handles:
//   - int types: int, int8, int16, int32, int64
//   - uint types: uint, uint8, uint16, uint32, uint64
//   - pointers: allocate if nil, then set
//
// Returns error on:
//   - overflow (e.g., int64(1000000) -> int8)
//   - unsupported type
//   - non-settable field
func SetPrimaryKeyValue(field reflect.Value, id int64) error {
	if !field.IsValid() {
		return errors.New("SetPrimaryKeyValue: invalid field")
	}

	if !field.CanSet() {
		return errors.New("SetPrimaryKeyValue: field is not settable")
	}

	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}
		return SetPrimaryKeyValue(field.Elem(), id)
	}

	switch field.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.OverflowInt(id) {
			return errors.New("SetPrimaryKeyValue: " + field.Kind().String() + " overflow")
		}
		field.SetInt(id)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if id < 0 || field.OverflowUint(uint64(id)) {
			return errors.New("SetPrimaryKeyValue: " + field.Kind().String() + " overflow")
		}
		field.SetUint(uint64(id))
	default:
		return errors.New("SetPrimaryKeyValue: unsupported type " + field.Kind().String())
	}

	return nil
}
