package core

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/coregx/entities/internal/mapping"
	"github.com/coregx/entities/internal/naming"
	"github.com/coregx/entities/internal/schema"
)

// structInfo maps lowercased result column names to field index paths.
type structInfo struct {
	fields map[string][]int
}

var structInfos sync.Map // reflect.Type -> *structInfo

// structInfoOf returns the memoised structInfo of typ.
func structInfoOf(typ reflect.Type) (*structInfo, error) {
	if v, ok := structInfos.Load(typ); ok {
		return v.(*structInfo), nil
	}
	info, err := buildStructInfo(typ)
	if err != nil {
		return nil, err
	}
	v, _ := structInfos.LoadOrStore(typ, info)
	return v.(*structInfo), nil
}

// buildStructInfo indexes the readable columns of typ under every name a
// result set may use for them: the parameter name (aliased selects), the
// column name (SELECT *) and its snake_case form. Parameter names win on
// collision.
func buildStructInfo(typ reflect.Type) (*structInfo, error) {
	desc, err := schema.FromType(typ)
	if err != nil {
		return nil, fmt.Errorf("scanner: %w", err)
	}

	columns := mapping.Extract(desc, mapping.AllStatements)
	info := &structInfo{fields: make(map[string][]int, len(columns)*3)}

	for _, c := range columns {
		info.fields[strings.ToLower(c.ParameterName)] = c.Index
	}
	for _, c := range columns {
		for _, name := range []string{c.ColumnName, naming.ToSnakeCase(c.ColumnName)} {
			name = strings.ToLower(name)
			if _, taken := info.fields[name]; !taken {
				info.fields[name] = c.Index
			}
		}
	}
	return info, nil
}

// plan resolves result columns to field paths once per result set.
// Unknown columns get a nil path and are discarded.
func (info *structInfo) plan(columns []string) [][]int {
	paths := make([][]int, len(columns))
	for i, name := range columns {
		paths[i] = info.fields[strings.ToLower(name)]
	}
	return paths
}

// destinations returns scan targets within elem for a planned result set.
func destinations(elem reflect.Value, paths [][]int) []interface{} {
	dests := make([]interface{}, len(paths))
	for i, path := range paths {
		if path == nil {
			dests[i] = new(interface{})
			continue
		}
		dests[i] = elem.FieldByIndex(path).Addr().Interface()
	}
	return dests
}

// rowPlan prepares hydration of rows into values of the struct type typ.
func rowPlan(rows *sql.Rows, typ reflect.Type) ([][]int, error) {
	info, err := structInfoOf(typ)
	if err != nil {
		return nil, err
	}
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("scanner: columns: %w", err)
	}
	return info.plan(columns), nil
}

// scanRow hydrates the current row into dest, a pointer to struct.
func scanRow(rows *sql.Rows, dest interface{}) error {
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("scanner: dest must be a non-nil pointer to struct, got %T", dest)
	}

	paths, err := rowPlan(rows, v.Elem().Type())
	if err != nil {
		return err
	}
	if err := rows.Scan(destinations(v.Elem(), paths)...); err != nil {
		return fmt.Errorf("scanner: %w", err)
	}
	return nil
}

// scanRows appends every remaining row to dest, a pointer to a slice of
// structs or struct pointers.
func scanRows(rows *sql.Rows, dest interface{}) error {
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("scanner: dest must be a non-nil pointer to slice, got %T", dest)
	}

	slice := v.Elem()
	elemType := slice.Type().Elem()
	byPointer := elemType.Kind() == reflect.Ptr
	if byPointer {
		elemType = elemType.Elem()
	}
	if elemType.Kind() != reflect.Struct {
		return fmt.Errorf("scanner: slice element must be struct or *struct, got %s", elemType)
	}

	paths, err := rowPlan(rows, elemType)
	if err != nil {
		return err
	}

	for rows.Next() {
		elem := reflect.New(elemType)
		if err := rows.Scan(destinations(elem.Elem(), paths)...); err != nil {
			return fmt.Errorf("scanner: %w", err)
		}
		if byPointer {
			slice.Set(reflect.Append(slice, elem))
		} else {
			slice.Set(reflect.Append(slice, elem.Elem()))
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("scanner: %w", err)
	}
	return nil
}
