// Package core provides connection management, statement execution with
// named parameters, row hydration, repositories and transactions.
package core

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/coregx/entities/internal/dialects"
)

// Params represents named parameter values for statement binding.
// Named parameters are written in SQL as @name. Lookup is case-insensitive,
// so @id and @Id both bind Params{"Id": 1}.
//
// Example:
//
//	db.QueryOne(ctx, "SELECT * FROM users WHERE id = @id", entities.Params{"id": 1}, &user)
type Params map[string]interface{}

// namedParamRegex matches @name placeholders. Server variables such as
// @@ROWCOUNT also match and are left untouched.
var namedParamRegex = regexp.MustCompile(`@@?\w+`)

// processSQL replaces named placeholders with dialect-specific positional
// placeholders ($1, $2 for PostgreSQL; @p1 for SQL Server; ? for MySQL/SQLite).
//
// The function returns:
//  1. The SQL string with placeholders replaced
//  2. The list of parameter names in order of appearance
//
// Example:
//
//	newSQL, names := processSQL("UPDATE t SET name=@Name WHERE id=@Id", postgres)
//	// "UPDATE t SET name=$1 WHERE id=$2", ["Name", "Id"]
//
// If the same parameter name appears multiple times, it will be in the list
// multiple times.
func processSQL(sql string, dialect dialects.Dialect) (string, []string) {
	var paramNames []string
	count := 0

	result := namedParamRegex.ReplaceAllStringFunc(sql, func(match string) string {
		if strings.HasPrefix(match, "@@") {
			return match
		}
		count++
		paramNames = append(paramNames, match[1:])
		return dialect.Placeholder(count)
	})

	return result, paramNames
}

// lookup finds a parameter by exact name, then case-insensitively.
func (p Params) lookup(name string) (interface{}, bool) {
	if v, ok := p[name]; ok {
		return v, true
	}
	for k, v := range p {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

// bindParams converts named parameters to positional values based on the parameter order.
// Returns an error wrapping ErrMissingParam if any parameter is not bound.
//
// Example:
//
//	paramNames := []string{"id", "Status", "id"}
//	params := Params{"Id": 1, "status": "active"}
//	values, err := bindParams(params, paramNames)
//	// Returns: []interface{}{1, "active", 1}, nil
func bindParams(params Params, paramNames []string) ([]interface{}, error) {
	values := make([]interface{}, len(paramNames))

	for i, name := range paramNames {
		value, ok := params.lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: @%s", ErrMissingParam, name)
		}
		values[i] = value
	}

	return values, nil
}

// bind rewrites sql for the dialect and resolves its arguments.
func bind(sql string, params Params, dialect dialects.Dialect) (string, []interface{}, error) {
	query, names := processSQL(sql, dialect)
	args, err := bindParams(params, names)
	if err != nil {
		return "", nil, err
	}
	return query, args, nil
}
