// Package naming provides identifier formatting policies applied to table,
// schema and column names during statement synthesis.
package naming

import (
	"fmt"
	"strings"
	"unicode"
)

// Policy selects how a raw identifier is rendered in SQL text.
type Policy int

const (
	// Verbatim leaves identifiers untouched.
	Verbatim Policy = iota
	// SnakeCase lowercases identifiers and inserts an underscore before
	// every internal uppercase letter (UserId -> user_id).
	SnakeCase
	// Exact wraps identifiers in double quotes without changing case.
	Exact
)

// String returns the configuration name of the policy.
func (p Policy) String() string {
	switch p {
	case SnakeCase:
		return "snake_case"
	case Exact:
		return "exact"
	default:
		return "verbatim"
	}
}

// Format renders identifier according to the policy.
func (p Policy) Format(identifier string) string {
	switch p {
	case SnakeCase:
		return ToSnakeCase(identifier)
	case Exact:
		return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
	default:
		return identifier
	}
}

// PolicyNames lists every configuration string ParsePolicy accepts besides "".
var PolicyNames = []string{"none", "verbatim", "snake", "snake_case", "snakecase", "exact", "quoted"}

// ParsePolicy converts a configuration string into a Policy.
// Accepted values, case-insensitive, are listed in PolicyNames.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "verbatim":
		return Verbatim, nil
	case "snake", "snake_case", "snakecase":
		return SnakeCase, nil
	case "exact", "quoted":
		return Exact, nil
	}
	return Verbatim, fmt.Errorf("naming: unknown policy %q", s)
}

// ToSnakeCase lowercases s and prefixes every uppercase letter after the
// first character with an underscore. Runs of capitals are not grouped:
// UserId becomes user_id and UserID becomes user_i_d.
func ToSnakeCase(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range []rune(s) {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
