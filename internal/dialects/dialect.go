// Package dialects provides the database-specific parameter sets used during
// statement synthesis and execution: default schema, identifier formatting,
// qualified-name syntax, identity retrieval and placeholder style.
package dialects

import (
	"strings"
	"sync"

	"github.com/coregx/entities/internal/naming"
)

// Identity selects how a dialect returns the generated key of an INSERT.
type Identity int

const (
	// IdentityScalar means the INSERT statement itself yields the key as a
	// single-row, single-column result.
	IdentityScalar Identity = iota
	// IdentityLastInsertID means the key is read from the driver result.
	IdentityLastInsertID
)

// Dialect defines database-specific behaviors.
type Dialect interface {
	// Name is the canonical dialect name (postgres, sqlserver, mysql, sqlite).
	Name() string
	// DefaultSchema is used when a record type has no schema override. An
	// empty default leaves table names unqualified.
	DefaultSchema() string
	// FormatIdentifier renders a table, schema or column identifier.
	FormatIdentifier(string) string
	// QualifyName joins already-formatted schema and table identifiers.
	QualifyName(schema, table string) string
	// AliasColumns reports whether SELECT lists name every column with an
	// alias of its parameter name; otherwise SELECT * is used.
	AliasColumns() bool
	// IDPredicate renders the WHERE predicate of the get-by-id statement for
	// an already-formatted column.
	IDPredicate(column string) string
	// InsertSuffix is appended to INSERT ... VALUES (...) to retrieve the
	// generated key. idColumn is already formatted.
	InsertSuffix(idColumn string) string
	// DeleteKeyword is the DELETE statement prefix before the table name.
	DeleteKeyword() string
	// Identity reports how the generated key is obtained.
	Identity() Identity
	// Placeholder renders the positional placeholder for the n-th (1-based)
	// bind parameter.
	Placeholder(n int) string
}

// Factory creates a dialect using the given naming policy.
type Factory func(naming.Policy) Dialect

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register registers a dialect factory by driver name.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[strings.ToLower(name)] = f
}

// Get creates the dialect registered for a driver name.
func Get(name string, policy naming.Policy) (Dialect, bool) {
	mu.RLock()
	f, ok := factories[strings.ToLower(name)]
	mu.RUnlock()
	if !ok {
		return nil, false
	}
	return f(policy), true
}

// Names lists registered driver names.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	return names
}

// qualify joins schema and table with a dot, omitting an empty schema.
func qualify(schema, table string) string {
	if schema == "" {
		return table
	}
	return schema + "." + table
}
