package sqlgen

import (
	"errors"
	"fmt"
)

// ErrMapping matches every *MappingError via errors.Is.
var ErrMapping = errors.New("sqlgen: invalid mapping")

// MappingError reports record type metadata that cannot produce a statement.
// It is raised at synthesis time and is fatal for the type until its
// metadata is corrected.
type MappingError struct {
	Type      string // record type name
	Statement string // getById, insert, update, delete
	Reason    string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("sqlgen: %s: cannot build %s: %s", e.Type, e.Statement, e.Reason)
}

// Is reports whether target is ErrMapping.
func (e *MappingError) Is(target error) bool {
	return target == ErrMapping
}
