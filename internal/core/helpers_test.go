package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO required)

	"github.com/coregx/entities/internal/naming"
)

type customer struct {
	Id    int64
	Email string `db:",key"`
	Name  string
	Notes *string
}

type auditEntry struct {
	ID      int64 `db:"id"`
	Message string
}

func (auditEntry) TableName() string { return "audit_log" }

const schemaSQL = `
CREATE TABLE customer (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	email TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL DEFAULT '',
	notes TEXT
);
CREATE TABLE audit_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	message TEXT NOT NULL
);`

// setupTestDB opens an in-memory SQLite database with snake_case naming.
// The pool holds a single connection so every statement sees the same
// in-memory database.
func setupTestDB(t *testing.T, opts ...Option) *DB {
	t.Helper()

	opts = append([]Option{WithNaming(naming.SnakeCase), WithMaxOpenConns(1)}, opts...)
	db, err := Open("sqlite", ":memory:", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.DB().ExecContext(context.Background(), schemaSQL)
	require.NoError(t, err)
	return db
}

func customers(t *testing.T, db *DB, opts ...RepositoryOption[customer]) *Repository[customer, int64] {
	t.Helper()
	repo, err := NewRepository[customer, int64](db, opts...)
	require.NoError(t, err)
	return repo
}

func countRows(t *testing.T, db *DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.DB().QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func strPtr(s string) *string { return &s }
