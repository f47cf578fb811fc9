package db

import (
	"database/sql"
	"path/filepath"
	"testing"
)

// NewTestDB opens a fresh database file in the test's temporary directory
// with the schema applied. It is file backed so WAL and BEGIN IMMEDIATE
// behave as they do in production.
func NewTestDB(t testing.TB) *sql.DB {
	t.Helper()

	database, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := EnsureSchema(database); err != nil {
		t.Fatalf("applying schema: %v", err)
	}
	return database
}
