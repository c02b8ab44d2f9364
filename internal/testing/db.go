// Package testing provides testing utilities and helpers for the findata project.
package testing

import (
	"fmt"
	"os"
	"testing"

	"github.com/aristath/findata/internal/database"
)

// NewTestDB creates a file-backed SQLite database for testing with automatic
// schema migration. The database is closed and removed when the test ends.
//
// Supported schema names:
//   - "client_data" - applies client_data_schema.sql
//   - Unknown names - creates empty database (no schema applied)
func NewTestDB(t *testing.T, name string) *database.DB {
	t.Helper()

	// Temporary files give each test its own database; ":memory:" is
	// per-connection and would split the pool across databases.
	tmpFile, err := os.CreateTemp(t.TempDir(), fmt.Sprintf("test_%s_*.db", name))
	if err != nil {
		t.Fatalf("Failed to create temporary database file: %v", err)
	}
	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()

	db, err := database.New(database.Config{
		Path:    tmpPath,
		Profile: database.ProfileCache,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			// Log error but don't fail test
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
	})

	return db
}
