package testutil

import (
	"path/filepath"
	"testing"

	"github.com/kittipats/sheetsync/internal/db"
	"github.com/kittipats/sheetsync/internal/recordstore"
)

// TempDB creates a migrated temporary record-store database for testing
func TempDB(t *testing.T) (*db.DB, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")

	database, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	if err := database.Migrate(); err != nil {
		database.Close()
		t.Fatalf("Failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		database.Close()
	})

	return database, dbPath
}

// TempRecordStore returns a record store over a migrated temporary
// database
func TempRecordStore(t *testing.T) *recordstore.SQLite {
	t.Helper()
	database, _ := TempDB(t)
	return recordstore.NewSQLite(database)
}
