package db

import (
	"database/sql"
	"path/filepath"
	"testing"
)

// OpenTestSQLite returns a migrated metadata store in a per-test directory.
// Both pools are closed by t.Cleanup.
func OpenTestSQLite(t testing.TB) (writeDB, readDB *sql.DB) {
	t.Helper()

	writeDB, readDB, err := OpenStore(filepath.Join(t.TempDir(), "meta.sqlite"), 2)
	if err != nil {
		t.Fatalf("open test metadata store: %v", err)
	}
	t.Cleanup(func() {
		_ = readDB.Close()
		_ = writeDB.Close()
	})
	return writeDB, readDB
}
