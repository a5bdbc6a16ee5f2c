package db

import (
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	for _, mode := range []Mode{ModeWrite, ModeRead} {
		path, query, ok := strings.Cut(dsn("/tmp/meta.sqlite", mode), "?")
		require.True(t, ok)
		assert.Equal(t, "/tmp/meta.sqlite", path)

		params, err := url.ParseQuery(query)
		require.NoError(t, err)
		assert.Equal(t, "WAL", params.Get("_journal_mode"))
		assert.Equal(t, "5000", params.Get("_busy_timeout"))
		assert.Equal(t, "on", params.Get("_foreign_keys"))
		if mode == ModeWrite {
			assert.Equal(t, "immediate", params.Get("_txlock"))
		} else {
			assert.False(t, params.Has("_txlock"))
		}
	}
}

func TestOpen(t *testing.T) {
	t.Run("invalid mode", func(t *testing.T) {
		_, err := Open(filepath.Join(t.TempDir(), "meta.sqlite"), Mode("append"), 0)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid metadata store mode")
	})

	t.Run("unreachable path", func(t *testing.T) {
		_, err := Open("/nonexistent/dir/meta.sqlite", ModeWrite, 0)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ping metadata store")
	})

	t.Run("pool sizes", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "meta.sqlite")
		writeDB, err := Open(path, ModeWrite, 10)
		require.NoError(t, err)
		defer writeDB.Close()
		readDB, err := Open(path, ModeRead, 0)
		require.NoError(t, err)
		defer readDB.Close()

		assert.Equal(t, 1, writeDB.Stats().MaxOpenConnections)
		assert.Equal(t, defaultReadConns, readDB.Stats().MaxOpenConnections)

		var journalMode string
		require.NoError(t, readDB.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
		assert.Equal(t, "wal", strings.ToLower(journalMode))
	})
}

func TestOpenStore_Migrates(t *testing.T) {
	writeDB, readDB, err := OpenStore(filepath.Join(t.TempDir(), "meta.sqlite"), 2)
	require.NoError(t, err)
	t.Cleanup(func() {
		readDB.Close()
		writeDB.Close()
	})

	version, err := SchemaVersion(writeDB)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)
	assert.Equal(t, 2, readDB.Stats().MaxOpenConnections)

	for _, table := range []string{"explores", "user_attributes"} {
		var name string
		err := readDB.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		require.NoError(t, err)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	writeDB, _ := OpenTestSQLite(t)
	require.NoError(t, Migrate(writeDB))

	version, err := SchemaVersion(writeDB)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)
}
