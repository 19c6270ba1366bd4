package db

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		mode   string
		txlock bool
	}{
		{ModeWrite, true},
		{ModeRead, false},
	}
	for _, tc := range tests {
		t.Run(tc.mode, func(t *testing.T) {
			dsn := buildDSN("/tmp/models.sqlite", tc.mode)
			assert.True(t, strings.HasPrefix(dsn, "/tmp/models.sqlite?"))
			assert.Contains(t, dsn, "_journal_mode=WAL")
			assert.Contains(t, dsn, "_busy_timeout=5000")
			assert.Contains(t, dsn, "_foreign_keys=on")
			assert.Equal(t, tc.txlock, strings.Contains(dsn, "_txlock=immediate"))
		})
	}
}

func TestOpenSQLite_InvalidMode(t *testing.T) {
	_, err := OpenSQLite(filepath.Join(t.TempDir(), "x.db"), "invalid", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid SQLite mode")
}

func TestOpenSQLite_InvalidPath(t *testing.T) {
	_, err := OpenSQLite("/nonexistent/dir/x.db", ModeWrite, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping sqlite")
}

func TestOpen_MigratesAndSplitsPools(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "models.sqlite"), 3)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	assert.Equal(t, 1, store.Write.Stats().MaxOpenConnections)
	assert.Equal(t, 3, store.Read.Stats().MaxOpenConnections)

	version, err := SchemaVersion(store.Write)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	var journalMode string
	require.NoError(t, store.Read.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", strings.ToLower(journalMode))

	_, err = store.Write.Exec(`INSERT INTO semantic_models (id, name, dialect) VALUES ('1', 'sales', 'duckdb')`)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			var name string
			errs[idx] = store.Read.QueryRow("SELECT name FROM semantic_models WHERE id = '1'").Scan(&name)
		}(i)
	}
	wg.Wait()
	for i, e := range errs {
		assert.NoError(t, e, "reader %d failed", i)
	}
}

func TestOpen_IsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.sqlite")
	first, err := Open(path, 0)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(path, 0)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}
