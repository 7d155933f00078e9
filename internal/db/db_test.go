package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	q := `UPDATE quotes SET status=? WHERE id=? AND status=?`
	require.Equal(t, q, SQLite.Rebind(q))
	require.Equal(t, `UPDATE quotes SET status=$1 WHERE id=$2 AND status=$3`, Postgres.Rebind(q))
}

func TestOpenSQLiteCreatesWorkspace(t *testing.T) {
	dir := t.TempDir()
	conn, dialect, err := Open(Config{Workspace: dir})
	require.NoError(t, err)
	defer conn.Close()
	require.Equal(t, SQLite, dialect)
	require.NoError(t, conn.Ping())
	require.FileExists(t, filepath.Join(dir, ".quoteline", defaultDBName))
}

func TestOpenPostgresRequiresDSN(t *testing.T) {
	_, _, err := Open(Config{Driver: Postgres})
	require.Error(t, err)
	_, _, err = Open(Config{Driver: "oracle"})
	require.Error(t, err)
}
