package basic

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	core "allocation/storage/database"
)

func TestMySQLDSNEnablesClientFoundRows(t *testing.T) {
	dsn, err := mysqlDSN("app:secret@tcp(db:3306)/allocation?parseTime=true")
	require.NoError(t, err)
	assert.Contains(t, dsn, "clientFoundRows=true")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "tcp(db:3306)/allocation")

	_, err = mysqlDSN("not a dsn")
	assert.Error(t, err)
}

func TestNew_SQLiteRebindsAndTransacts(t *testing.T) {
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "basic.db") + "?_pragma=busy_timeout(5000)"
	db, err := New(core.DBConfig{DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(ctx, "CREATE TABLE kv (k TEXT PRIMARY KEY, v INTEGER)")
	require.NoError(t, err)

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	_, err = tx.Exec(ctx, "INSERT INTO kv (k, v) VALUES (?, ?)", "a", 1)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	rows, err := db.Query(ctx, "SELECT COUNT(*) FROM kv")
	require.NoError(t, err)
	defer rows.Close()
	require.True(t, rows.Next())
	var n int
	require.NoError(t, rows.Scan(&n))
	assert.Equal(t, 0, n)
}
