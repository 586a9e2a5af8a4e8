package database

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_SQLiteMemory(t *testing.T) {
	db, err := Open(DriverSQLite, "", zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, db.Exec("CREATE TABLE t (v INTEGER)").Error)
	require.NoError(t, db.Exec("INSERT INTO t VALUES (7)").Error)

	var v int
	require.NoError(t, db.Raw("SELECT v FROM t").Scan(&v).Error)
	assert.Equal(t, 7, v)
}

func TestOpen_SQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	db, err := Open(DriverSQLite, path, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "sqlite", db.Dialector.Name())
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("mysql", "", zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")
}
