package database

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"testing/fstest"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPendingFiles_SortedUpOnly(t *testing.T) {
	fsys := fstest.MapFS{
		"002_promos.up.sql": {Data: []byte("CREATE TABLE promos ();")},
		"001_init.up.sql":   {Data: []byte("CREATE TABLE users ();")},
		"001_init.down.sql": {Data: []byte("DROP TABLE users;")},
		"README.md":         {Data: []byte("docs")},
	}

	names, err := pendingFiles(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_init.up.sql", "002_promos.up.sql"}, names)
}

func TestRunMigrations_AppliesNewAndSkipsApplied(t *testing.T) {
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	fsys := fstest.MapFS{
		"001_init.up.sql":   {Data: []byte("CREATE TABLE users ();")},
		"002_promos.up.sql": {Data: []byte("CREATE TABLE promos ();")},
	}

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	mock.ExpectQuery("SELECT EXISTS").WithArgs("001_init.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	mock.ExpectQuery("SELECT EXISTS").WithArgs("002_promos.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE promos").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("INSERT INTO schema_migrations").WithArgs("002_promos.up.sql").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err = RunMigrations(context.Background(), mock, fsys, quietLogger())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_SQLErrorIsNotRetried(t *testing.T) {
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	fsys := fstest.MapFS{"001_init.up.sql": {Data: []byte("CREATE TABLE broken (")}}

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT EXISTS").WithArgs("001_init.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE broken").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err = RunMigrations(context.Background(), mock, fsys, quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execute migration 001_init.up.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}
