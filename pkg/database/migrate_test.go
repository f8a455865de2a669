package database

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/natusdeed/fashion-site-sub000/pkg/logger"
)

func migrationFS() fstest.MapFS {
	return fstest.MapFS{
		"002_seed.up.sql":       {Data: []byte("INSERT INTO products DEFAULT VALUES")},
		"001_products.up.sql":   {Data: []byte("CREATE TABLE products (id BIGSERIAL)")},
		"001_products.down.sql": {Data: []byte("DROP TABLE products")},
	}
}

func TestRunMigrations_AppliesPendingInOrder(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(createMigrationsTable).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	check := "SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)"
	mock.ExpectQuery(check).WithArgs("001_products.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	mock.ExpectQuery(check).WithArgs("002_seed.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO products DEFAULT VALUES").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO schema_migrations (version) VALUES ($1)").
		WithArgs("002_seed.up.sql").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, RunMigrations(context.Background(), mock, migrationFS(), logger.Discard()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_RollsBackOnFailure(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer mock.Close()

	fsys := fstest.MapFS{"001_bad.up.sql": {Data: []byte("CREATE TABEL oops")}}

	mock.ExpectExec(createMigrationsTable).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)").
		WithArgs("001_bad.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABEL oops").WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	err = RunMigrations(context.Background(), mock, fsys, logger.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "001_bad.up.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_TrackingTableFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnError(errors.New("permission denied"))

	err = RunMigrations(context.Background(), mock, migrationFS(), logger.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema_migrations")
}
