package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetConfig(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	t.Run("defaults", func(t *testing.T) {
		cfg := GetConfig()
		assert.Equal(t, DriverPQ, cfg.Driver)
		assert.Equal(t, "localhost", cfg.Host)
		assert.Equal(t, 25, cfg.MaxOpenConns)
		assert.Equal(t, 5*time.Minute, cfg.ConnMaxLifetime)
	})

	t.Run("pgx driver", func(t *testing.T) {
		viper.Set("database.driver", DriverPGX)
		viper.Set("database.name", "ledger_test")
		cfg := GetConfig()
		assert.Equal(t, DriverPGX, cfg.Driver)
		assert.Contains(t, cfg.DSN(), "dbname=ledger_test")
	})
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(&DBConfig{Driver: "sqlite3"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestMigrate(t *testing.T) {
	t.Run("applies every statement in order", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS accounts").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS transactions").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_transactions_created_at").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_transactions_account_id").WillReturnResult(sqlmock.NewResult(0, 0))

		assert.NoError(t, Migrate(context.Background(), db))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stops at the first failure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS accounts").WillReturnError(errors.New("permission denied"))

		err = Migrate(context.Background(), db)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "schema statement 2")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
