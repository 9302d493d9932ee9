package pgx_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/persist/dialect"
	"github.com/syssam/persist/dialect/sql"
	persistpgx "github.com/syssam/persist/drivers/pgx"
)

func TestDSN(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		dsn, err := persistpgx.DSN(sql.Source{Driver: "pgx", Database: "shop"})
		require.NoError(t, err)
		assert.Equal(t, "host=localhost port=5432 dbname=shop sslmode=disable", dsn)
	})

	t.Run("parsed", func(t *testing.T) {
		dsn, err := persistpgx.DSN(sql.Source{
			Driver:   "pgx",
			Host:     "db",
			Port:     6432,
			User:     "app",
			Password: "it's secret",
			Database: "shop",
			Options: map[string]any{
				"connect_timeout": "5s",
				"runtime":         map[string]any{"search_path": "sales", "application_name": "persist"},
			},
		})
		require.NoError(t, err)
		cfg, err := pgx.ParseConfig(dsn)
		require.NoError(t, err)
		assert.Equal(t, "db", cfg.Host)
		assert.Equal(t, uint16(6432), cfg.Port)
		assert.Equal(t, "shop", cfg.Database)
		assert.Equal(t, "app", cfg.User)
		assert.Equal(t, "it's secret", cfg.Password)
		assert.Equal(t, 5*time.Second, cfg.ConnectTimeout)
		assert.Equal(t, "sales", cfg.RuntimeParams["search_path"])
		assert.Equal(t, "persist", cfg.RuntimeParams["application_name"])
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := persistpgx.DSN(sql.Source{Driver: "pgx", Database: "shop", Options: map[string]any{"sslmode": "sometimes"}})
		assert.Error(t, err)
		_, err = persistpgx.DSN(sql.Source{Driver: "pgx"})
		assert.Error(t, err)
	})
}

func TestRegistered(t *testing.T) {
	o, ok := sql.Lookup("pgx")
	require.True(t, ok)
	assert.Equal(t, persistpgx.DriverName, o.DriverName)
	assert.Equal(t, dialect.Postgres, o.Dialect)
}

func TestConstraintErrors(t *testing.T) {
	err := fmt.Errorf("dialect/sql: exec: %w", &pgconn.PgError{Code: "23503", Message: "insert violates foreign key"})
	assert.Equal(t, sql.ConstraintForeignKey, sql.ConstraintKind(err))
	assert.True(t, sql.IsCheckConstraintError(&pgconn.PgError{Code: "23514"}))
	assert.False(t, sql.IsConstraintError(&pgconn.PgError{Code: "57014", Message: "canceling statement"}))
}
