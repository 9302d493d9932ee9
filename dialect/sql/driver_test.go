package sql

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/persist"
	"github.com/syssam/persist/dialect"
)

func newMock(t *testing.T, name string) (*Driver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return OpenDB(name, db), mock
}

func TestConnQuery(t *testing.T) {
	drv, mock := newMock(t, dialect.Postgres)
	ctx := context.Background()

	mock.ExpectQuery("SELECT NAME FROM CITY WHERE ID > $1").
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"NAME"}).AddRow("Oslo").AddRow(nil))
	var rows Rows
	require.NoError(t, drv.Query(ctx, "SELECT NAME FROM CITY WHERE ID > $1", []any{10}, &rows))
	var names []NullString
	for rows.Next() {
		var n NullString
		require.NoError(t, rows.Scan(&n))
		names = append(names, n)
	}
	require.NoError(t, rows.Err())
	require.NoError(t, rows.Close())
	assert.Equal(t, []NullString{{String: "Oslo", Valid: true}, {}}, names)

	mock.ExpectQuery("SELECT 1 WHERE $1 = $2").
		WithArgs("a", "a").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	require.NoError(t, drv.Query(ctx, "SELECT 1 WHERE $1 = $2", persist.Args("a", "a"), &rows))
	require.NoError(t, rows.Close())

	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	require.NoError(t, drv.Query(ctx, "SELECT 1", nil, &rows))
	require.NoError(t, rows.Close())

	mock.ExpectQuery("SELECT broken").WillReturnError(errors.New("syntax error"))
	err := drv.Query(ctx, "SELECT broken", []any{}, &rows)
	assert.ErrorContains(t, err, "dialect/sql: query: syntax error")
	require.NoError(t, mock.ExpectationsWereMet())

	err = drv.Query(ctx, "SELECT 1", []any{}, &sql.Rows{})
	assert.ErrorContains(t, err, "want *sql.Rows")
	err = drv.Query(ctx, "SELECT 1", map[string]any{}, &rows)
	assert.ErrorContains(t, err, "unexpected arguments map[string]interface {}")
}

func TestConnExec(t *testing.T) {
	drv, mock := newMock(t, dialect.MySQL)
	ctx := context.Background()

	mock.ExpectExec("UPDATE CITY SET NAME = ? WHERE ID = ?").
		WithArgs("Bergen", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	var res Result
	require.NoError(t, drv.Exec(ctx, "UPDATE CITY SET NAME = ? WHERE ID = ?", persist.Args("Bergen", 2), &res))
	affected, err := res.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	mock.ExpectExec("DELETE FROM CITY").WillReturnResult(sqlmock.NewResult(0, 3))
	require.NoError(t, drv.Exec(ctx, "DELETE FROM CITY", []any{}, nil))

	mock.ExpectExec("INSERT INTO CITY (ID) VALUES (?)").
		WithArgs(1).
		WillReturnError(errors.New("duplicate entry"))
	err = drv.Exec(ctx, "INSERT INTO CITY (ID) VALUES (?)", []any{1}, nil)
	assert.ErrorContains(t, err, "dialect/sql: exec: duplicate entry")
	require.NoError(t, mock.ExpectationsWereMet())

	var n int
	assert.ErrorContains(t, drv.Exec(ctx, "DELETE FROM CITY", []any{}, &n), "want *sql.Result")
}

func TestDriverTx(t *testing.T) {
	drv, mock := newMock(t, dialect.SQLite)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO CITY (NAME) VALUES (?)").
		WithArgs("Turku").
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectQuery("SELECT COUNT(*) FROM CITY").
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(1))
	mock.ExpectCommit()
	tx, err := drv.Tx(ctx)
	require.NoError(t, err)
	var res Result
	require.NoError(t, tx.Exec(ctx, "INSERT INTO CITY (NAME) VALUES (?)", []any{"Turku"}, &res))
	id, err := res.LastInsertId()
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	var rows Rows
	require.NoError(t, tx.Query(ctx, "SELECT COUNT(*) FROM CITY", []any{}, &rows))
	require.NoError(t, rows.Close())
	require.NoError(t, tx.Commit())

	mock.ExpectBegin()
	mock.ExpectRollback()
	tx, err = drv.BeginTx(ctx, &TxOptions{Isolation: sql.LevelDefault})
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	mock.ExpectBegin().WillReturnError(errors.New("database is locked"))
	_, err = drv.Tx(ctx)
	assert.ErrorContains(t, err, "dialect/sql: begin: database is locked")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverDialect(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{dialect.Postgres, dialect.Postgres},
		{dialect.MySQL, dialect.MySQL},
		{dialect.DuckDB, dialect.DuckDB},
		{"pgx", dialect.Postgres},
		{"sqlite3", dialect.SQLite},
		{"postgres-traced", dialect.Postgres},
		{"custom", "custom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drv, _ := newMock(t, tt.name)
			assert.Equal(t, tt.want, drv.Dialect())
			assert.NotNil(t, drv.DB())
		})
	}
}

func TestQueryCanceled(t *testing.T) {
	drv, _ := newMock(t, dialect.Postgres)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var rows Rows
	err := drv.Query(ctx, "SELECT 1", []any{}, &rows)
	assert.ErrorIs(t, err, context.Canceled)
}

func BenchmarkConnQuery(b *testing.B) {
	db, mock, err := sqlmock.New()
	if err != nil {
		b.Fatal(err)
	}
	defer db.Close()
	drv := OpenDB(dialect.Postgres, db)
	args := persist.Args(1)
	for i := 0; i < b.N; i++ {
		mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"ID"}).AddRow(1))
		var rows Rows
		if err := drv.Query(context.Background(), "SELECT ID FROM CITY WHERE ID = $1", args, &rows); err != nil {
			b.Fatal(err)
		}
		rows.Close()
	}
}
