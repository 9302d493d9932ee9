package runner_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/persist"
	"github.com/syssam/persist/dialect"
	"github.com/syssam/persist/runner"
)

func TestSimpleRead(t *testing.T) {
	r, mock := newRunner(t, dialect.SQLite)
	s := r.Simple()
	ctx := context.Background()
	const query = "SELECT CITY_ID, NAME FROM CITY WHERE CITY_ID = ?"

	t.Run("Values", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"CITY_ID", "NAME"}).AddRow(int64(1), []byte("Rome"))).
			RowsWillBeClosed()
		row, err := s.Read(ctx, query, persist.Args(1))
		require.NoError(t, err)
		cols, err := row.Columns()
		require.NoError(t, err)
		assert.Equal(t, []string{"CITY_ID", "NAME"}, cols)
		values, err := row.Values()
		require.NoError(t, err)
		assert.Equal(t, []any{int64(1), "Rome"}, values)

		_, err = row.Values()
		assert.Error(t, err, "row is closed after mapping")
		require.NoError(t, row.Close())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("MapRow", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"CITY_ID", "NAME"}).AddRow(int64(1), "Rome")).
			RowsWillBeClosed()
		row, err := s.Read(ctx, query, persist.Args(1))
		require.NoError(t, err)
		c, err := runner.MapRow(row, cityDescriptor())
		require.NoError(t, err)
		assert.Equal(t, &city{ID: 1, Name: "Rome"}, c)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(2).WillReturnRows(sqlmock.NewRows([]string{"CITY_ID"})).RowsWillBeClosed()
		_, err := s.Read(ctx, query, persist.Args(2))
		assert.True(t, persist.IsNotFound(err))

		mock.ExpectQuery(query).WithArgs(2).WillReturnRows(sqlmock.NewRows([]string{"CITY_ID"})).RowsWillBeClosed()
		row, ok, err := s.ReadOptional(ctx, query, persist.Args(2))
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, row)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSimpleReadLazy(t *testing.T) {
	r, mock := newRunner(t, dialect.SQLite)
	s := r.Simple()
	const query = "SELECT NAME FROM CITY"

	mock.ExpectQuery(query).
		WillReturnRows(sqlmock.NewRows([]string{"NAME"}).AddRow("A").AddRow("B")).
		RowsWillBeClosed()
	rows, err := s.ReadLazy(context.Background(), query, persist.EmptyArguments())
	require.NoError(t, err)
	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"A", "B"}, names)
	require.NoError(t, rows.Close())

	mock.ExpectQuery(query).
		WillReturnRows(sqlmock.NewRows([]string{"NAME"}).AddRow("A")).
		RowsWillBeClosed()
	records, err := s.ReadAll(context.Background(), query, persist.EmptyArguments())
	require.NoError(t, err)
	assert.Equal(t, []runner.Record{{"NAME": "A"}}, records)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSimpleCount(t *testing.T) {
	r, mock := newRunner(t, dialect.SQLite)
	s := r.Simple()
	ctx := context.Background()
	const query = "SELECT COUNT(*) FROM CITY"

	mock.ExpectQuery(query).WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(int64(5)))
	n, err := s.Count(ctx, query, persist.EmptyArguments())
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	mock.ExpectQuery(query).WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow([]byte("7")))
	n, err = s.Count(ctx, query, persist.EmptyArguments())
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	mock.ExpectQuery(query).WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(true))
	_, err = s.Count(ctx, query, persist.EmptyArguments())
	assert.True(t, persist.IsMappingError(err))
	require.NoError(t, mock.ExpectationsWereMet())
}
