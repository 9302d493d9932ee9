package sql

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/persist"
	"github.com/syssam/persist/dialect"
)

func TestStatsDriver(t *testing.T) {
	drv, mock := newMock(t, dialect.SQLite)
	var slow []SlowQuery
	sd := NewStatsDriver(drv,
		WithSlowThreshold(-1),
		WithSlowQueryHook(func(_ context.Context, q SlowQuery) { slow = append(slow, q) }),
	)
	assert.Equal(t, time.Duration(-1), sd.SlowThreshold())
	ctx := context.Background()

	mock.ExpectQuery("SELECT NAME FROM CITY").WillReturnRows(sqlmock.NewRows([]string{"NAME"}))
	var rows Rows
	require.NoError(t, sd.Query(ctx, "SELECT NAME FROM CITY", []any{}, &rows))
	require.NoError(t, rows.Close())

	mock.ExpectExec("DELETE FROM CITY WHERE ID = ?").WithArgs(4).WillReturnError(errors.New("database is locked"))
	require.Error(t, sd.Exec(ctx, "DELETE FROM CITY WHERE ID = ?", persist.Args(4), nil))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO CITY DEFAULT VALUES").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectRollback()
	tx, err := sd.Tx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Exec(ctx, "INSERT INTO CITY DEFAULT VALUES", []any{}, nil))
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())

	s := sd.QueryStats().Stats()
	assert.Equal(t, int64(1), s.TotalQueries)
	assert.Equal(t, int64(2), s.TotalExecs)
	assert.Equal(t, int64(3), s.Statements())
	assert.Equal(t, int64(1), s.Errors)
	assert.Equal(t, int64(3), s.SlowQueries)
	assert.Equal(t, int64(1), s.Transactions)
	assert.Equal(t, int64(1), s.Rollbacks)
	assert.GreaterOrEqual(t, s.TotalDuration, s.MaxDuration)
	assert.Contains(t, s.String(), "queries=1 execs=2 errors=1 slow=3 txs=1 rollbacks=1")

	require.Len(t, slow, 3)
	assert.Equal(t, []any{4}, slow[1].Args)
	assert.EqualError(t, slow[1].Err, "dialect/sql: exec: database is locked")
	assert.False(t, slow[1].InTx)
	assert.True(t, slow[2].InTx)

	sd.QueryStats().Reset()
	assert.Equal(t, StatsSnapshot{}, sd.QueryStats().Stats())
	assert.Zero(t, sd.QueryStats().Stats().AvgQueryDuration())
}

func TestStatsThreshold(t *testing.T) {
	drv, mock := newMock(t, dialect.Postgres)
	var buf bytes.Buffer
	sd := NewStatsDriver(drv, WithSlowQueryLog(slog.New(slog.NewTextHandler(&buf, nil))))
	assert.Equal(t, DefaultSlowThreshold, sd.SlowThreshold())

	mock.ExpectExec("SELECT pg_sleep(0)").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, sd.Exec(context.Background(), "SELECT pg_sleep(0)", []any{}, nil))
	assert.Zero(t, sd.QueryStats().Stats().SlowQueries)
	assert.Empty(t, buf.String())

	sd.SetSlowThreshold(-1)
	mock.ExpectExec("SELECT pg_sleep(0)").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, sd.Exec(context.Background(), "SELECT pg_sleep(0)", []any{}, nil))
	assert.Equal(t, int64(1), sd.QueryStats().Stats().SlowQueries)
	assert.Contains(t, buf.String(), `level=WARN msg="slow query" statement="SELECT pg_sleep(0)"`)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsConcurrent(t *testing.T) {
	var (
		s  QueryStats
		wg sync.WaitGroup
	)
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(d time.Duration) {
			defer wg.Done()
			s.observe(d%2 == 0, d, nil)
		}(time.Duration(i) * time.Millisecond)
	}
	wg.Wait()
	snap := s.Stats()
	assert.Equal(t, int64(50), snap.Statements())
	assert.Equal(t, 50*time.Millisecond, snap.MaxDuration)
	assert.Equal(t, 1275*time.Millisecond, snap.TotalDuration)
}

func TestDebugDriver(t *testing.T) {
	drv, mock := newMock(t, dialect.SQLite)
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	dd := NewDebugDriver(drv, DebugWithLogger(logger))
	ctx := context.Background()

	mock.ExpectExec("UPDATE CITY SET NAME = ?").WithArgs("Lund").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, dd.Exec(ctx, "UPDATE CITY SET NAME = ?", persist.Args("Lund"), nil))
	assert.Contains(t, buf.String(), `msg=exec statement="UPDATE CITY SET NAME = ?" args=[Lund]`)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectCommit()
	tx, err := dd.Tx(ctx)
	require.NoError(t, err)
	var rows Rows
	require.NoError(t, tx.Query(ctx, "SELECT 1", []any{}, &rows))
	require.NoError(t, rows.Close())
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
	out := buf.String()
	assert.Contains(t, out, "msg=begin")
	assert.Contains(t, out, `msg=query tx=true statement="SELECT 1"`)
	assert.Contains(t, out, "msg=commit tx=true error=<nil>")

	buf.Reset()
	quiet := NewDebugDriver(drv, DebugWithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	mock.ExpectExec("DELETE FROM CITY").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, quiet.Exec(ctx, "DELETE FROM CITY", []any{}, nil))
	assert.Empty(t, buf.String())
}
