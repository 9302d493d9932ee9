// Package sql provides the database/sql backed implementation of
// dialect.Driver used by the runtime.
//
// # Opening a Driver
//
// Driver packages register an Opener describing their database/sql
// driver name, dialect and how to build a DSN. Importing one for its side
// effects makes it available to Open and OpenSource:
//
//	import _ "github.com/syssam/persist/drivers/sqlite"
//
//	drv, err := sql.OpenSource(sql.Source{Driver: "sqlite", Database: "app.db"})
//
// An existing *sql.DB can be wrapped with OpenDB:
//
//	drv := sql.OpenDB(dialect.Postgres, db)
//
// # Executing Statements
//
// Driver implements the Exec/Query contract of dialect.ExecQuerier.
// Arguments are passed as []any or persist.Arguments and results are
// written into *sql.Result or *sql.Rows:
//
//	var rows sql.Rows
//	if err := drv.Query(ctx, "SELECT ID FROM CITY", []any{}, &rows); err != nil {
//	    return err
//	}
//	defer rows.Close()
//
// # Session Settings
//
// WithSetting attaches settings that are applied on the connection before
// a statement, as SET for most dialects and PRAGMA for SQLite, and reset
// before the connection returns to the pool:
//
//	ctx = sql.WithSetting(ctx, "search_path", "tenant_1")
//
// # Statistics and Debugging
//
// NewStatsDriver counts statements, errors and slow queries; NewDebugDriver
// logs every statement:
//
//	drv = sql.NewStatsDriver(drv, sql.WithSlowThreshold(200*time.Millisecond), sql.WithSlowQueryLog(logger))
//
// # Constraint Errors
//
// IsConstraintError and ConstraintKind classify backend failures for
// PostgreSQL, MySQL and SQLite using SQLSTATE codes, error numbers and,
// as a last resort, the error message.
package sql
