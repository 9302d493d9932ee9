// Package dialect provides database dialect abstraction for the persistence runtime.
//
// This package defines the interfaces and types used for database-specific
// operations, allowing the runtime to support multiple database backends
// including PostgreSQL, MySQL, SQLite, DuckDB and SQL Server.
//
// # Dialect Constants
//
// Each dialect is identified by a constant string:
//
//	dialect.Postgres  = "postgres"
//	dialect.MySQL     = "mysql"
//	dialect.SQLite    = "sqlite"
//	dialect.DuckDB    = "duckdb"
//	dialect.SQLServer = "sqlserver"
//
// # Driver Interface
//
// The package defines the Driver interface for database operations:
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// The Tx interface adds Commit and Rollback to ExecQuerier.
//
// # Vendors
//
// A Vendor groups the fragment rendering strategies of a backend: how a
// LIKE operand concatenates wildcards, how rows are limited, which
// placeholder style is used and whether INSERT ... RETURNING exists.
//
//	like, err := dialect.Like(dialect.MySQL)
//	like.Like(dialect.LikeFull) // CONCAT('%', ?, '%')
//
//	lo, err := dialect.LimitOffset(dialect.SQLServer)
//	lo.LimitOffset(10, 20) // OFFSET 20 ROWS FETCH NEXT 10 ROWS ONLY
//
// Lookups for a backend without an implementation of the capability
// return a persist.NoSupportError. Statements are written with '?'
// placeholders and rewritten with Vendor.Rebind before execution.
//
// # Sub-packages
//
//   - dialect/sql: database/sql backed driver implementation
package dialect
