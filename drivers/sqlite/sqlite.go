// Package sqlite registers the pure Go SQLite driver modernc.org/sqlite
// under the names "sqlite" and "sqlite3":
//
//	import _ "github.com/syssam/persist/drivers/sqlite"
//
//	c, err := client.OpenSource(sql.Source{Driver: "sqlite", Database: "app.db"})
package sqlite

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	msqlite "modernc.org/sqlite"

	"github.com/syssam/persist/dialect"
	"github.com/syssam/persist/dialect/sql"
)

// DriverName is the database/sql name of the driver.
const DriverName = "sqlite"

func init() {
	o := sql.Opener{DriverName: DriverName, Dialect: dialect.SQLite, DSN: DSN}
	sql.Register("sqlite", o)
	sql.Register("sqlite3", o)
	sql.RegisterClassifier(classify)
}

func classify(err error) string {
	var e *msqlite.Error
	if errors.As(err, &e) {
		return sql.SQLiteKind(e.Code())
	}
	return ""
}

// Options are the driver options of a SQLite source.
type Options struct {
	// ForeignKeys enforces foreign key constraints. Defaults to true.
	ForeignKeys bool `mapstructure:"foreign_keys"`
	// BusyTimeout is how long a statement waits on a locked database.
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`
	// JournalMode is the journal_mode pragma, e.g. "WAL".
	JournalMode string `mapstructure:"journal_mode"`
}

// DSN returns the data source name of the database file src.Database.
// The options are applied as connection pragmas.
func DSN(src sql.Source) (string, error) {
	if src.Database == "" {
		return "", errors.New("sqlite: no database file")
	}
	o := Options{ForeignKeys: true}
	if err := sql.DecodeOptions(src, &o); err != nil {
		return "", err
	}
	q := url.Values{}
	if o.ForeignKeys {
		q.Add("_pragma", "foreign_keys(1)")
	}
	if o.BusyTimeout > 0 {
		q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", o.BusyTimeout.Milliseconds()))
	}
	if o.JournalMode != "" {
		q.Add("_pragma", "journal_mode("+o.JournalMode+")")
	}
	dsn := "file:" + src.Database
	if len(q) > 0 {
		dsn += "?" + q.Encode()
	}
	return dsn, nil
}
