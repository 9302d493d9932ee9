// Package duckdb registers github.com/marcboeker/go-duckdb under the name
// "duckdb":
//
//	import _ "github.com/syssam/persist/drivers/duckdb"
//
// The driver needs cgo.
package duckdb

import (
	"net/url"
	"strconv"

	_ "github.com/marcboeker/go-duckdb" // registers "duckdb" in database/sql

	"github.com/syssam/persist/dialect"
	"github.com/syssam/persist/dialect/sql"
)

// DriverName is the database/sql name of the driver.
const DriverName = "duckdb"

// Memory is the path of an in-memory database.
const Memory = ":memory:"

func init() {
	sql.Register("duckdb", sql.Opener{DriverName: DriverName, Dialect: dialect.DuckDB, DSN: DSN})
}

// Options are the driver options of a DuckDB source.
type Options struct {
	// AccessMode is "automatic", "read_only" or "read_write".
	AccessMode string `mapstructure:"access_mode"`
	Threads    int    `mapstructure:"threads"`
	// Settings are other configuration options, e.g. memory_limit.
	Settings map[string]string `mapstructure:"settings"`
}

// DSN returns the path of the database file src.Database with the options
// as configuration parameters. An empty database opens in memory.
func DSN(src sql.Source) (string, error) {
	var o Options
	if err := sql.DecodeOptions(src, &o); err != nil {
		return "", err
	}
	path := src.Database
	if path == "" {
		path = Memory
	}
	q := url.Values{}
	if o.AccessMode != "" {
		q.Set("access_mode", o.AccessMode)
	}
	if o.Threads > 0 {
		q.Set("threads", strconv.Itoa(o.Threads))
	}
	for k, v := range o.Settings {
		q.Set(k, v)
	}
	if len(q) == 0 {
		return path, nil
	}
	return path + "?" + q.Encode(), nil
}
