// Package pgx registers the database/sql adapter of github.com/jackc/pgx/v5
// under the name "pgx":
//
//	import _ "github.com/syssam/persist/drivers/pgx"
package pgx

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" in database/sql

	"github.com/syssam/persist/dialect"
	"github.com/syssam/persist/dialect/sql"
)

// DriverName is the database/sql name of the driver.
const DriverName = "pgx"

func init() {
	sql.Register("pgx", sql.Opener{DriverName: DriverName, Dialect: dialect.Postgres, DSN: DSN})
	sql.RegisterClassifier(func(err error) string {
		var e *pgconn.PgError
		if errors.As(err, &e) {
			return sql.SQLStateKind(e.Code)
		}
		return ""
	})
}

// Options are the driver options of a pgx source.
type Options struct {
	// SSLMode defaults to "disable".
	SSLMode        string        `mapstructure:"sslmode"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// Runtime are run-time parameters set on every connection, such as
	// search_path or application_name.
	Runtime map[string]string `mapstructure:"runtime"`
}

// DSN returns the keyword/value connection string of src, port 5432 by
// default. The result is checked with the pgx parser.
func DSN(src sql.Source) (string, error) {
	if src.Database == "" {
		return "", errors.New("pgx: no database name")
	}
	o := Options{SSLMode: "disable"}
	if err := sql.DecodeOptions(src, &o); err != nil {
		return "", err
	}
	host, port := src.Host, src.Port
	if host == "" {
		host = "localhost"
	}
	if port == 0 {
		port = 5432
	}
	var kv []string
	add := func(k, v string) {
		if v != "" {
			kv = append(kv, k+"="+quote(v))
		}
	}
	add("host", host)
	add("port", strconv.Itoa(port))
	add("dbname", src.Database)
	add("user", src.User)
	add("password", src.Password)
	add("sslmode", o.SSLMode)
	if o.ConnectTimeout > 0 {
		add("connect_timeout", strconv.Itoa(int(o.ConnectTimeout.Seconds())))
	}
	names := make([]string, 0, len(o.Runtime))
	for k := range o.Runtime {
		names = append(names, k)
	}
	slices.Sort(names)
	for _, k := range names {
		add(k, o.Runtime[k])
	}
	dsn := strings.Join(kv, " ")
	if _, err := pgx.ParseConfig(dsn); err != nil {
		return "", fmt.Errorf("pgx: %w", err)
	}
	return dsn, nil
}

// quote quotes v when it holds spaces, quotes or backslashes.
func quote(v string) string {
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
