// Package postgres registers github.com/lib/pq under the names "postgres"
// and "postgresql":
//
//	import _ "github.com/syssam/persist/drivers/postgres"
//
// Use package drivers/pgx for the pgx driver.
package postgres

import (
	"errors"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/lib/pq"

	"github.com/syssam/persist/dialect"
	"github.com/syssam/persist/dialect/sql"
)

// DriverName is the database/sql name of the driver.
const DriverName = "postgres"

func init() {
	o := sql.Opener{DriverName: DriverName, Dialect: dialect.Postgres, DSN: DSN}
	sql.Register("postgres", o)
	sql.Register("postgresql", o)
	sql.RegisterClassifier(func(err error) string {
		var e *pq.Error
		if errors.As(err, &e) {
			return sql.SQLStateKind(string(e.Code))
		}
		return ""
	})
}

// Options are the driver options of a PostgreSQL source.
type Options struct {
	// SSLMode defaults to "disable".
	SSLMode         string        `mapstructure:"sslmode"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	SearchPath      string        `mapstructure:"search_path"`
	ApplicationName string        `mapstructure:"application_name"`
}

// DSN returns the connection URL of src, port 5432 by default.
func DSN(src sql.Source) (string, error) {
	if src.Database == "" {
		return "", errors.New("postgres: no database name")
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
	q := url.Values{}
	q.Set("sslmode", o.SSLMode)
	if o.ConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(o.ConnectTimeout.Seconds())))
	}
	if o.SearchPath != "" {
		q.Set("search_path", o.SearchPath)
	}
	if o.ApplicationName != "" {
		q.Set("application_name", o.ApplicationName)
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(host, strconv.Itoa(port)),
		Path:     "/" + src.Database,
		RawQuery: q.Encode(),
	}
	switch {
	case src.Password != "":
		u.User = url.UserPassword(src.User, src.Password)
	case src.User != "":
		u.User = url.User(src.User)
	}
	return u.String(), nil
}
