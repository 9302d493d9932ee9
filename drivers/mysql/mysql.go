// Package mysql registers github.com/go-sql-driver/mysql under the names
// "mysql" and "mariadb":
//
//	import _ "github.com/syssam/persist/drivers/mysql"
package mysql

import (
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/syssam/persist/dialect"
	"github.com/syssam/persist/dialect/sql"
)

// DriverName is the database/sql name of the driver.
const DriverName = "mysql"

func init() {
	o := sql.Opener{DriverName: DriverName, Dialect: dialect.MySQL, DSN: DSN}
	sql.Register("mysql", o)
	sql.Register("mariadb", o)
	sql.RegisterClassifier(func(err error) string {
		var e *mysql.MySQLError
		if errors.As(err, &e) {
			return sql.MySQLKind(e.Number)
		}
		return ""
	})
}

// Options are the driver options of a MySQL source.
type Options struct {
	Timeout      time.Duration     `mapstructure:"timeout"`
	ReadTimeout  time.Duration     `mapstructure:"read_timeout"`
	WriteTimeout time.Duration     `mapstructure:"write_timeout"`
	TLS          string            `mapstructure:"tls"`
	Location     string            `mapstructure:"loc"`
	Params       map[string]string `mapstructure:"params"`
}

// DSN returns the data source name of src. The connection uses TCP,
// port 3306 by default, and parses DATE and DATETIME columns to time.Time.
func DSN(src sql.Source) (string, error) {
	if src.Database == "" {
		return "", errors.New("mysql: no database name")
	}
	var o Options
	if err := sql.DecodeOptions(src, &o); err != nil {
		return "", err
	}
	host, port := src.Host, src.Port
	if host == "" {
		host = "localhost"
	}
	if port == 0 {
		port = 3306
	}
	cfg := mysql.NewConfig()
	cfg.User = src.User
	cfg.Passwd = src.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	cfg.DBName = src.Database
	cfg.ParseTime = true
	cfg.Timeout = o.Timeout
	cfg.ReadTimeout = o.ReadTimeout
	cfg.WriteTimeout = o.WriteTimeout
	cfg.TLSConfig = o.TLS
	if o.Location != "" {
		loc, err := time.LoadLocation(o.Location)
		if err != nil {
			return "", err
		}
		cfg.Loc = loc
	}
	if len(o.Params) > 0 {
		cfg.Params = o.Params
	}
	return cfg.FormatDSN(), nil
}
