package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/syssam/persist/dialect"
)

// ResetTimeout bounds the statements that reset session settings before a
// connection goes back to the pool. They run on a fresh context so that a
// canceled statement context does not leave a dirty connection behind.
var ResetTimeout = 5 * time.Second

// Setting is a session setting applied to the connection before a statement.
type Setting struct {
	Name  string
	Value string
}

type settingsKey struct{}

// WithSetting returns a copy of ctx carrying a session setting. Statements
// executed with the context first apply every setting on their connection:
//
//	SET name = 'value'     (PostgreSQL, MySQL, DuckDB)
//	PRAGMA name = 'value'  (SQLite)
//
// Outside a transaction the statement gets a dedicated connection, and the
// settings are reset before it is released where the dialect allows it.
// Inside a transaction they hold until the transaction ends.
func WithSetting(ctx context.Context, name, value string) context.Context {
	prev := Settings(ctx)
	next := make([]Setting, len(prev), len(prev)+1)
	copy(next, prev)
	return context.WithValue(ctx, settingsKey{}, append(next, Setting{Name: name, Value: value}))
}

// WithIntSetting is WithSetting for integer values.
func WithIntSetting(ctx context.Context, name string, value int) context.Context {
	return WithSetting(ctx, name, strconv.Itoa(value))
}

// Settings returns the settings attached to ctx in the order they were added.
func Settings(ctx context.Context) []Setting {
	s, _ := ctx.Value(settingsKey{}).([]Setting)
	return s
}

// SettingFromContext returns the last value attached for name.
func SettingFromContext(ctx context.Context, name string) (string, bool) {
	s := Settings(ctx)
	for i := len(s) - 1; i >= 0; i-- {
		if s[i].Name == name {
			return s[i].Value, true
		}
	}
	return "", false
}

var settingName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

func validSettingName(name string) bool {
	return len(name) <= 128 && settingName.MatchString(name)
}

// quoteSetting renders v as a string literal. Backslashes are doubled as
// well as quotes since MySQL treats them as escapes by default.
func quoteSetting(v string) string {
	if strings.ContainsAny(v, `'\`) {
		v = strings.NewReplacer(`\`, `\\`, `'`, `''`).Replace(v)
	}
	return "'" + v + "'"
}

func setStatement(name string, s Setting) string {
	if name == dialect.SQLite {
		return "PRAGMA " + s.Name + " = " + quoteSetting(s.Value)
	}
	return "SET " + s.Name + " = " + quoteSetting(s.Value)
}

// resetStatement returns the statement restoring the server default of a
// setting. SQLite pragmas have no generic default and are left as they are.
func resetStatement(name, setting string) (string, bool) {
	switch name {
	case dialect.Postgres, dialect.DuckDB:
		return "RESET " + setting, true
	case dialect.MySQL:
		return "SET " + setting + " = DEFAULT", true
	default:
		return "", false
	}
}

// session returns the ExecQuerier a statement runs on after the settings of
// ctx are applied, and a release func when a dedicated connection had to be
// taken from the pool.
func (c Conn) session(ctx context.Context) (ExecQuerier, func() error, error) {
	settings := Settings(ctx)
	if len(settings) == 0 {
		return c.ExecQuerier, nil, nil
	}
	for _, s := range settings {
		if !validSettingName(s.Name) {
			return nil, nil, fmt.Errorf("invalid session setting name %q", s.Name)
		}
	}
	var (
		ex      ExecQuerier
		release func() error
	)
	switch e := c.ExecQuerier.(type) {
	case *sql.DB:
		conn, err := e.Conn(ctx)
		if err != nil {
			return nil, nil, err
		}
		ex, release = conn, conn.Close
	case *sql.Tx, *sql.Conn:
		ex = e
	default:
		return nil, nil, fmt.Errorf("session settings are not supported on %T", c.ExecQuerier)
	}
	d := Driver{dialect: c.dialect}.Dialect()
	var resets []string
	for _, s := range settings {
		if _, err := ex.ExecContext(ctx, setStatement(d, s)); err != nil {
			if release != nil {
				err = errors.Join(err, release())
			}
			return nil, nil, err
		}
		if q, ok := resetStatement(d, s.Name); ok && !slices.Contains(resets, q) {
			resets = append(resets, q)
		}
	}
	if release == nil || len(resets) == 0 {
		return ex, release, nil
	}
	closeConn := release
	release = func() error {
		ctx, cancel := context.WithTimeout(context.Background(), ResetTimeout)
		defer cancel()
		var errs []error
		for _, q := range resets {
			if _, err := ex.ExecContext(ctx, q); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(append(errs, closeConn())...)
	}
	return ex, release, nil
}
