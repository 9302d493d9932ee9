package sql

import (
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// Source describes a database to connect to. DSN, when set, is used as is;
// otherwise the registered opener builds it from the other fields.
type Source struct {
	Driver   string         `koanf:"driver" yaml:"driver"`
	Dialect  string         `koanf:"dialect" yaml:"dialect,omitempty"`
	DSN      string         `koanf:"dsn" yaml:"dsn,omitempty"`
	Host     string         `koanf:"host" yaml:"host,omitempty"`
	Port     int            `koanf:"port" yaml:"port,omitempty"`
	User     string         `koanf:"user" yaml:"user,omitempty"`
	Password string         `koanf:"password" yaml:"password,omitempty"`
	Database string         `koanf:"database" yaml:"database,omitempty"`
	Options  map[string]any `koanf:"options" yaml:"options,omitempty"`
	Pool     Pool           `koanf:"pool" yaml:"pool,omitempty"`
}

// Pool holds the connection pool settings applied after opening.
// Zero values keep the database/sql defaults.
type Pool struct {
	MaxOpen     int           `koanf:"max_open" yaml:"max_open,omitempty"`
	MaxIdle     int           `koanf:"max_idle" yaml:"max_idle,omitempty"`
	MaxLifetime time.Duration `koanf:"max_lifetime" yaml:"max_lifetime,omitempty"`
	MaxIdleTime time.Duration `koanf:"max_idle_time" yaml:"max_idle_time,omitempty"`
}

func (p Pool) apply(db *sql.DB) {
	if p.MaxOpen > 0 {
		db.SetMaxOpenConns(p.MaxOpen)
	}
	if p.MaxIdle > 0 {
		db.SetMaxIdleConns(p.MaxIdle)
	}
	if p.MaxLifetime > 0 {
		db.SetConnMaxLifetime(p.MaxLifetime)
	}
	if p.MaxIdleTime > 0 {
		db.SetConnMaxIdleTime(p.MaxIdleTime)
	}
}

// Opener knows how to connect through one database/sql driver.
type Opener struct {
	// DriverName is the name the driver is registered with in database/sql.
	DriverName string
	// Dialect is the dialect spoken by the driver.
	Dialect string
	// DSN builds the data source name from a Source without DSN.
	DSN func(Source) (string, error)
}

var openers = struct {
	sync.RWMutex
	m map[string]Opener
}{m: make(map[string]Opener)}

// Register makes an opener available under name. It is meant to be
// called from the init function of driver packages.
func Register(name string, o Opener) {
	openers.Lock()
	defer openers.Unlock()
	if o.DriverName == "" {
		o.DriverName = name
	}
	openers.m[strings.ToLower(name)] = o
}

// Lookup returns the opener registered under name.
func Lookup(name string) (Opener, bool) {
	openers.RLock()
	defer openers.RUnlock()
	o, ok := openers.m[strings.ToLower(name)]
	return o, ok
}

// Drivers returns the names of the registered openers in sorted order.
func Drivers() []string {
	openers.RLock()
	defer openers.RUnlock()
	names := make([]string, 0, len(openers.m))
	for name := range openers.m {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ResolveDSN returns the driver name, dialect and data source name for src.
func ResolveDSN(src Source) (driverName, dialectName, dsn string, err error) {
	if src.Driver == "" {
		return "", "", "", fmt.Errorf("dialect/sql: source has no driver")
	}
	driverName, dialectName, dsn = src.Driver, src.Driver, src.DSN
	if o, ok := Lookup(src.Driver); ok {
		driverName = o.DriverName
		if o.Dialect != "" {
			dialectName = o.Dialect
		}
		if dsn == "" && o.DSN != nil {
			if dsn, err = o.DSN(src); err != nil {
				return "", "", "", fmt.Errorf("dialect/sql: building %s dsn: %w", src.Driver, err)
			}
		}
	}
	if src.Dialect != "" {
		dialectName = src.Dialect
	}
	if dsn == "" {
		return "", "", "", fmt.Errorf("dialect/sql: no dsn for driver %q", src.Driver)
	}
	return driverName, dialectName, dsn, nil
}

// OpenSource opens the database described by src.
func OpenSource(src Source) (*Driver, error) {
	driverName, dialectName, dsn, err := ResolveDSN(src)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	src.Pool.apply(db)
	return OpenDB(dialectName, db), nil
}

// DecodeOptions decodes the driver options of src into out, a pointer to
// a struct with mapstructure tags. String values are converted to the
// field types and durations are parsed. Unknown options are an error.
func DecodeOptions(src Source, out any) error {
	if len(src.Options) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(src.Options); err != nil {
		return fmt.Errorf("dialect/sql: %s options: %w", src.Driver, err)
	}
	return nil
}
