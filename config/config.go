// Package config loads the configuration of persist clients and tools.
//
// Values are layered, from lowest to highest precedence: defaults, the
// YAML config file, a .env file, PERSIST_ environment variables and
// command line flags. Nested keys in environment variables are separated
// by a double underscore:
//
//	PERSIST_DATABASE__DRIVER=postgres
//	PERSIST_DATABASE__POOL__MAX_OPEN=20
//	PERSIST_LOG__LEVEL=debug
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/syssam/persist/cache"
	"github.com/syssam/persist/client"
	"github.com/syssam/persist/dialect/sql"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "PERSIST_"

// DefaultFiles are the config files looked up when no path is given.
var DefaultFiles = []string{"persist.yaml", "persist.yml"}

// Config is the configuration of a persist client.
type Config struct {
	Database sql.Source `koanf:"database" yaml:"database"`
	Log      Log        `koanf:"log" yaml:"log"`
	Cache    Cache      `koanf:"cache" yaml:"cache"`
	Stats    bool       `koanf:"stats" yaml:"stats,omitempty"`
}

// Log configures the logger built by NewLogger.
type Log struct {
	// Level is one of debug, info, warn or error.
	Level string `koanf:"level" yaml:"level"`
	// Format is text or json.
	Format string `koanf:"format" yaml:"format"`
}

// Cache configures the entity caches of the client. Store names the
// second-level store; "memory" is the only one built in.
type Cache struct {
	Enabled bool          `koanf:"enabled" yaml:"enabled"`
	Store   string        `koanf:"store" yaml:"store,omitempty"`
	TTL     time.Duration `koanf:"ttl" yaml:"ttl,omitempty"`
}

var defaults = map[string]any{
	"database.driver": "sqlite",
	"log.level":       "info",
	"log.format":      "text",
	"cache.enabled":   false,
}

// FlagKeys maps command line flag names to config keys. Flags not listed
// map to their name with dashes replaced by underscores.
var FlagKeys = map[string]string{
	"driver":    "database.driver",
	"dialect":   "database.dialect",
	"dsn":       "database.dsn",
	"database":  "database.database",
	"log-level": "log.level",
	"config":    "",
	"env-file":  "",
}

// Loader loads a Config from its sources.
type Loader struct {
	// Path is the config file. When empty, the first of DefaultFiles that
	// exists is used, if any.
	Path string
	// EnvFile is the dotenv file loaded into the environment when it
	// exists. It defaults to ".env".
	EnvFile string
	// Flags are the parsed command line flags. Only changed flags apply.
	Flags *pflag.FlagSet
	// Environ is used instead of os.Environ when set.
	Environ func() []string
}

// Load loads the config from path and flags with the default loader.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	return Loader{Path: path, Flags: flags}.Load()
}

// File returns the config file the loader reads, or "".
func (l Loader) File() string {
	if l.Path != "" {
		return l.Path
	}
	for _, name := range DefaultFiles {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Load reads all sources and decodes them into a Config.
func (l Loader) Load() (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("config: loading defaults: %w", err)
	}
	if path := l.File(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}
	if err := l.loadEnvFile(); err != nil {
		return nil, err
	}
	if err := l.loadEnv(k); err != nil {
		return nil, err
	}
	if l.Flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(l.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			key, ok := FlagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			return key, posflag.FlagVal(l.Flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("config: loading flags: %w", err)
		}
	}
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (l Loader) loadEnvFile() error {
	name := l.EnvFile
	if name == "" {
		name = ".env"
	}
	if _, err := os.Stat(name); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(name); err != nil {
		return fmt.Errorf("config: loading %s: %w", name, err)
	}
	return nil
}

func (l Loader) loadEnv(k *koanf.Koanf) error {
	key := func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}
	if l.Environ == nil {
		if err := k.Load(env.Provider(EnvPrefix, ".", key), nil); err != nil {
			return fmt.Errorf("config: loading environment: %w", err)
		}
		return nil
	}
	values := make(map[string]any)
	for _, kv := range l.Environ() {
		name, v, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(name, EnvPrefix) {
			values[key(name)] = v
		}
	}
	if err := k.Load(confmap.Provider(values, "."), nil); err != nil {
		return fmt.Errorf("config: loading environment: %w", err)
	}
	return nil
}

// Validate reports configuration values no client could be opened with.
func (c *Config) Validate() error {
	if c.Database.Driver == "" {
		return errors.New("config: database.driver is required")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	switch c.Cache.Store {
	case "", "memory":
	default:
		return fmt.Errorf("config: unknown cache store %q", c.Cache.Store)
	}
	return nil
}

// ClientOptions returns the client options described by the config.
func (c *Config) ClientOptions(log *slog.Logger) []client.Option {
	opts := []client.Option{client.Log(log)}
	if strings.EqualFold(c.Log.Level, "debug") {
		opts = append(opts, client.Debug())
	}
	if c.Stats {
		opts = append(opts, client.Stats(sql.WithSlowQueryLog(log)))
	}
	switch {
	case !c.Cache.Enabled:
	case c.Cache.Store == "memory":
		opts = append(opts, client.CacheStore(cache.NewMemoryStore(), c.Cache.TTL))
	default:
		opts = append(opts, client.Cache())
	}
	return opts
}

// Open opens a client on the configured database.
func (c *Config) Open(log *slog.Logger, opts ...client.Option) (*client.Client, error) {
	return client.OpenSource(c.Database, append(c.ClientOptions(log), opts...)...)
}

// Write encodes cfg to w as YAML.
func Write(w io.Writer, cfg *Config) error {
	enc := yamlv3.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("config: encoding: %w", err)
	}
	return enc.Close()
}

// Save writes cfg to path as YAML. The file holds credentials and is
// created readable by the owner only.
func Save(path string, cfg *Config) error {
	var buf bytes.Buffer
	if err := Write(&buf, cfg); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("config: writing %s: %w", path, err)
	}
	return nil
}
