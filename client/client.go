// Package client opens a database and serves entity repositories over it.
//
//	c, err := client.Open("sqlite", "file:app.db", client.Cache())
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//	users, err := client.For[User](c)
//	if err != nil {
//	    return err
//	}
//	u, err := users.Read(ctx, 42)
//
// Reads of cacheable entities go through the cache of the client; writes
// are applied by the cascade engine, which invalidates the caches of every
// entity type it wrote.
package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/syssam/persist"
	"github.com/syssam/persist/cache"
	"github.com/syssam/persist/cascade"
	"github.com/syssam/persist/dialect"
	"github.com/syssam/persist/dialect/sql"
	"github.com/syssam/persist/runner"
)

// config is the configuration shared by a client and its transactions.
type config struct {
	driver    dialect.Driver
	log       *slog.Logger
	debug     bool
	statsOn   bool
	statsOpts []sql.StatsOption
	cache     bool
	store     persist.Cache
	ttl       time.Duration
}

// Option configures a client.
type Option func(*config)

// Driver sets the driver of the client.
func Driver(drv dialect.Driver) Option {
	return func(c *config) { c.driver = drv }
}

// Log sets the logger of the client and its components.
func Log(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.log = l
		}
	}
}

// Debug logs every statement sent to the driver at debug level.
func Debug() Option {
	return func(c *config) { c.debug = true }
}

// Stats collects query statistics on the driver, which must be a
// *sql.Driver. Read them with Client.QueryStats.
func Stats(opts ...sql.StatsOption) Option {
	return func(c *config) {
		c.statsOn = true
		c.statsOpts = append(c.statsOpts, opts...)
	}
}

// Cache enables the cache for entities whose descriptor is cacheable.
func Cache() Option {
	return func(c *config) { c.cache = true }
}

// CacheStore enables the cache and sets its second-level store. Entries
// written to the store expire after ttl; zero means no expiry.
func CacheStore(store persist.Cache, ttl time.Duration) Option {
	return func(c *config) {
		c.cache = true
		c.store = store
		c.ttl = ttl
	}
}

// Client is the entry point to a database.
type Client struct {
	config
	runner *runner.Runner
	engine *cascade.Engine
	caches *cache.Manager
	stats  *sql.QueryStats
	tx     *Tx // set on transactional clients
}

// NewClient creates a new client configured with the given options.
func NewClient(opts ...Option) *Client {
	cfg := config{log: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}
	c := &Client{config: cfg}
	if cfg.statsOn {
		if drv, ok := cfg.driver.(*sql.Driver); ok {
			sd := sql.NewStatsDriver(drv, cfg.statsOpts...)
			c.driver, c.stats = sd, sd.QueryStats()
		} else {
			cfg.log.Warn("query statistics need a *sql.Driver", "driver", cfg.driver)
		}
	}
	if cfg.debug {
		c.driver = sql.NewDebugDriver(c.driver, sql.DebugWithLogger(cfg.log))
	}
	mopts := []cache.Option{cache.WithLogger(cfg.log)}
	if cfg.store != nil {
		mopts = append(mopts, cache.WithStore(cfg.store), cache.WithTTL(cfg.ttl))
	}
	if !cfg.cache {
		mopts = append(mopts, cache.Disabled())
	}
	c.caches = cache.NewManager(mopts...)
	c.runner = runner.ForDriver(c.driver, runner.WithLogger(cfg.log))
	c.engine = cascade.NewEngine(c.runner, c.caches)
	return c
}

// Open opens a database through the opener registered under driverName
// and returns a client for it.
func Open(driverName, dataSourceName string, opts ...Option) (*Client, error) {
	drv, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, err
	}
	return NewClient(append([]Option{Driver(drv)}, opts...)...), nil
}

// OpenSource is like Open, with the database described by src.
func OpenSource(src sql.Source, opts ...Option) (*Client, error) {
	drv, err := sql.OpenSource(src)
	if err != nil {
		return nil, err
	}
	return NewClient(append([]Option{Driver(drv)}, opts...)...), nil
}

// Close closes the database. It fails on transactional clients.
func (c *Client) Close() error {
	if c.tx != nil {
		return errors.New("client: cannot close a transactional client")
	}
	return c.driver.Close()
}

// Dialect returns the dialect name of the driver.
func (c *Client) Dialect() string { return c.driver.Dialect() }

// Runner returns the runner executing the statements of the client.
func (c *Client) Runner() *runner.Runner { return c.runner }

// Engine returns the cascade engine applying the writes of the client.
func (c *Client) Engine() *cascade.Engine { return c.engine }

// Caches returns the cache manager of the client.
func (c *Client) Caches() *cache.Manager { return c.caches }

// QueryStats returns the statistics collected when the client was created
// with the Stats option, or nil.
func (c *Client) QueryStats() *sql.QueryStats { return c.stats }

// Ping checks that the database answers a trivial query.
func (c *Client) Ping(ctx context.Context) error {
	row, err := c.runner.Simple().Read(ctx, "SELECT 1", persist.EmptyArguments())
	if err != nil {
		return err
	}
	return row.Close()
}

// cached reports whether reads of a descriptor with the given cacheable
// flag go through the cache. Transactional reads never do.
func (c *Client) cached(cacheable bool) bool {
	return c.tx == nil && c.caches.Enabled(cacheable)
}

// wrote records a write made through the client.
func (c *Client) wrote() {
	if c.tx != nil {
		c.tx.wrote.Store(true)
	}
}
