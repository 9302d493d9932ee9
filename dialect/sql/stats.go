package sql

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/syssam/persist/dialect"
)

// DefaultSlowThreshold is the threshold used by NewStatsDriver when
// WithSlowThreshold is not given.
const DefaultSlowThreshold = 100 * time.Millisecond

// QueryStats counts the statements executed through a StatsDriver.
// It is safe for concurrent use.
type QueryStats struct {
	queries   atomic.Int64
	execs     atomic.Int64
	errors    atomic.Int64
	slow      atomic.Int64
	txs       atomic.Int64
	rollbacks atomic.Int64
	elapsed   atomic.Int64
	longest   atomic.Int64
}

// Stats returns the current counters.
func (s *QueryStats) Stats() StatsSnapshot {
	return StatsSnapshot{
		TotalQueries:  s.queries.Load(),
		TotalExecs:    s.execs.Load(),
		Errors:        s.errors.Load(),
		SlowQueries:   s.slow.Load(),
		Transactions:  s.txs.Load(),
		Rollbacks:     s.rollbacks.Load(),
		TotalDuration: time.Duration(s.elapsed.Load()),
		MaxDuration:   time.Duration(s.longest.Load()),
	}
}

// Reset zeroes all counters.
func (s *QueryStats) Reset() {
	for _, c := range []*atomic.Int64{&s.queries, &s.execs, &s.errors, &s.slow, &s.txs, &s.rollbacks, &s.elapsed, &s.longest} {
		c.Store(0)
	}
}

func (s *QueryStats) observe(query bool, d time.Duration, err error) {
	if query {
		s.queries.Add(1)
	} else {
		s.execs.Add(1)
	}
	if err != nil {
		s.errors.Add(1)
	}
	s.elapsed.Add(int64(d))
	for {
		cur := s.longest.Load()
		if int64(d) <= cur || s.longest.CompareAndSwap(cur, int64(d)) {
			return
		}
	}
}

// StatsSnapshot is a copy of the counters of a QueryStats.
type StatsSnapshot struct {
	TotalQueries  int64
	TotalExecs    int64
	Errors        int64
	SlowQueries   int64
	Transactions  int64
	Rollbacks     int64
	TotalDuration time.Duration
	MaxDuration   time.Duration
}

// Statements returns the number of queries and execs.
func (s StatsSnapshot) Statements() int64 { return s.TotalQueries + s.TotalExecs }

// AvgQueryDuration returns the mean duration of a statement.
func (s StatsSnapshot) AvgQueryDuration() time.Duration {
	if n := s.Statements(); n > 0 {
		return s.TotalDuration / time.Duration(n)
	}
	return 0
}

func (s StatsSnapshot) String() string {
	return fmt.Sprintf("queries=%d execs=%d errors=%d slow=%d txs=%d rollbacks=%d avg=%s max=%s",
		s.TotalQueries, s.TotalExecs, s.Errors, s.SlowQueries, s.Transactions, s.Rollbacks,
		s.AvgQueryDuration(), s.MaxDuration)
}

// SlowQuery describes a statement that ran longer than the slow threshold.
type SlowQuery struct {
	Query    string
	Args     []any
	Duration time.Duration
	Err      error
	InTx     bool
}

// SlowQueryHook is called for every slow statement, after it completed.
type SlowQueryHook func(context.Context, SlowQuery)

// StatsDriver is a Driver collecting QueryStats.
type StatsDriver struct {
	*Driver
	stats     *QueryStats
	threshold atomic.Int64
	hooks     []SlowQueryHook
}

// StatsOption configures a StatsDriver.
type StatsOption func(*StatsDriver)

// WithSlowThreshold sets the duration above which a statement is slow.
// A negative threshold reports every statement.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsDriver) { s.threshold.Store(int64(d)) }
}

// WithSlowQueryHook adds a hook called for slow statements.
func WithSlowQueryHook(hook SlowQueryHook) StatsOption {
	return func(s *StatsDriver) { s.hooks = append(s.hooks, hook) }
}

// WithSlowQueryLog logs slow statements as warnings on logger. A nil
// logger uses slog.Default.
func WithSlowQueryLog(logger *slog.Logger) StatsOption {
	return WithSlowQueryHook(func(ctx context.Context, q SlowQuery) {
		l := logger
		if l == nil {
			l = slog.Default()
		}
		attrs := []any{"statement", q.Query, "args", q.Args, "duration", q.Duration}
		if q.InTx {
			attrs = append(attrs, "tx", true)
		}
		if q.Err != nil {
			attrs = append(attrs, "error", q.Err)
		}
		l.WarnContext(ctx, "slow query", attrs...)
	})
}

// NewStatsDriver decorates drv with statistics:
//
//	drv = sql.NewStatsDriver(drv, sql.WithSlowQueryLog(logger))
//	c := client.NewClient(client.Driver(drv))
//	...
//	fmt.Println(drv.QueryStats().Stats())
func NewStatsDriver(drv *Driver, opts ...StatsOption) *StatsDriver {
	s := &StatsDriver{Driver: drv, stats: &QueryStats{}}
	s.threshold.Store(int64(DefaultSlowThreshold))
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QueryStats returns the collected statistics.
func (d *StatsDriver) QueryStats() *QueryStats { return d.stats }

// SlowThreshold returns the slow statement threshold.
func (d *StatsDriver) SlowThreshold() time.Duration { return time.Duration(d.threshold.Load()) }

// SetSlowThreshold changes the slow statement threshold.
func (d *StatsDriver) SetSlowThreshold(t time.Duration) { d.threshold.Store(int64(t)) }

// Query runs a query and records it.
func (d *StatsDriver) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Query(ctx, query, args, v)
	d.record(ctx, true, false, query, args, time.Since(start), err)
	return err
}

// Exec runs a statement and records it.
func (d *StatsDriver) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Exec(ctx, query, args, v)
	d.record(ctx, false, false, query, args, time.Since(start), err)
	return err
}

// Tx begins a transaction whose statements are recorded as well.
func (d *StatsDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	d.stats.txs.Add(1)
	return &statsTx{Tx: tx, drv: d}, nil
}

func (d *StatsDriver) record(ctx context.Context, query, inTx bool, stmt string, args any, took time.Duration, err error) {
	d.stats.observe(query, took, err)
	if took <= d.SlowThreshold() {
		return
	}
	d.stats.slow.Add(1)
	if len(d.hooks) == 0 {
		return
	}
	argv, _ := values(args)
	q := SlowQuery{Query: stmt, Args: argv, Duration: took, Err: err, InTx: inTx}
	for _, h := range d.hooks {
		h(ctx, q)
	}
}

type statsTx struct {
	dialect.Tx
	drv *StatsDriver
}

func (tx *statsTx) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := tx.Tx.Query(ctx, query, args, v)
	tx.drv.record(ctx, true, true, query, args, time.Since(start), err)
	return err
}

func (tx *statsTx) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := tx.Tx.Exec(ctx, query, args, v)
	tx.drv.record(ctx, false, true, query, args, time.Since(start), err)
	return err
}

func (tx *statsTx) Rollback() error {
	tx.drv.stats.rollbacks.Add(1)
	return tx.Tx.Rollback()
}

var (
	_ dialect.Driver = (*StatsDriver)(nil)
	_ dialect.Tx     = (*statsTx)(nil)
)
