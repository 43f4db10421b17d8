package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domrepo "github.com/hi-noikiy/redtrader/internal/domain/repository"
	"github.com/hi-noikiy/redtrader/pkg/cache"
	pkgch "github.com/hi-noikiy/redtrader/pkg/clickhouse"
	applogger "github.com/hi-noikiy/redtrader/pkg/logger"
	"github.com/hi-noikiy/redtrader/pkg/sqldb"
)

var ErrUnsupportedScheme = errors.New("unsupported connection scheme")

// Options configure a Store.
type Options struct {
	Init         bool
	Verbose      bool
	Numeric      NumericMode
	Timeout      time.Duration
	SecondsTable bool
	Logger       *applogger.Logger
	Metrics      domrepo.Metrics
	Cache        cache.Service
	CacheTTL     time.Duration
	Clock        func() time.Time
	Connectors   map[string]sqldb.Connector
}

type Option func(*Options)

// WithInit creates missing directories, databases and tables on open.
func WithInit(init bool) Option {
	return func(o *Options) { o.Init = init }
}

// WithVerbose logs backend failures at error level instead of debug.
func WithVerbose(verbose bool) Option {
	return func(o *Options) { o.Verbose = verbose }
}

func WithNumericMode(m NumericMode) Option {
	return func(o *Options) { o.Numeric = m }
}

// WithTimeout bounds connection establishment.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

// WithSecondsTable provisions and enables the candle_s table.
func WithSecondsTable(enabled bool) Option {
	return func(o *Options) { o.SecondsTable = enabled }
}

func WithLogger(l *applogger.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

func WithMetrics(m domrepo.Metrics) Option {
	return func(o *Options) { o.Metrics = m }
}

// WithCache enables read-through caching of metadata entries.
func WithCache(c cache.Service, ttl time.Duration) Option {
	return func(o *Options) {
		o.Cache = c
		o.CacheTTL = ttl
	}
}

// WithClock overrides the metadata timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *Options) { o.Clock = now }
}

// WithConnector registers the driver factory used for scheme.
func WithConnector(scheme string, c sqldb.Connector) Option {
	return func(o *Options) { o.Connectors[strings.ToLower(scheme)] = c }
}

// DefaultConnectors maps the networked schemes to their drivers.
func DefaultConnectors() map[string]sqldb.Connector {
	return map[string]sqldb.Connector{
		"mysql":      sqldb.MySQLConnector{},
		"postgres":   sqldb.PostgresConnector{},
		"postgresql": sqldb.PostgresConnector{},
		"clickhouse": pkgch.NewConnector(),
	}
}

func newOptions(opts []Option) *Options {
	o := &Options{
		Timeout:    10 * time.Second,
		CacheTTL:   time.Minute,
		Clock:      time.Now,
		Connectors: DefaultConnectors(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.Logger == nil {
		o.Logger = applogger.Nop()
	}
	if o.Metrics == nil {
		o.Metrics = nopMetrics{}
	}
	return o
}

// Store bundles the candle, tick and metadata stores over one backend.
type Store struct {
	backend sqldb.Backend
	candles *CandleStore
	ticks   *TickStore
	meta    *MetaStore
	l       *applogger.Logger
}

// Open connects to uri and prepares the schema. Embedded databases always get
// their tables ensured; networked ones only with WithInit.
func Open(ctx context.Context, uri string, opts ...Option) (*Store, error) {
	o := newOptions(opts)
	loc, err := sqldb.ParseLocator(uri)
	if err != nil {
		return nil, err
	}

	bopts := []sqldb.Option{sqldb.WithInit(o.Init), sqldb.WithTimeout(o.Timeout)}
	var b sqldb.Backend
	if loc.Embedded() {
		b, err = sqldb.OpenEmbedded(ctx, loc.Path, bopts...)
	} else {
		c, ok := o.Connectors[loc.Scheme]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, loc.Scheme)
		}
		b, err = sqldb.OpenNetworked(ctx, loc, c, bopts...)
	}
	if err != nil {
		return nil, err
	}

	if loc.Embedded() || o.Init {
		if err := EnsureSchema(ctx, b, o.SecondsTable); err != nil {
			_ = b.Close()
			return nil, err
		}
	}

	o.Logger.Info("store opened",
		applogger.String("scheme", loc.Scheme),
		applogger.String("dialect", b.Dialect().Name()),
		applogger.Bool("init", o.Init),
	)
	return newStore(b, o), nil
}

// New wraps an already opened backend without touching the schema.
func New(b sqldb.Backend, opts ...Option) *Store {
	return newStore(b, newOptions(opts))
}

func newStore(b sqldb.Backend, o *Options) *Store {
	base := &base{
		b:       b,
		l:       o.Logger,
		metrics: o.Metrics,
		verbose: o.Verbose,
		seconds: o.SecondsTable,
	}
	base.codec = codec{
		mode: o.Numeric,
		onBadPayload: func(raw string, err error) {
			base.l.Debug("undecodable payload", applogger.String("raw", raw), applogger.Error(err))
		},
	}
	return &Store{
		backend: b,
		candles: &CandleStore{base: base},
		ticks:   &TickStore{base: base},
		meta:    &MetaStore{base: base, cache: o.Cache, ttl: o.CacheTTL, now: o.Clock},
		l:       o.Logger,
	}
}

func (s *Store) Candles() *CandleStore  { return s.candles }
func (s *Store) Ticks() *TickStore      { return s.ticks }
func (s *Store) Meta() *MetaStore       { return s.meta }
func (s *Store) Backend() sqldb.Backend { return s.backend }
func (s *Store) Dialect() sqldb.Dialect { return s.backend.Dialect() }

// Commit flushes writes made with NoCommit. It returns sqldb.ErrPendingLost
// when the pending transaction had to be dropped since the last Commit.
//
// Conditional writes (CandleStore.CompareAndWrite) run in their own
// transaction and commit any pending NoCommit writes before they start.
func (s *Store) Commit() error {
	if err := s.backend.Commit(); err != nil {
		s.l.Error("store commit failed", applogger.Error(err))
		return err
	}
	return nil
}

// Close discards uncommitted writes and releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// base carries what the three stores share.
type base struct {
	b       sqldb.Backend
	codec   codec
	l       *applogger.Logger
	metrics domrepo.Metrics
	verbose bool
	seconds bool
}

// fail reports a failed operation. Diagnostics are surfaced at error level
// only in verbose mode.
func (s *base) fail(op, table string, err error, fields ...applogger.Field) {
	s.metrics.RecordStoreOp(op, table, false)
	s.metrics.RecordError("store_" + op)
	fields = append([]applogger.Field{
		applogger.String("op", op),
		applogger.String("table", table),
		applogger.Error(err),
	}, fields...)
	if s.verbose {
		s.l.Error("store operation failed", fields...)
		return
	}
	s.l.Debug("store operation failed", fields...)
}

func (s *base) done(op, table string, start time.Time) {
	s.metrics.RecordStoreOp(op, table, true)
	s.metrics.RecordLatency("store_"+op, time.Since(start).Seconds())
}

// finish commits when the write options ask for it.
func (s *base) finish(o domrepo.WriteOptions) error {
	if !o.Commit {
		return nil
	}
	return s.b.Commit()
}

func (s *base) candleTable(tf domrepo.Timeframe) (string, error) {
	tf = tf.Canonical()
	if !domrepo.IsValidTimeframe(tf) {
		return "", fmt.Errorf("%w: %q", domrepo.ErrUnknownTimeframe, string(tf))
	}
	if tf == domrepo.TF1s && !s.seconds {
		return "", domrepo.ErrTimeframeDisabled
	}
	return tf.Table(), nil
}

func (s *base) tickTable(ch domrepo.TickChannel) (string, error) {
	if !ch.Valid() {
		return "", fmt.Errorf("%w: %d", domrepo.ErrUnknownChannel, int(ch))
	}
	return ch.Table(), nil
}

// listSymbols returns the distinct symbols stored in table.
func (s *base) listSymbols(ctx context.Context, table string) ([]string, error) {
	q := "SELECT DISTINCT symbol FROM " + s.b.Dialect().From(table) + " ORDER BY symbol"
	out := []string{}
	err := s.b.FetchAll(ctx, q, nil, func(sc sqldb.Scanner) error {
		var sym string
		if err := sc.Scan(&sym); err != nil {
			return err
		}
		out = append(out, sym)
		return nil
	})
	if err != nil {
		s.fail("list_symbols", table, err)
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	return out, nil
}

// erase deletes symbol rows in [start, end), or all of them when bounded is false.
func (s *base) erase(ctx context.Context, table, symbol string, bounded bool, start, end int64, o domrepo.WriteOptions) bool {
	begin := time.Now()
	op := "erase"
	q := "DELETE FROM " + table + " WHERE symbol = ?"
	args := []any{symbol}
	if bounded {
		q += " AND ts >= ? AND ts < ?"
		args = append(args, start, end)
	} else {
		op = "empty"
	}
	if err := s.b.Execute(ctx, q, args...); err != nil {
		s.fail(op, table, err, applogger.String("symbol", symbol))
		return false
	}
	if err := s.finish(o); err != nil {
		s.fail(op, table, err, applogger.String("symbol", symbol))
		return false
	}
	s.done(op, table, begin)
	return true
}

type nopMetrics struct{}

func (nopMetrics) RecordStoreOp(string, string, bool) {}
func (nopMetrics) RecordRowsWritten(string, int)      {}
func (nopMetrics) RecordCompiled(string, string, int) {}
func (nopMetrics) RecordError(string)                 {}
func (nopMetrics) RecordLatency(string, float64)      {}
