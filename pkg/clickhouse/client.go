package clickhouse

import (
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"

	"github.com/hi-noikiy/redtrader/pkg/sqldb"
)

// Connector opens ClickHouse handles for networked stores. Options apply on
// top of the values taken from the connection string.
type Connector struct {
	opts []Option
}

// NewConnector creates a sqldb.Connector for clickhouse:// locators.
func NewConnector(opts ...Option) *Connector {
	return &Connector{opts: opts}
}

func (c *Connector) Dialect() sqldb.Dialect { return Dialect{} }

// Open builds the DSN from loc. The admin handle targets the "default" database.
func (c *Connector) Open(loc sqldb.Locator, admin bool, timeout time.Duration) (*sql.DB, error) {
	db := loc.Database
	if admin {
		db = "default"
	}
	opts := []Option{
		WithHost(loc.Host),
		WithDatabase(db),
		WithTimeouts(timeout, 10*time.Second),
		// One pinned connection per store.
		WithMaxConnections(1, 1),
	}
	if loc.User != "" {
		opts = append(opts, WithCredentials(loc.User, loc.Password))
	}
	if loc.Port != 0 {
		opts = append(opts, WithPort(loc.Port))
	}
	if loc.Params.Get("protocol") == "http" {
		opts = append(opts, WithHTTP(true))
	}
	cfg := newConfig(append(opts, c.opts...))
	return openDB(cfg)
}

func newConfig(opts []Option) *Config {
	cfg := &Config{
		Port:            9000,
		Database:        "default",
		User:            "default",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     10 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func openDB(cfg *Config) (*sql.DB, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("host is required")
	}
	db, err := sql.Open("clickhouse", buildDSN(*cfg))
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

func buildDSN(cfg Config) string {
	scheme := "clickhouse://"
	if cfg.UseHTTP {
		scheme = "http://"
	}
	dsn := fmt.Sprintf("%s%s@%s:%d/%s",
		scheme, url.UserPassword(cfg.User, cfg.Password), cfg.Host, cfg.Port, cfg.Database)

	add := func(first bool, key string, val any) string {
		sep := "&"
		if first {
			sep = "?"
		}
		return fmt.Sprintf("%s%s=%v", sep, key, val)
	}

	first := true
	if cfg.DialTimeout > 0 {
		dsn += add(first, "dial_timeout", cfg.DialTimeout)
		first = false
	}
	if cfg.ReadTimeout > 0 {
		dsn += add(first, "read_timeout", cfg.ReadTimeout)
		first = false
	}
	if cfg.MaxExecTime > 0 {
		dsn += add(first, "max_execution_time", int(cfg.MaxExecTime.Seconds()))
		first = false
	}
	if cfg.AsyncInsert {
		dsn += add(first, "async_insert", 1)
		first = false
		if cfg.WaitForAsync {
			dsn += add(first, "wait_for_async_insert", 1)
		}
	}
	return dsn
}
