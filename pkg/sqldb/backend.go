// Package sqldb is the storage backend layer: a small capability interface
// over database/sql with one implementation per deployment shape (embedded
// single-file, networked server) and one Dialect per SQL flavour.
package sqldb

import (
	"context"
	"errors"
	"time"
)

var (
	ErrMissingDatabase = errors.New("connection string has no database name")
	ErrBadDatabaseName = errors.New("invalid database name")
	ErrClosed          = errors.New("backend closed")
	ErrPendingLost     = errors.New("pending writes were discarded")
)

// Scanner is the row cursor handed to FetchAll callbacks.
type Scanner interface {
	Scan(dest ...any) error
}

// Executor runs statements. Queries use '?' placeholders; the dialect rebinds
// them when the driver expects another style.
type Executor interface {
	Execute(ctx context.Context, query string, args ...any) error
	ExecuteMany(ctx context.Context, query string, rows [][]any) error
	// FetchOne scans the first row into dest and reports whether a row existed.
	FetchOne(ctx context.Context, query string, args []any, dest ...any) (bool, error)
	FetchAll(ctx context.Context, query string, args []any, fn func(Scanner) error) error
}

// Backend owns one database handle for its lifetime.
//
// Mutations on transactional dialects join a lazily started transaction that
// stays open until Commit. Each mutation runs in a savepoint, so a failed one
// undoes only its own statements. If the pending transaction itself has to be
// dropped, the next Commit returns ErrPendingLost.
type Backend interface {
	Executor
	Dialect() Dialect
	// Transact commits pending work, then runs fn inside its own transaction.
	// Non-transactional dialects run fn directly.
	Transact(ctx context.Context, fn func(Executor) error) error
	Commit() error
	// Close discards uncommitted work and releases the handle.
	Close() error
}

// Options configure backend construction.
type Options struct {
	Init    bool
	Timeout time.Duration
}

type Option func(*Options)

// WithInit provisions missing resources (directory, database) on open.
func WithInit(init bool) Option {
	return func(o *Options) { o.Init = init }
}

// WithTimeout bounds connection establishment.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

func newOptions(opts []Option) *Options {
	o := &Options{Timeout: 10 * time.Second}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
