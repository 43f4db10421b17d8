package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Connector is the driver factory behind a networked backend. It is passed in
// by the caller so drivers and test doubles can be swapped per scheme.
type Connector interface {
	Dialect() Dialect
	// Open returns a handle for loc. With admin set, the handle must not select
	// loc.Database so that it can be created.
	Open(loc Locator, admin bool, timeout time.Duration) (*sql.DB, error)
}

// Networked is a database server reached through a Connector.
type Networked struct {
	*session
	loc Locator
}

// OpenNetworked connects to loc.Database. With WithInit the database is
// created first when missing.
func OpenNetworked(ctx context.Context, loc Locator, c Connector, opts ...Option) (*Networked, error) {
	o := newOptions(opts)
	if err := ValidateDatabaseName(loc.Database); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, o.Timeout)
	defer cancel()

	if o.Init {
		if err := ensureDatabase(ctx, loc, c, o.Timeout); err != nil {
			return nil, err
		}
	}

	db, err := c.Open(loc, false, o.Timeout)
	if err != nil {
		return nil, fmt.Errorf("%s open: %w", c.Dialect().Name(), err)
	}
	s, err := newSession(ctx, db, c.Dialect())
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s %s: %w", c.Dialect().Name(), loc.Addr(), err)
	}
	return &Networked{session: s, loc: loc}, nil
}

// Locator returns the connection parameters the backend was opened with.
func (n *Networked) Locator() Locator { return n.loc }

func ensureDatabase(ctx context.Context, loc Locator, c Connector, timeout time.Duration) error {
	d := c.Dialect()
	db, err := c.Open(loc, true, timeout)
	if err != nil {
		return fmt.Errorf("%s open: %w", d.Name(), err)
	}
	defer db.Close()

	var one int
	err = db.QueryRowContext(ctx, d.Rebind(d.DatabaseExists()), loc.Database).Scan(&one)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("check database %s: %w", loc.Database, err)
	}
	if _, err := db.ExecContext(ctx, d.CreateDatabase(loc.Database)); err != nil {
		return fmt.Errorf("create database %s: %w", loc.Database, err)
	}
	return nil
}
