package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// session is the Backend shared by the embedded and networked flavours: one
// pinned connection plus the pending deferred-commit transaction.
type session struct {
	mu      sync.Mutex
	db      *sql.DB
	conn    *sql.Conn
	tx      *sql.Tx
	dialect Dialect
	// lost is set when the pending transaction had to be dropped; the next
	// Commit reports it.
	lost    error
}

// savepoint scopes one mutation inside the pending transaction.
const savepoint = "redtrader_write"

func newSession(ctx context.Context, db *sql.DB, d Dialect) (*session, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &session{db: db, conn: conn, dialect: d}, nil
}

func (s *session) Dialect() Dialect { return s.dialect }

// reader returns the handle reads go through: the pending transaction when
// one is open so uncommitted writes stay visible.
func (s *session) reader() (executor, error) {
	if s.conn == nil {
		return executor{}, ErrClosed
	}
	if s.tx != nil {
		return executor{q: s.tx, dialect: s.dialect}, nil
	}
	return executor{q: s.conn, conn: s.conn, dialect: s.dialect}, nil
}

func (s *session) writer(ctx context.Context) (executor, error) {
	if s.conn == nil {
		return executor{}, ErrClosed
	}
	if s.tx == nil && s.dialect.Transactional() {
		// The pending transaction outlives the call that opens it.
		tx, err := s.conn.BeginTx(context.WithoutCancel(ctx), nil)
		if err != nil {
			return executor{}, fmt.Errorf("begin: %w", err)
		}
		s.tx = tx
	}
	return s.reader()
}

func (s *session) abort() {
	if s.tx != nil {
		_ = s.tx.Rollback()
		s.tx = nil
	}
}

// drop discards the pending transaction and remembers why.
func (s *session) drop(err error) {
	s.abort()
	s.lost = err
}

// mutate runs fn against the pending transaction inside a savepoint, so a
// failure undoes only fn's own statements.
func (s *session) mutate(ctx context.Context, fn func(executor) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e, err := s.writer(ctx)
	if err != nil {
		return err
	}
	if s.tx == nil {
		return fn(e)
	}
	if _, err := s.tx.ExecContext(ctx, "SAVEPOINT "+savepoint); err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}
	bg := context.WithoutCancel(ctx)
	if err := fn(e); err != nil {
		if _, rerr := s.tx.ExecContext(bg, "ROLLBACK TO SAVEPOINT "+savepoint); rerr != nil {
			s.drop(rerr)
			return errors.Join(err, rerr)
		}
		if _, rerr := s.tx.ExecContext(bg, "RELEASE SAVEPOINT "+savepoint); rerr != nil {
			s.drop(rerr)
		}
		return err
	}
	if _, err := s.tx.ExecContext(bg, "RELEASE SAVEPOINT "+savepoint); err != nil {
		s.drop(err)
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

func (s *session) Execute(ctx context.Context, query string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutate(ctx, func(e executor) error {
		return e.Execute(ctx, query, args...)
	})
}

func (s *session) ExecuteMany(ctx context.Context, query string, rows [][]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutate(ctx, func(e executor) error {
		return e.ExecuteMany(ctx, query, rows)
	})
}

func (s *session) FetchOne(ctx context.Context, query string, args []any, dest ...any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.reader()
	if err != nil {
		return false, err
	}
	return e.FetchOne(ctx, query, args, dest...)
}

func (s *session) FetchAll(ctx context.Context, query string, args []any, fn func(Scanner) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.reader()
	if err != nil {
		return err
	}
	return e.FetchAll(ctx, query, args, fn)
}

func (s *session) Transact(ctx context.Context, fn func(Executor) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ErrClosed
	}
	if err := s.commit(); err != nil {
		return err
	}
	if !s.dialect.Transactional() {
		return fn(executor{q: s.conn, conn: s.conn, dialect: s.dialect})
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(executor{q: tx, dialect: s.dialect}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *session) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit()
}

func (s *session) commit() error {
	if s.lost != nil {
		err := fmt.Errorf("%w: %w", ErrPendingLost, s.lost)
		s.lost = nil
		return err
	}
	if s.tx == nil {
		return nil
	}
	err := s.tx.Commit()
	s.tx = nil
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	s.abort()
	s.lost = nil
	err := errors.Join(s.conn.Close(), s.db.Close())
	s.conn = nil
	return err
}

// executor binds Executor to one handle without locking.
type executor struct {
	q       querier
	conn    *sql.Conn
	dialect Dialect
}

func (e executor) Execute(ctx context.Context, query string, args ...any) error {
	if _, err := e.q.ExecContext(ctx, e.dialect.Rebind(query), args...); err != nil {
		return fmt.Errorf("execute: %w", err)
	}
	return nil
}

func (e executor) ExecuteMany(ctx context.Context, query string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	query = e.dialect.Rebind(query)
	// Engines without transactions still batch through a driver-level scope.
	if !e.dialect.Transactional() && e.conn != nil {
		return batch(ctx, e.conn, query, rows)
	}
	return execPrepared(ctx, e.q, query, rows)
}

func execPrepared(ctx context.Context, q querier, query string, rows [][]any) error {
	stmt, err := q.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()
	for i, args := range rows {
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("execute row %d: %w", i, err)
		}
	}
	return nil
}

func batch(ctx context.Context, conn *sql.Conn, query string, rows [][]any) error {
	scope, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	if err := execPrepared(ctx, scope, query, rows); err != nil {
		_ = scope.Rollback()
		return err
	}
	if err := scope.Commit(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

func (e executor) FetchOne(ctx context.Context, query string, args []any, dest ...any) (bool, error) {
	err := e.q.QueryRowContext(ctx, e.dialect.Rebind(query), args...).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("fetch one: %w", err)
	}
	return true, nil
}

func (e executor) FetchAll(ctx context.Context, query string, args []any, fn func(Scanner) error) error {
	rows, err := e.q.QueryContext(ctx, e.dialect.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows: %w", err)
	}
	return nil
}
