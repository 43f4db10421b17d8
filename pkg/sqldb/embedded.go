package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Embedded is a single-file SQLite database. Transactions take the write lock
// on BEGIN so concurrent writers serialize instead of failing on upgrade.
type Embedded struct {
	*session
	path string
}

// OpenEmbedded opens (and creates) the database at path. With WithInit the
// parent directory is created first.
func OpenEmbedded(ctx context.Context, path string, opts ...Option) (*Embedded, error) {
	o := newOptions(opts)
	path, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}
	if o.Init && path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", embeddedDSN(path, o))
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(ctx, o.Timeout)
	defer cancel()
	s, err := newSession(ctx, db, SQLite{})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite %s: %w", path, err)
	}
	return &Embedded{session: s, path: path}, nil
}

// Path returns the resolved database path.
func (e *Embedded) Path() string { return e.path }

func embeddedDSN(path string, o *Options) string {
	q := url.Values{}
	q.Set("_txlock", "immediate")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", o.Timeout.Milliseconds()))
	if path == MemoryPath {
		return "file::memory:?" + q.Encode()
	}
	q.Add("_pragma", "journal_mode(WAL)")
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path), RawQuery: q.Encode()}
	return u.String()
}
