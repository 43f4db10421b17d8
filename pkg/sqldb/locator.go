package sqldb

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// MemoryPath selects a private in-memory embedded database.
const MemoryPath = ":memory:"

// Locator is a parsed connection string.
type Locator struct {
	Scheme   string
	User     string
	Password string
	Host     string
	Port     int
	Database string
	// Path is set for embedded databases only.
	Path   string
	Params url.Values
}

// Embedded reports whether the locator names a local database file.
func (l Locator) Embedded() bool { return l.Scheme == "sqlite" }

// Addr returns host:port, or host alone when no port was given.
func (l Locator) Addr() string {
	if l.Port == 0 {
		return l.Host
	}
	return fmt.Sprintf("%s:%d", l.Host, l.Port)
}

// ParseLocator accepts "sqlite://path", a bare filesystem path, ":memory:" or
// "scheme://[user[:password]@]host[:port]/database[?params]". A networked
// locator without a database name fails with ErrMissingDatabase.
func ParseLocator(raw string) (Locator, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Locator{}, fmt.Errorf("empty connection string")
	}
	if raw == MemoryPath {
		return Locator{Scheme: "sqlite", Path: MemoryPath}, nil
	}
	if strings.HasPrefix(raw, "sqlite://") {
		return Locator{Scheme: "sqlite", Path: strings.TrimPrefix(raw, "sqlite://")}, nil
	}
	if !strings.Contains(raw, "://") {
		return Locator{Scheme: "sqlite", Path: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Locator{}, fmt.Errorf("parse connection string: %w", err)
	}
	loc := Locator{
		Scheme: strings.ToLower(u.Scheme),
		Host:   u.Hostname(),
		Params: u.Query(),
	}
	if u.User != nil {
		loc.User = u.User.Username()
		loc.Password, _ = u.User.Password()
	}
	if loc.Host == "" {
		loc.Host = "localhost"
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return Locator{}, fmt.Errorf("parse port %q: %w", p, err)
		}
		loc.Port = port
	}
	loc.Database = strings.Trim(u.Path, "/")
	if err := ValidateDatabaseName(loc.Database); err != nil {
		return Locator{}, err
	}
	return loc, nil
}

// ExpandPath resolves a leading "~" and makes p absolute. The in-memory
// marker is returned unchanged.
func ExpandPath(p string) (string, error) {
	if p == MemoryPath {
		return p, nil
	}
	if p == "~" || strings.HasPrefix(p, "~/") || strings.HasPrefix(p, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home: %w", err)
		}
		p = filepath.Join(home, p[1:])
	}
	return filepath.Abs(p)
}
