package sqldb

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Statement is a query with its bound arguments.
type Statement struct {
	Query string
	Args  []any
}

// Dialect renders the SQL that differs between engines. Table names passed in
// come from a closed set and are never user input.
type Dialect interface {
	Name() string
	// Transactional is false for engines without multi-statement transactions.
	Transactional() bool
	Rebind(query string) string
	Quote(ident string) string
	// DatabaseExists returns a query taking the database name as its only argument.
	DatabaseExists() string
	CreateDatabase(name string) string
	CandleTable(table string) []string
	TickTable(table string) []string
	MetaTable() []string
	// From renders a table reference for reads.
	From(table string) string
	// Upsert renders an insert that replaces any row with the same (ts, symbol).
	Upsert(table string, columns ...string) string
	// MetaWrite inserts name if absent, then sets value and mtime.
	MetaWrite(name, value string, now time.Time) []Statement
}

var dbNameRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidateDatabaseName rejects names that cannot be used unquoted.
func ValidateDatabaseName(name string) error {
	if name == "" {
		return ErrMissingDatabase
	}
	if !dbNameRe.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrBadDatabaseName, name)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func insertInto(verb, table string, columns []string) string {
	return fmt.Sprintf("%s %s (%s) VALUES (%s)", verb, table, strings.Join(columns, ", "), placeholders(len(columns)))
}

// rebindDollar rewrites '?' placeholders to $1, $2, ...
func rebindDollar(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func isKeyColumn(c string) bool { return c == "ts" || c == "symbol" }
