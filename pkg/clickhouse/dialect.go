package clickhouse

import (
	"fmt"
	"strings"
	"time"

	"github.com/hi-noikiy/redtrader/pkg/sqldb"
)

// Dialect targets ReplacingMergeTree tables keyed by (symbol, ts). Duplicate
// keys collapse to the latest insert; reads use FINAL so they never observe
// the pre-merge duplicates.
type Dialect struct{}

func (Dialect) Name() string               { return "clickhouse" }
func (Dialect) Transactional() bool        { return false }
func (Dialect) Rebind(query string) string { return query }
func (Dialect) Quote(ident string) string  { return "`" + ident + "`" }

func (Dialect) DatabaseExists() string {
	return "SELECT 1 FROM system.databases WHERE name = ?"
}

func (d Dialect) CreateDatabase(name string) string {
	return "CREATE DATABASE IF NOT EXISTS " + d.Quote(name)
}

func (d Dialect) CandleTable(table string) []string {
	return []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n"+
		"`id` UUID DEFAULT generateUUIDv4(),\n"+
		"`ts` Int64,\n"+
		"`symbol` String,\n"+
		"`open` Decimal(32, 16) DEFAULT 0,\n"+
		"`high` Decimal(32, 16) DEFAULT 0,\n"+
		"`low` Decimal(32, 16) DEFAULT 0,\n"+
		"`close` Decimal(32, 16) DEFAULT 0,\n"+
		"`volume` Decimal(32, 16) DEFAULT 0,\n"+
		"`extra` Nullable(String)\n"+
		") ENGINE = ReplacingMergeTree ORDER BY (symbol, ts)", d.Quote(table))}
}

func (d Dialect) TickTable(table string) []string {
	return []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n"+
		"`id` UUID DEFAULT generateUUIDv4(),\n"+
		"`ts` Int64,\n"+
		"`symbol` String,\n"+
		"`data` Nullable(String)\n"+
		") ENGINE = ReplacingMergeTree ORDER BY (symbol, ts)", d.Quote(table))}
}

func (Dialect) MetaTable() []string {
	return []string{"CREATE TABLE IF NOT EXISTS `meta` (\n" +
		"`name` String,\n" +
		"`value` Nullable(String),\n" +
		"`ctime` DateTime DEFAULT now(),\n" +
		"`mtime` DateTime DEFAULT now()\n" +
		") ENGINE = ReplacingMergeTree(mtime) ORDER BY name"}
}

func (Dialect) From(table string) string { return table + " FINAL" }

// Upsert is a plain insert; the table engine replaces older rows on merge.
func (Dialect) Upsert(table string, columns ...string) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table,
		strings.Join(columns, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", "))
}

// MetaWrite carries ctime over from the existing row in a single insert.
func (Dialect) MetaWrite(name, value string, now time.Time) []sqldb.Statement {
	return []sqldb.Statement{{
		Query: "INSERT INTO meta (name, value, ctime, mtime) " +
			"SELECT ?, ?, ifNull((SELECT minOrNull(ctime) FROM meta WHERE name = ?), ?), ?",
		Args: []any{name, value, name, now, now},
	}}
}
