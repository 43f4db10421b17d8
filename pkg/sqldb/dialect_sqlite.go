package sqldb

import (
	"fmt"
	"time"
)

// SQLite is the embedded single-file dialect.
type SQLite struct{}

func (SQLite) Name() string               { return "sqlite" }
func (SQLite) Transactional() bool        { return true }
func (SQLite) Rebind(query string) string { return query }
func (SQLite) Quote(ident string) string  { return `"` + ident + `"` }

// SQLite has no databases beyond the file itself.
func (SQLite) DatabaseExists() string       { return "" }
func (SQLite) CreateDatabase(string) string { return "" }

func (d SQLite) CandleTable(table string) []string {
	create := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	"id" INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL UNIQUE,
	"ts" INTEGER DEFAULT(0) NOT NULL,
	"symbol" VARCHAR(16) NOT NULL,
	"open" DECIMAL(32, 16) DEFAULT(0),
	"high" DECIMAL(32, 16) DEFAULT(0),
	"low" DECIMAL(32, 16) DEFAULT(0),
	"close" DECIMAL(32, 16) DEFAULT(0),
	"volume" DECIMAL(32, 16) DEFAULT(0),
	"extra" TEXT,
	CONSTRAINT "tssym" UNIQUE (ts, symbol)
)`, d.Quote(table))
	return append([]string{create}, d.indexes(table)...)
}

func (d SQLite) TickTable(table string) []string {
	create := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	"id" INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL UNIQUE,
	"ts" INTEGER DEFAULT(0) NOT NULL,
	"symbol" VARCHAR(16) NOT NULL,
	"data" TEXT,
	CONSTRAINT "tssym" UNIQUE (ts, symbol)
)`, d.Quote(table))
	return append([]string{create}, d.indexes(table)...)
}

func (d SQLite) indexes(table string) []string {
	return []string{
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS "%s_1" ON %s (ts, symbol)`, table, d.Quote(table)),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS "%s_2" ON %s (symbol, ts)`, table, d.Quote(table)),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS "%s_3" ON %s (symbol, ts DESC)`, table, d.Quote(table)),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS "%s_4" ON %s (ts)`, table, d.Quote(table)),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS "%s_5" ON %s (symbol)`, table, d.Quote(table)),
	}
}

func (SQLite) MetaTable() []string {
	return []string{`CREATE TABLE IF NOT EXISTS "meta" (
	"name" VARCHAR(16) PRIMARY KEY COLLATE NOCASE NOT NULL UNIQUE,
	"value" TEXT,
	"ctime" DATETIME NOT NULL DEFAULT (datetime('now', 'localtime')),
	"mtime" DATETIME NOT NULL DEFAULT (datetime('now', 'localtime'))
)`}
}

func (SQLite) From(table string) string { return table }

func (SQLite) Upsert(table string, columns ...string) string {
	return insertInto("REPLACE INTO", table, columns)
}

func (SQLite) MetaWrite(name, value string, now time.Time) []Statement {
	return []Statement{
		{Query: "INSERT OR IGNORE INTO meta (name, value, ctime, mtime) VALUES (?, ?, ?, ?)", Args: []any{name, value, now, now}},
		{Query: "UPDATE meta SET value = ?, mtime = ? WHERE name = ?", Args: []any{value, now, name}},
	}
}
