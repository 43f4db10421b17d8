package sqldb

import (
	"fmt"
	"strings"
	"time"
)

// Postgres renders upserts as INSERT ... ON CONFLICT.
type Postgres struct{}

func (Postgres) Name() string               { return "postgres" }
func (Postgres) Transactional() bool        { return true }
func (Postgres) Rebind(query string) string { return rebindDollar(query) }
func (Postgres) Quote(ident string) string  { return `"` + ident + `"` }

func (Postgres) DatabaseExists() string {
	return "SELECT 1 FROM pg_database WHERE datname = ?"
}

// CreateDatabase has no IF NOT EXISTS form; callers check DatabaseExists first.
func (d Postgres) CreateDatabase(name string) string {
	return "CREATE DATABASE " + d.Quote(name)
}

func (d Postgres) CandleTable(table string) []string {
	create := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	"id" BIGSERIAL PRIMARY KEY,
	"ts" BIGINT NOT NULL DEFAULT 0,
	"symbol" VARCHAR(16) NOT NULL,
	"open" NUMERIC(32, 16) DEFAULT 0,
	"high" NUMERIC(32, 16) DEFAULT 0,
	"low" NUMERIC(32, 16) DEFAULT 0,
	"close" NUMERIC(32, 16) DEFAULT 0,
	"volume" NUMERIC(32, 16) DEFAULT 0,
	"extra" TEXT,
	CONSTRAINT "%s_tssym" UNIQUE ("ts", "symbol")
)`, d.Quote(table), table)
	return append([]string{create}, d.indexes(table)...)
}

func (d Postgres) TickTable(table string) []string {
	create := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	"id" BIGSERIAL PRIMARY KEY,
	"ts" BIGINT NOT NULL DEFAULT 0,
	"symbol" VARCHAR(16) NOT NULL,
	"data" TEXT,
	CONSTRAINT "%s_tssym" UNIQUE ("ts", "symbol")
)`, d.Quote(table), table)
	return append([]string{create}, d.indexes(table)...)
}

func (d Postgres) indexes(table string) []string {
	return []string{
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS "%s_2" ON %s ("symbol", "ts")`, table, d.Quote(table)),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS "%s_3" ON %s ("symbol", "ts" DESC)`, table, d.Quote(table)),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS "%s_4" ON %s ("ts")`, table, d.Quote(table)),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS "%s_5" ON %s ("symbol")`, table, d.Quote(table)),
	}
}

func (Postgres) MetaTable() []string {
	return []string{`CREATE TABLE IF NOT EXISTS "meta" (
	"name" VARCHAR(16) PRIMARY KEY,
	"value" TEXT,
	"ctime" TIMESTAMP NOT NULL DEFAULT now(),
	"mtime" TIMESTAMP NOT NULL DEFAULT now()
)`}
}

func (Postgres) From(table string) string { return table }

func (Postgres) Upsert(table string, columns ...string) string {
	var set []string
	for _, c := range columns {
		if isKeyColumn(c) {
			continue
		}
		set = append(set, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}
	q := insertInto("INSERT INTO", table, columns) + " ON CONFLICT (ts, symbol) DO "
	if len(set) == 0 {
		return q + "NOTHING"
	}
	return q + "UPDATE SET " + strings.Join(set, ", ")
}

func (Postgres) MetaWrite(name, value string, now time.Time) []Statement {
	return []Statement{
		{Query: "INSERT INTO meta (name, value, ctime, mtime) VALUES (?, ?, ?, ?) ON CONFLICT (name) DO NOTHING", Args: []any{name, value, now, now}},
		{Query: "UPDATE meta SET value = ?, mtime = ? WHERE name = ?", Args: []any{value, now, name}},
	}
}
