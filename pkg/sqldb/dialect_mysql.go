package sqldb

import (
	"fmt"
	"time"
)

// MySQL stores candles and ticks in MyISAM tables and metadata in InnoDB.
// MyISAM ignores transactions, so candle batches are not atomic there.
type MySQL struct{}

func (MySQL) Name() string               { return "mysql" }
func (MySQL) Transactional() bool        { return true }
func (MySQL) Rebind(query string) string { return query }
func (MySQL) Quote(ident string) string  { return "`" + ident + "`" }

func (MySQL) DatabaseExists() string {
	return "SELECT 1 FROM information_schema.SCHEMATA WHERE SCHEMA_NAME = ?"
}

func (d MySQL) CreateDatabase(name string) string {
	return fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s DEFAULT CHARSET=utf8", d.Quote(name))
}

func (d MySQL) CandleTable(table string) []string {
	return []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n"+
		"`id` INT PRIMARY KEY NOT NULL AUTO_INCREMENT,\n"+
		"`ts` INT UNSIGNED DEFAULT 0,\n"+
		"`symbol` VARCHAR(16) NOT NULL,\n"+
		"`open` DECIMAL(32, 16) DEFAULT 0,\n"+
		"`high` DECIMAL(32, 16) DEFAULT 0,\n"+
		"`low` DECIMAL(32, 16) DEFAULT 0,\n"+
		"`close` DECIMAL(32, 16) DEFAULT 0,\n"+
		"`volume` DECIMAL(32, 16) DEFAULT 0,\n"+
		"`extra` TEXT,\n"+
		"UNIQUE KEY `tssym` (`ts`, `symbol`),\n"+
		"UNIQUE KEY `symts` (`symbol`, `ts`),\n"+
		"KEY (`ts`),\n"+
		"KEY (`symbol`)\n"+
		") ENGINE=MyISAM DEFAULT CHARSET=utf8", d.Quote(table))}
}

func (d MySQL) TickTable(table string) []string {
	return []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n"+
		"`id` INT PRIMARY KEY NOT NULL AUTO_INCREMENT,\n"+
		"`ts` INT UNSIGNED DEFAULT 0,\n"+
		"`symbol` VARCHAR(16) NOT NULL,\n"+
		"`data` TEXT,\n"+
		"UNIQUE KEY `tssym` (`ts`, `symbol`),\n"+
		"UNIQUE KEY `symts` (`symbol`, `ts`),\n"+
		"KEY (`ts`),\n"+
		"KEY (`symbol`)\n"+
		") ENGINE=MyISAM DEFAULT CHARSET=utf8", d.Quote(table))}
}

// MetaTable uses CURRENT_TIMESTAMP defaults; zero dates are rejected under
// strict sql_mode.
func (MySQL) MetaTable() []string {
	return []string{"CREATE TABLE IF NOT EXISTS `meta` (\n" +
		"`name` VARCHAR(16) PRIMARY KEY NOT NULL UNIQUE,\n" +
		"`value` TEXT,\n" +
		"`ctime` DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,\n" +
		"`mtime` DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP\n" +
		") ENGINE=InnoDB DEFAULT CHARSET=utf8"}
}

func (MySQL) From(table string) string { return table }

func (MySQL) Upsert(table string, columns ...string) string {
	return insertInto("REPLACE INTO", table, columns)
}

func (MySQL) MetaWrite(name, value string, now time.Time) []Statement {
	return []Statement{
		{Query: "INSERT IGNORE INTO meta (name, value, ctime, mtime) VALUES (?, ?, ?, ?)", Args: []any{name, value, now, now}},
		{Query: "UPDATE meta SET value = ?, mtime = ? WHERE name = ?", Args: []any{value, now, name}},
	}
}
