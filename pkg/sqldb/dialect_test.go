package sqldb

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRebindDollar(t *testing.T) {
	assert.Equal(t, "SELECT 1", rebindDollar("SELECT 1"))
	assert.Equal(t,
		"SELECT ts FROM candle_1 WHERE symbol = $1 AND ts >= $2 AND ts < $3",
		rebindDollar("SELECT ts FROM candle_1 WHERE symbol = ? AND ts >= ? AND ts < ?"))
}

func TestUpsert(t *testing.T) {
	cols := []string{"symbol", "ts", "open", "close"}

	assert.Equal(t,
		"REPLACE INTO candle_1 (symbol, ts, open, close) VALUES (?, ?, ?, ?)",
		SQLite{}.Upsert("candle_1", cols...))
	assert.Equal(t,
		"REPLACE INTO tick_2 (symbol, ts, data) VALUES (?, ?, ?)",
		MySQL{}.Upsert("tick_2", "symbol", "ts", "data"))
	assert.Equal(t,
		"INSERT INTO candle_1 (symbol, ts, open, close) VALUES (?, ?, ?, ?) "+
			"ON CONFLICT (ts, symbol) DO UPDATE SET open = EXCLUDED.open, close = EXCLUDED.close",
		Postgres{}.Upsert("candle_1", cols...))
	assert.Equal(t,
		"INSERT INTO tick_1 (symbol, ts) VALUES (?, ?) ON CONFLICT (ts, symbol) DO NOTHING",
		Postgres{}.Upsert("tick_1", "symbol", "ts"))
}

func TestSchemaStatements(t *testing.T) {
	for _, d := range []Dialect{SQLite{}, MySQL{}, Postgres{}} {
		t.Run(d.Name(), func(t *testing.T) {
			for _, stmts := range [][]string{d.CandleTable("candle_5"), d.TickTable("tick_3"), d.MetaTable()} {
				assert.NotEmpty(t, stmts)
				for _, s := range stmts {
					assert.Contains(t, s, "IF NOT EXISTS")
				}
			}
			assert.Contains(t, d.CandleTable("candle_5")[0], "(32, 16)")
		})
	}

	mysql := MySQL{}
	assert.Contains(t, mysql.CandleTable("candle_1")[0], "ENGINE=MyISAM")
	assert.Contains(t, mysql.TickTable("tick_1")[0], "ENGINE=MyISAM")
	assert.Contains(t, mysql.MetaTable()[0], "ENGINE=InnoDB")

	sqlite := SQLite{}
	assert.Len(t, sqlite.CandleTable("candle_1"), 6)
	assert.Contains(t, sqlite.MetaTable()[0], "COLLATE NOCASE")
	assert.True(t, strings.HasPrefix(MySQL{}.CreateDatabase("market"), "CREATE DATABASE IF NOT EXISTS `market`"))
}

func TestMetaWrite(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	for _, d := range []Dialect{SQLite{}, MySQL{}, Postgres{}} {
		stmts := d.MetaWrite("cursor", `"42"`, now)
		assert.Len(t, stmts, 2, d.Name())
		assert.Equal(t, []any{"cursor", `"42"`, now, now}, stmts[0].Args)
		assert.Equal(t, []any{`"42"`, now, "cursor"}, stmts[1].Args)
	}
}

func TestValidateDatabaseName(t *testing.T) {
	assert.NoError(t, ValidateDatabaseName("CandleDB_2"))
	assert.ErrorIs(t, ValidateDatabaseName(""), ErrMissingDatabase)
	assert.ErrorIs(t, ValidateDatabaseName("a;drop"), ErrBadDatabaseName)
}
