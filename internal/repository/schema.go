package repository

import (
	"context"
	"fmt"

	domrepo "github.com/hi-noikiy/redtrader/internal/domain/repository"
	"github.com/hi-noikiy/redtrader/pkg/sqldb"
)

// SchemaStatements lists every DDL statement for the store layout in the
// backend's dialect. The seconds table is included only when enabled.
func SchemaStatements(d sqldb.Dialect, secondsTable bool) []string {
	var stmts []string
	for _, tf := range domrepo.Timeframes {
		if tf == domrepo.TF1s && !secondsTable {
			continue
		}
		stmts = append(stmts, d.CandleTable(tf.Table())...)
	}
	for _, ch := range domrepo.TickChannels {
		stmts = append(stmts, d.TickTable(ch.Table())...)
	}
	return append(stmts, d.MetaTable()...)
}

// EnsureSchema creates any missing tables and indexes in its own transaction.
// It is idempotent and runs on every open.
func EnsureSchema(ctx context.Context, b sqldb.Backend, secondsTable bool) error {
	stmts := SchemaStatements(b.Dialect(), secondsTable)
	err := b.Transact(ctx, func(e sqldb.Executor) error {
		for _, stmt := range stmts {
			if err := e.Execute(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}
