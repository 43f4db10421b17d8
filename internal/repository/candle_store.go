package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/hi-noikiy/redtrader/internal/domain/models"
	domrepo "github.com/hi-noikiy/redtrader/internal/domain/repository"
	applogger "github.com/hi-noikiy/redtrader/pkg/logger"
	"github.com/hi-noikiy/redtrader/pkg/sqldb"
)

// CandleStore implements domrepo.CandleStore over a sqldb.Backend.
type CandleStore struct {
	*base
}

var _ domrepo.CandleStore = (*CandleStore)(nil)

// Read returns candles with start <= ts < end in ascending order.
func (s *CandleStore) Read(ctx context.Context, symbol string, tf domrepo.Timeframe, start, end int64, opts ...domrepo.ReadOption) ([]models.Candle, error) {
	table, err := s.candleTable(tf)
	if err != nil {
		return nil, err
	}
	o := domrepo.NewReadOptions(opts...)
	if start >= end || (o.HasLimit && o.Limit <= 0) {
		return []models.Candle{}, nil
	}

	begin := time.Now()
	q := candleSelect + s.b.Dialect().From(table) + " WHERE symbol = ? AND ts >= ? AND ts < ? ORDER BY ts"
	args := []any{symbol, start, end}
	if o.HasLimit {
		q += " LIMIT ?"
		args = append(args, o.Limit)
	}
	out, err := s.scanCandles(ctx, q, args)
	if err != nil {
		s.fail("read", table, err, applogger.String("symbol", symbol))
		return nil, fmt.Errorf("read candles: %w", err)
	}
	s.done("read", table, begin)
	return out, nil
}

// Pick returns the latest candle (PickLatest), the earliest (any other
// negative position) or the latest at or before pos. It returns nil when
// nothing matches.
func (s *CandleStore) Pick(ctx context.Context, symbol string, tf domrepo.Timeframe, pos int64) (*models.Candle, error) {
	table, err := s.candleTable(tf)
	if err != nil {
		return nil, err
	}
	q, args := pickQuery(candleSelect+s.b.Dialect().From(table), symbol, pos)

	var d candleDest
	ok, err := s.b.FetchOne(ctx, q, args, d.targets()...)
	if err != nil {
		s.fail("pick", table, err, applogger.String("symbol", symbol), applogger.Int64("pos", pos))
		return nil, fmt.Errorf("pick candle: %w", err)
	}
	if !ok {
		return nil, nil
	}
	c := s.codec.candle(&d)
	return &c, nil
}

func pickQuery(sel, symbol string, pos int64) (string, []any) {
	switch {
	case pos == domrepo.PickLatest:
		return sel + " WHERE symbol = ? ORDER BY ts DESC LIMIT 1", []any{symbol}
	case pos < 0:
		return sel + " WHERE symbol = ? ORDER BY ts LIMIT 1", []any{symbol}
	default:
		return sel + " WHERE symbol = ? AND ts <= ? ORDER BY ts DESC LIMIT 1", []any{symbol, pos}
	}
}

// Write upserts candles keyed by (symbol, ts). An empty batch reports false
// without touching storage.
func (s *CandleStore) Write(ctx context.Context, symbol string, tf domrepo.Timeframe, candles []models.Candle, opts ...domrepo.WriteOption) bool {
	if len(candles) == 0 {
		return false
	}
	table, err := s.candleTable(tf)
	if err != nil {
		s.fail("write", string(tf), err)
		return false
	}
	begin := time.Now()
	rows, err := s.candleRows(symbol, candles)
	if err == nil {
		err = s.b.ExecuteMany(ctx, s.b.Dialect().Upsert(table, candleColumns...), rows)
	}
	if err == nil {
		err = s.finish(domrepo.NewWriteOptions(opts...))
	}
	if err != nil {
		s.fail("write", table, err, applogger.String("symbol", symbol), applogger.Int("rows", len(candles)))
		return false
	}
	s.metrics.RecordRowsWritten(table, len(rows))
	s.done("write", table, begin)
	return true
}

// CompareAndWrite upserts candles in one transaction after checking that the
// latest stored ts for symbol still equals tail (NoTail: no rows at all).
func (s *CandleStore) CompareAndWrite(ctx context.Context, symbol string, tf domrepo.Timeframe, tail int64, candles []models.Candle) error {
	table, err := s.candleTable(tf)
	if err != nil {
		return err
	}
	rows, err := s.candleRows(symbol, candles)
	if err != nil {
		return err
	}
	d := s.b.Dialect()
	latest := "SELECT ts FROM " + d.From(table) + " WHERE symbol = ? ORDER BY ts DESC LIMIT 1"

	begin := time.Now()
	err = s.b.Transact(ctx, func(e sqldb.Executor) error {
		var cur int64
		ok, err := e.FetchOne(ctx, latest, []any{symbol}, &cur)
		if err != nil {
			return err
		}
		if (!ok && tail != domrepo.NoTail) || (ok && cur != tail) {
			return domrepo.ErrTailMoved
		}
		return e.ExecuteMany(ctx, d.Upsert(table, candleColumns...), rows)
	})
	if err != nil {
		s.fail("compare_and_write", table, err, applogger.String("symbol", symbol))
		return fmt.Errorf("compare and write %s: %w", table, err)
	}
	s.metrics.RecordRowsWritten(table, len(rows))
	s.done("compare_and_write", table, begin)
	return nil
}

// Erase deletes candles with start <= ts < end.
func (s *CandleStore) Erase(ctx context.Context, symbol string, tf domrepo.Timeframe, start, end int64, opts ...domrepo.WriteOption) bool {
	table, err := s.candleTable(tf)
	if err != nil {
		s.fail("erase", string(tf), err)
		return false
	}
	return s.erase(ctx, table, symbol, true, start, end, domrepo.NewWriteOptions(opts...))
}

// Empty deletes every candle of symbol in tf.
func (s *CandleStore) Empty(ctx context.Context, symbol string, tf domrepo.Timeframe, opts ...domrepo.WriteOption) bool {
	table, err := s.candleTable(tf)
	if err != nil {
		s.fail("empty", string(tf), err)
		return false
	}
	return s.erase(ctx, table, symbol, false, 0, 0, domrepo.NewWriteOptions(opts...))
}

func (s *CandleStore) ListSymbols(ctx context.Context, tf domrepo.Timeframe) ([]string, error) {
	table, err := s.candleTable(tf)
	if err != nil {
		return nil, err
	}
	return s.listSymbols(ctx, table)
}

func (s *CandleStore) candleRows(symbol string, candles []models.Candle) ([][]any, error) {
	rows := make([][]any, 0, len(candles))
	for _, c := range candles {
		row, err := s.codec.candleRow(symbol, c)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *CandleStore) scanCandles(ctx context.Context, q string, args []any) ([]models.Candle, error) {
	out := []models.Candle{}
	err := s.b.FetchAll(ctx, q, args, func(sc sqldb.Scanner) error {
		var d candleDest
		if err := sc.Scan(d.targets()...); err != nil {
			return fmt.Errorf("scan candle: %w", err)
		}
		out = append(out, s.codec.candle(&d))
		return nil
	})
	return out, err
}
