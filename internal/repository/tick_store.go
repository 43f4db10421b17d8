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

// TickStore implements domrepo.TickStore. Rows keep the same (symbol, ts)
// identity as candles, last write wins.
type TickStore struct {
	*base
}

var _ domrepo.TickStore = (*TickStore)(nil)

func (s *TickStore) Read(ctx context.Context, symbol string, ch domrepo.TickChannel, start, end int64, opts ...domrepo.ReadOption) ([]models.Tick, error) {
	table, err := s.tickTable(ch)
	if err != nil {
		return nil, err
	}
	o := domrepo.NewReadOptions(opts...)
	if start >= end || (o.HasLimit && o.Limit <= 0) {
		return []models.Tick{}, nil
	}

	begin := time.Now()
	q := tickSelect + s.b.Dialect().From(table) + " WHERE symbol = ? AND ts >= ? AND ts < ? ORDER BY ts"
	args := []any{symbol, start, end}
	if o.HasLimit {
		q += " LIMIT ?"
		args = append(args, o.Limit)
	}
	out := []models.Tick{}
	err = s.b.FetchAll(ctx, q, args, func(sc sqldb.Scanner) error {
		var d tickDest
		if err := sc.Scan(d.targets()...); err != nil {
			return fmt.Errorf("scan tick: %w", err)
		}
		out = append(out, s.codec.tick(&d))
		return nil
	})
	if err != nil {
		s.fail("read", table, err, applogger.String("symbol", symbol))
		return nil, fmt.Errorf("read ticks: %w", err)
	}
	s.done("read", table, begin)
	return out, nil
}

func (s *TickStore) Pick(ctx context.Context, symbol string, ch domrepo.TickChannel, pos int64) (*models.Tick, error) {
	table, err := s.tickTable(ch)
	if err != nil {
		return nil, err
	}
	q, args := pickQuery(tickSelect+s.b.Dialect().From(table), symbol, pos)

	var d tickDest
	ok, err := s.b.FetchOne(ctx, q, args, d.targets()...)
	if err != nil {
		s.fail("pick", table, err, applogger.String("symbol", symbol), applogger.Int64("pos", pos))
		return nil, fmt.Errorf("pick tick: %w", err)
	}
	if !ok {
		return nil, nil
	}
	t := s.codec.tick(&d)
	return &t, nil
}

func (s *TickStore) Write(ctx context.Context, symbol string, ch domrepo.TickChannel, ticks []models.Tick, opts ...domrepo.WriteOption) bool {
	if len(ticks) == 0 {
		return false
	}
	table, err := s.tickTable(ch)
	if err != nil {
		s.fail("write", fmt.Sprint(int(ch)), err)
		return false
	}
	begin := time.Now()
	rows := make([][]any, 0, len(ticks))
	for _, t := range ticks {
		row, rerr := s.codec.tickRow(symbol, t)
		if rerr != nil {
			err = rerr
			break
		}
		rows = append(rows, row)
	}
	if err == nil {
		err = s.b.ExecuteMany(ctx, s.b.Dialect().Upsert(table, tickColumns...), rows)
	}
	if err == nil {
		err = s.finish(domrepo.NewWriteOptions(opts...))
	}
	if err != nil {
		s.fail("write", table, err, applogger.String("symbol", symbol), applogger.Int("rows", len(ticks)))
		return false
	}
	s.metrics.RecordRowsWritten(table, len(rows))
	s.done("write", table, begin)
	return true
}

func (s *TickStore) Erase(ctx context.Context, symbol string, ch domrepo.TickChannel, start, end int64, opts ...domrepo.WriteOption) bool {
	table, err := s.tickTable(ch)
	if err != nil {
		s.fail("erase", fmt.Sprint(int(ch)), err)
		return false
	}
	return s.erase(ctx, table, symbol, true, start, end, domrepo.NewWriteOptions(opts...))
}

func (s *TickStore) Empty(ctx context.Context, symbol string, ch domrepo.TickChannel, opts ...domrepo.WriteOption) bool {
	table, err := s.tickTable(ch)
	if err != nil {
		s.fail("empty", fmt.Sprint(int(ch)), err)
		return false
	}
	return s.erase(ctx, table, symbol, false, 0, 0, domrepo.NewWriteOptions(opts...))
}

func (s *TickStore) ListSymbols(ctx context.Context, ch domrepo.TickChannel) ([]string, error) {
	table, err := s.tickTable(ch)
	if err != nil {
		return nil, err
	}
	return s.listSymbols(ctx, table)
}
