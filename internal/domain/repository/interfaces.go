package repository

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/hi-noikiy/redtrader/internal/domain/models"
)

// Positions understood by Pick. Any non-negative position selects the latest
// row at or before that timestamp.
const (
	PickLatest   int64 = -1
	PickEarliest int64 = -2
)

// NoTail is passed to CompareAndWrite when the destination is expected to be empty.
const NoTail int64 = math.MinInt64

// ErrTailMoved reports that a conditional write lost a race with another writer.
var ErrTailMoved = errors.New("destination tail moved")

// CandleStore persists candles per (symbol, timeframe).
type CandleStore interface {
	Read(ctx context.Context, symbol string, tf Timeframe, start, end int64, opts ...ReadOption) ([]models.Candle, error)
	Pick(ctx context.Context, symbol string, tf Timeframe, pos int64) (*models.Candle, error)
	Write(ctx context.Context, symbol string, tf Timeframe, candles []models.Candle, opts ...WriteOption) bool
	Erase(ctx context.Context, symbol string, tf Timeframe, start, end int64, opts ...WriteOption) bool
	Empty(ctx context.Context, symbol string, tf Timeframe, opts ...WriteOption) bool
	ListSymbols(ctx context.Context, tf Timeframe) ([]string, error)
	// CompareAndWrite upserts candles only if the latest stored timestamp is
	// still tail, returning ErrTailMoved otherwise.
	CompareAndWrite(ctx context.Context, symbol string, tf Timeframe, tail int64, candles []models.Candle) error
}

// TickStore persists raw payloads on the four tick channels.
type TickStore interface {
	Read(ctx context.Context, symbol string, ch TickChannel, start, end int64, opts ...ReadOption) ([]models.Tick, error)
	Pick(ctx context.Context, symbol string, ch TickChannel, pos int64) (*models.Tick, error)
	Write(ctx context.Context, symbol string, ch TickChannel, ticks []models.Tick, opts ...WriteOption) bool
	Erase(ctx context.Context, symbol string, ch TickChannel, start, end int64, opts ...WriteOption) bool
	Empty(ctx context.Context, symbol string, ch TickChannel, opts ...WriteOption) bool
	ListSymbols(ctx context.Context, ch TickChannel) ([]string, error)
}

// MetaStore is a small case-insensitive key/value table.
type MetaStore interface {
	Read(ctx context.Context, name string) (*models.MetaEntry, error)
	Write(ctx context.Context, name string, value any, opts ...WriteOption) bool
}

// CandlePublisher receives candles produced by the aggregator.
type CandlePublisher interface {
	PublishCandles(ctx context.Context, symbol string, tf Timeframe, candles []models.Candle) error
	Close() error
}

// Locker guards a named critical section across processes.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

type Metrics interface {
	RecordStoreOp(op, table string, ok bool)
	RecordRowsWritten(table string, n int)
	RecordCompiled(src, dst string, n int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
