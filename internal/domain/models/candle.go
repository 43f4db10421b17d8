package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one OHLCV bar. TS is the bucket start in epoch seconds.
// Extra carries an optional JSON-serializable payload.
type Candle struct {
	TS     int64
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal
	Extra  any
}

// NewCandle builds a candle from float values.
func NewCandle(ts int64, open, high, low, close, volume float64) Candle {
	return Candle{
		TS:     ts,
		Open:   decimal.NewFromFloat(open),
		High:   decimal.NewFromFloat(high),
		Low:    decimal.NewFromFloat(low),
		Close:  decimal.NewFromFloat(close),
		Volume: decimal.NewFromFloat(volume),
	}
}

// Tick is a raw payload recorded at TS on one of the tick channels.
type Tick struct {
	TS   int64
	Data any
}

// MetaEntry is a metadata value with its bookkeeping timestamps.
type MetaEntry struct {
	Name       string
	Value      any
	CreatedAt  time.Time
	ModifiedAt time.Time
}
