package repository

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hi-noikiy/redtrader/internal/domain/models"
)

// NumericMode selects how candle numbers read from storage are normalized.
type NumericMode int

const (
	// NumericNative keeps whatever the driver returned, e.g. trailing zeros
	// from fixed-point columns or float-shaped values from SQLite.
	NumericNative NumericMode = iota
	// NumericFloat snaps values to float64 precision.
	NumericFloat
	// NumericDecimal canonicalizes values to their shortest exact form.
	NumericDecimal
)

// ParseNumericMode maps a config value to a mode.
func ParseNumericMode(s string) (NumericMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "native":
		return NumericNative, nil
	case "float":
		return NumericFloat, nil
	case "decimal":
		return NumericDecimal, nil
	default:
		return 0, fmt.Errorf("unknown numeric mode %q", s)
	}
}

func (m NumericMode) String() string {
	switch m {
	case NumericFloat:
		return "float"
	case NumericDecimal:
		return "decimal"
	default:
		return "native"
	}
}

func (m NumericMode) apply(d decimal.Decimal) decimal.Decimal {
	switch m {
	case NumericFloat:
		return decimal.NewFromFloat(d.InexactFloat64())
	case NumericDecimal:
		return decimal.RequireFromString(d.String())
	default:
		return d
	}
}

var (
	candleColumns = []string{"symbol", "ts", "open", "high", "low", "close", "volume", "extra"}
	tickColumns   = []string{"symbol", "ts", "data"}
)

const (
	candleSelect = "SELECT ts, open, high, low, close, volume, extra FROM "
	tickSelect   = "SELECT ts, data FROM "
)

// codec converts between domain records and storage rows.
type codec struct {
	mode NumericMode
	// onBadPayload observes undecodable extra/data text.
	onBadPayload func(raw string, err error)
}

// encodePayload renders a payload as JSON text; nil becomes SQL NULL.
func encodePayload(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return string(b), nil
}

// decodePayload parses stored JSON text. Invalid text yields nil and is
// reported to onBadPayload, it never fails the read.
func (c codec) decodePayload(raw *string) any {
	if raw == nil {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(*raw), &v); err != nil {
		if c.onBadPayload != nil {
			c.onBadPayload(*raw, err)
		}
		return nil
	}
	return v
}

func (c codec) candleRow(symbol string, cd models.Candle) ([]any, error) {
	extra, err := encodePayload(cd.Extra)
	if err != nil {
		return nil, fmt.Errorf("candle %d: %w", cd.TS, err)
	}
	return []any{symbol, cd.TS, cd.Open, cd.High, cd.Low, cd.Close, cd.Volume, extra}, nil
}

func (c codec) tickRow(symbol string, t models.Tick) ([]any, error) {
	data, err := encodePayload(t.Data)
	if err != nil {
		return nil, fmt.Errorf("tick %d: %w", t.TS, err)
	}
	return []any{symbol, t.TS, data}, nil
}

// candleDest holds scan targets for one candleSelect row.
type candleDest struct {
	c     models.Candle
	extra *string
}

func (d *candleDest) targets() []any {
	return []any{&d.c.TS, &d.c.Open, &d.c.High, &d.c.Low, &d.c.Close, &d.c.Volume, &d.extra}
}

func (c codec) candle(d *candleDest) models.Candle {
	out := d.c
	out.Open = c.mode.apply(out.Open)
	out.High = c.mode.apply(out.High)
	out.Low = c.mode.apply(out.Low)
	out.Close = c.mode.apply(out.Close)
	out.Volume = c.mode.apply(out.Volume)
	out.Extra = c.decodePayload(d.extra)
	return out
}

type tickDest struct {
	t    models.Tick
	data *string
}

func (d *tickDest) targets() []any { return []any{&d.t.TS, &d.data} }

func (c codec) tick(d *tickDest) models.Tick {
	out := d.t
	out.Data = c.decodePayload(d.data)
	return out
}

// dbTime scans DATETIME columns from any of the supported drivers: native
// time values, text in the common layouts, or epoch seconds.
type dbTime struct {
	time.Time
}

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = v
		return nil
	case int64:
		t.Time = time.Unix(v, 0).UTC()
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	default:
		return fmt.Errorf("scan time: unsupported type %T", src)
	}
}

func (t *dbTime) parse(s string) error {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		t.Time = time.Unix(secs, 0).UTC()
		return nil
	}
	return fmt.Errorf("scan time: unrecognized value %q", s)
}
