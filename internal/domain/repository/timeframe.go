package repository

import (
	"errors"
	"fmt"
	"strings"
)

// Timeframe represents candle resolution buckets.
type Timeframe string

const (
	TF1m  Timeframe = "1"
	TF5m  Timeframe = "5"
	TF15m Timeframe = "15"
	TF30m Timeframe = "30"
	TF60m Timeframe = "60"
	TF1s  Timeframe = "s"
	TF1d  Timeframe = "d"
	TF1w  Timeframe = "w"
	TF1M  Timeframe = "m"

	// TFHour is accepted wherever a timeframe is and maps to TF60m.
	TFHour Timeframe = "h"
)

var (
	ErrUnknownTimeframe  = errors.New("unknown timeframe")
	ErrTimeframeDisabled = errors.New("timeframe table disabled")
	ErrUnknownChannel    = errors.New("unknown tick channel")
)

// Timeframes lists every candle table in schema order. The seconds table is
// last since it is only provisioned on request.
var Timeframes = []Timeframe{TF1m, TF5m, TF15m, TF30m, TF60m, TF1d, TF1w, TF1M, TF1s}

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	switch tf {
	case TF1m, TF5m, TF15m, TF30m, TF60m, TF1s, TF1d, TF1w, TF1M:
		return true
	default:
		return false
	}
}

// DefaultTimeframe returns the default timeframe.
func DefaultTimeframe() Timeframe { return TF1m }

// ParseTimeframe converts a raw identifier to a timeframe. "h" is accepted as
// an alias for the 60 minute table.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(strings.TrimSpace(s)).Canonical()
	if !IsValidTimeframe(tf) {
		return "", fmt.Errorf("%w: %q", ErrUnknownTimeframe, s)
	}
	return tf, nil
}

// NormalizeTimeframe converts raw string to a valid timeframe (or default).
func NormalizeTimeframe(s string) Timeframe {
	if s == "" {
		return DefaultTimeframe()
	}
	tf, err := ParseTimeframe(s)
	if err != nil {
		return DefaultTimeframe()
	}
	return tf
}

// Canonical resolves aliases.
func (tf Timeframe) Canonical() Timeframe {
	if tf == TFHour {
		return TF60m
	}
	return tf
}

// Table returns the candle table backing tf.
func (tf Timeframe) Table() string { return "candle_" + string(tf.Canonical()) }

// Seconds returns the bucket width. Week and month buckets are calendar
// aligned and report 0.
func (tf Timeframe) Seconds() int64 {
	switch tf.Canonical() {
	case TF1s:
		return 1
	case TF1m:
		return 60
	case TF5m:
		return 300
	case TF15m:
		return 900
	case TF30m:
		return 1800
	case TF60m:
		return 3600
	case TF1d:
		return 86400
	default:
		return 0
	}
}

func (tf Timeframe) String() string { return string(tf) }

// TickChannel selects one of the four tick tables.
type TickChannel int

const (
	Tick1 TickChannel = iota + 1
	Tick2
	Tick3
	Tick4
)

// TickChannels lists all tick channels.
var TickChannels = []TickChannel{Tick1, Tick2, Tick3, Tick4}

// Valid reports whether ch names an existing tick table.
func (ch TickChannel) Valid() bool { return ch >= Tick1 && ch <= Tick4 }

// Table returns the tick table backing ch.
func (ch TickChannel) Table() string { return fmt.Sprintf("tick_%d", int(ch)) }
