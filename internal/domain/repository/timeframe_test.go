package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeframe(t *testing.T) {
	tests := []struct {
		in   string
		want Timeframe
		err  bool
	}{
		{"1", TF1m, false},
		{"60", TF60m, false},
		{"h", TF60m, false},
		{"d", TF1d, false},
		{"s", TF1s, false},
		{" 5 ", TF5m, false},
		{"2", "", true},
		{"", "", true},
		{"1m", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeframe(tt.in)
			if tt.err {
				assert.ErrorIs(t, err, ErrUnknownTimeframe)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeTimeframe(t *testing.T) {
	assert.Equal(t, TF1m, NormalizeTimeframe(""))
	assert.Equal(t, TF1m, NormalizeTimeframe("bogus"))
	assert.Equal(t, TF15m, NormalizeTimeframe("15"))
}

func TestTimeframeTablesAndWidths(t *testing.T) {
	assert.Equal(t, "candle_1", TF1m.Table())
	assert.Equal(t, "candle_60", TF60m.Table())
	assert.Equal(t, "candle_s", TF1s.Table())
	assert.Equal(t, "candle_m", TF1M.Table())
	assert.Equal(t, "candle_60", TFHour.Table())
	assert.Equal(t, TF60m, TFHour.Canonical())
	assert.Equal(t, int64(3600), TFHour.Seconds())

	assert.Equal(t, int64(300), TF5m.Seconds())
	assert.Equal(t, int64(86400), TF1d.Seconds())
	assert.Zero(t, TF1w.Seconds())
	assert.Zero(t, TF1M.Seconds())

	seen := map[string]bool{}
	for _, tf := range Timeframes {
		assert.True(t, IsValidTimeframe(tf))
		assert.False(t, seen[tf.Table()], "duplicate table %s", tf.Table())
		seen[tf.Table()] = true
	}
}

func TestTickChannel(t *testing.T) {
	assert.Equal(t, "tick_1", Tick1.Table())
	assert.Equal(t, "tick_4", Tick4.Table())
	assert.True(t, Tick3.Valid())
	assert.False(t, TickChannel(0).Valid())
	assert.False(t, TickChannel(5).Valid())
}
