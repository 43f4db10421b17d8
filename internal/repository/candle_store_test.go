package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hi-noikiy/redtrader/internal/domain/models"
	domrepo "github.com/hi-noikiy/redtrader/internal/domain/repository"
)

func assertCandle(t *testing.T, want, got models.Candle) {
	t.Helper()
	assert.Equal(t, want.TS, got.TS)
	assert.True(t, want.Open.Equal(got.Open), "open %s != %s", want.Open, got.Open)
	assert.True(t, want.High.Equal(got.High), "high %s != %s", want.High, got.High)
	assert.True(t, want.Low.Equal(got.Low), "low %s != %s", want.Low, got.Low)
	assert.True(t, want.Close.Equal(got.Close), "close %s != %s", want.Close, got.Close)
	assert.True(t, want.Volume.Equal(got.Volume), "volume %s != %s", want.Volume, got.Volume)
}

func minuteCandles(from int64, n int) []models.Candle {
	out := make([]models.Candle, 0, n)
	for i := 0; i < n; i++ {
		p := float64(100 + i)
		out = append(out, models.NewCandle(from+int64(i)*60, p, p+2, p-1, p+1, 10))
	}
	return out
}

func TestCandleWriteRead(t *testing.T) {
	ctx := context.Background()
	m := newRecordingMetrics()
	st := newTestStore(t, WithMetrics(m))
	cs := st.Candles()

	in := minuteCandles(1_700_000_040, 5)
	in[0].Extra = map[string]any{"trades": 12, "vwap": "101.25"}
	require.True(t, cs.Write(ctx, "BTCUSDT", domrepo.TF1m, in))
	assert.Equal(t, 5, m.rows["candle_1"])

	got, err := cs.Read(ctx, "BTCUSDT", domrepo.TF1m, in[0].TS, in[4].TS+60)
	require.NoError(t, err)
	require.Len(t, got, 5)
	for i := range in {
		assertCandle(t, in[i], got[i])
	}
	assert.Equal(t, map[string]any{"trades": 12.0, "vwap": "101.25"}, got[0].Extra)
	assert.Nil(t, got[1].Extra)

	// end is exclusive
	got, err = cs.Read(ctx, "BTCUSDT", domrepo.TF1m, in[0].TS, in[2].TS)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = cs.Read(ctx, "BTCUSDT", domrepo.TF1m, 0, 1<<40, domrepo.WithLimit(3))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, in[2].TS, got[2].TS)
}

func TestCandleReadDegenerateRanges(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	cs := st.Candles()
	require.True(t, cs.Write(ctx, "BTC", domrepo.TF1m, minuteCandles(60, 3)))

	got, err := cs.Read(ctx, "BTC", domrepo.TF1m, 120, 120)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	got, err = cs.Read(ctx, "BTC", domrepo.TF1m, 180, 60)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = cs.Read(ctx, "BTC", domrepo.TF1m, 0, 1000, domrepo.WithLimit(0))
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = cs.Read(ctx, "BTC", domrepo.TF1m, 0, 1000, domrepo.WithLimit(-4))
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = cs.Read(ctx, "BTC", domrepo.Timeframe("2"), 0, 1000)
	assert.ErrorIs(t, err, domrepo.ErrUnknownTimeframe)
}

func TestCandleWriteReplacesSameTimestamp(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	cs := st.Candles()

	require.True(t, cs.Write(ctx, "BTC", domrepo.TF5m, []models.Candle{models.NewCandle(300, 1, 2, 0.5, 1.5, 10)}))
	again := models.NewCandle(300, 1, 3, 0.25, 2.75, 42)
	again.Extra = []any{"late"}
	require.True(t, cs.Write(ctx, "BTC", domrepo.TF5m, []models.Candle{again}))

	got, err := cs.Read(ctx, "BTC", domrepo.TF5m, 0, 1000)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assertCandle(t, again, got[0])
	assert.Equal(t, []any{"late"}, got[0].Extra)
}

func TestCandleWriteEmptyBatch(t *testing.T) {
	st := newTestStore(t)
	assert.False(t, st.Candles().Write(context.Background(), "BTC", domrepo.TF1m, nil))
	assert.False(t, st.Candles().Write(context.Background(), "BTC", domrepo.TF1m, []models.Candle{}))
}

func TestCandleWriteKeepsPrecision(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	c := models.Candle{
		TS:     60,
		Open:   decimal.RequireFromString("0.00012345"),
		High:   decimal.RequireFromString("0.00012400"),
		Low:    decimal.RequireFromString("0.00012300"),
		Close:  decimal.RequireFromString("0.00012399"),
		Volume: decimal.RequireFromString("1250000"),
	}
	require.True(t, st.Candles().Write(ctx, "SHIBUSDT", domrepo.TF1m, []models.Candle{c}))

	got, err := st.Candles().Pick(ctx, "SHIBUSDT", domrepo.TF1m, domrepo.PickLatest)
	require.NoError(t, err)
	require.NotNil(t, got)
	assertCandle(t, c, *got)
	assert.Equal(t, "0.000124", got.High.String())
}

func TestCandlePick(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	cs := st.Candles()

	none, err := cs.Pick(ctx, "BTC", domrepo.TF1m, domrepo.PickLatest)
	require.NoError(t, err)
	assert.Nil(t, none)

	require.True(t, cs.Write(ctx, "BTC", domrepo.TF1m, minuteCandles(600, 4)))

	tests := []struct {
		name string
		pos  int64
		want int64
		nil  bool
	}{
		{name: "latest", pos: domrepo.PickLatest, want: 780},
		{name: "earliest", pos: domrepo.PickEarliest, want: 600},
		{name: "any negative is earliest", pos: -99, want: 600},
		{name: "exact", pos: 660, want: 660},
		{name: "between rows", pos: 719, want: 660},
		{name: "after last", pos: 10_000, want: 780},
		{name: "before first", pos: 599, nil: true},
		{name: "zero", pos: 0, nil: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cs.Pick(ctx, "BTC", domrepo.TF1m, tt.pos)
			require.NoError(t, err)
			if tt.nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.TS)
		})
	}
}

func TestCandleSymbolsAreIsolated(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	cs := st.Candles()

	require.True(t, cs.Write(ctx, "ETHUSDT", domrepo.TF1m, minuteCandles(60, 2)))
	require.True(t, cs.Write(ctx, "BTCUSDT", domrepo.TF1m, minuteCandles(60, 3)))
	require.True(t, cs.Write(ctx, "BTCUSDT", domrepo.TF5m, minuteCandles(300, 2)))
	require.True(t, cs.Write(ctx, "SOLUSDT", domrepo.TF5m, minuteCandles(300, 1)))

	got, err := cs.Read(ctx, "ETHUSDT", domrepo.TF1m, 0, 1000)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	syms, err := cs.ListSymbols(ctx, domrepo.TF1m)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, syms)

	syms, err = cs.ListSymbols(ctx, domrepo.TF15m)
	require.NoError(t, err)
	assert.NotNil(t, syms)
	assert.Empty(t, syms)

	require.True(t, cs.Empty(ctx, "BTCUSDT", domrepo.TF1m))
	got, err = cs.Read(ctx, "BTCUSDT", domrepo.TF1m, 0, 1000)
	require.NoError(t, err)
	assert.Empty(t, got)
	got, err = cs.Read(ctx, "ETHUSDT", domrepo.TF1m, 0, 1000)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	// Other timeframes of the emptied symbol are untouched.
	got, err = cs.Read(ctx, "BTCUSDT", domrepo.TF5m, 0, 1000)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	got, err = cs.Read(ctx, "SOLUSDT", domrepo.TF5m, 0, 1000)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestCandleErase(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	cs := st.Candles()
	require.True(t, cs.Write(ctx, "BTC", domrepo.TF1m, minuteCandles(60, 5)))

	require.True(t, cs.Erase(ctx, "BTC", domrepo.TF1m, 120, 240))
	got, err := cs.Read(ctx, "BTC", domrepo.TF1m, 0, 1000)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int64{60, 240, 300}, []int64{got[0].TS, got[1].TS, got[2].TS})
}

func TestCandleHourAlias(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	tf, err := domrepo.ParseTimeframe("h")
	require.NoError(t, err)
	require.True(t, st.Candles().Write(ctx, "BTC", domrepo.TF60m, []models.Candle{models.NewCandle(3600, 1, 1, 1, 1, 1)}))

	got, err := st.Candles().Read(ctx, "BTC", tf, 0, 7200)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	// The raw alias works without parsing first.
	require.True(t, st.Candles().Write(ctx, "BTC", domrepo.TFHour, []models.Candle{models.NewCandle(7200, 2, 2, 2, 2, 2)}))
	got, err = st.Candles().Read(ctx, "BTC", domrepo.TF60m, 0, 10800)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	last, err := st.Candles().Pick(ctx, "BTC", domrepo.TFHour, domrepo.PickLatest)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, int64(7200), last.TS)
}

func TestCandleBadExtraDecodesToNil(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	require.NoError(t, st.Backend().Execute(ctx,
		"INSERT INTO candle_1 (symbol, ts, open, high, low, close, volume, extra) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		"BTC", 60, 1, 1, 1, 1, 1, "{not json"))
	require.NoError(t, st.Commit())

	got, err := st.Candles().Read(ctx, "BTC", domrepo.TF1m, 0, 120)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].Extra)
	assert.True(t, got[0].Close.Equal(decimal.NewFromInt(1)))
}

func TestCandleNoCommit(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nocommit.db")

	st, err := Open(ctx, path, WithInit(true))
	require.NoError(t, err)
	require.True(t, st.Candles().Write(ctx, "BTC", domrepo.TF1m, minuteCandles(60, 1), domrepo.NoCommit()))

	// Pending rows are visible on the same store.
	got, err := st.Candles().Read(ctx, "BTC", domrepo.TF1m, 0, 1000)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	require.True(t, st.Candles().Write(ctx, "BTC", domrepo.TF1m, minuteCandles(120, 1), domrepo.NoCommit()))
	require.NoError(t, st.Commit())
	require.True(t, st.Candles().Write(ctx, "BTC", domrepo.TF1m, minuteCandles(180, 1), domrepo.NoCommit()))
	require.NoError(t, st.Close())

	st, err = Open(ctx, path)
	require.NoError(t, err)
	defer st.Close()
	got, err = st.Candles().Read(ctx, "BTC", domrepo.TF1m, 0, 1000)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(120), got[1].TS)
}

func TestCandleNoCommitSurvivesCallerCancel(t *testing.T) {
	st := newTestStore(t)
	cs := st.Candles()

	ctx1, cancel1 := context.WithTimeout(context.Background(), time.Second)
	require.True(t, cs.Write(ctx1, "BTC", domrepo.TF1m, minuteCandles(60, 2), domrepo.NoCommit()))
	cancel1()

	ctx := context.Background()
	require.True(t, cs.Write(ctx, "BTC", domrepo.TF1m, minuteCandles(180, 1), domrepo.NoCommit()))
	require.NoError(t, st.Commit())

	got, err := cs.Read(ctx, "BTC", domrepo.TF1m, 0, 1000)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestCandleFailedMutationKeepsEarlierNoCommit(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	cs := st.Candles()

	require.True(t, cs.Write(ctx, "BTC", domrepo.TF1m, minuteCandles(60, 3), domrepo.NoCommit()))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.False(t, cs.Erase(cancelled, "BTC", domrepo.TF1m, 0, 1000, domrepo.NoCommit()))
	assert.False(t, cs.Empty(cancelled, "BTC", domrepo.TF1m, domrepo.NoCommit()))

	require.NoError(t, st.Commit())
	got, err := cs.Read(ctx, "BTC", domrepo.TF1m, 0, 1000)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestCandleCompareAndWriteCommitsPending(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cas.db")
	st, err := Open(ctx, path, WithInit(true))
	require.NoError(t, err)
	cs := st.Candles()

	require.True(t, cs.Write(ctx, "ETH", domrepo.TF1m, minuteCandles(60, 2), domrepo.NoCommit()))
	require.NoError(t, cs.CompareAndWrite(ctx, "BTC", domrepo.TF5m, domrepo.NoTail, minuteCandles(300, 1)))
	require.NoError(t, st.Close())

	st, err = Open(ctx, path)
	require.NoError(t, err)
	defer st.Close()
	got, err := st.Candles().Read(ctx, "ETH", domrepo.TF1m, 0, 1000)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestCandleCompareAndWrite(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	cs := st.Candles()

	first := minuteCandles(300, 1)
	require.NoError(t, cs.CompareAndWrite(ctx, "BTC", domrepo.TF5m, domrepo.NoTail, first))

	// A stale expectation leaves the table untouched.
	err := cs.CompareAndWrite(ctx, "BTC", domrepo.TF5m, domrepo.NoTail, minuteCandles(600, 1))
	assert.ErrorIs(t, err, domrepo.ErrTailMoved)
	err = cs.CompareAndWrite(ctx, "BTC", domrepo.TF5m, 240, minuteCandles(600, 1))
	assert.ErrorIs(t, err, domrepo.ErrTailMoved)

	got, err := cs.Read(ctx, "BTC", domrepo.TF5m, 0, 10_000)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	require.NoError(t, cs.CompareAndWrite(ctx, "BTC", domrepo.TF5m, 300, minuteCandles(600, 1)))
	latest, err := cs.Pick(ctx, "BTC", domrepo.TF5m, domrepo.PickLatest)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, int64(600), latest.TS)

	// Tails are tracked per symbol.
	require.NoError(t, cs.CompareAndWrite(ctx, "ETH", domrepo.TF5m, domrepo.NoTail, minuteCandles(300, 1)))
}

func TestCandleFailureIsReportedNotRaised(t *testing.T) {
	ctx := context.Background()
	m := newRecordingMetrics()
	st := newTestStore(t, WithMetrics(m), WithVerbose(true))
	require.NoError(t, st.Close())

	assert.False(t, st.Candles().Write(ctx, "BTC", domrepo.TF1m, minuteCandles(60, 1)))
	assert.False(t, st.Candles().Erase(ctx, "BTC", domrepo.TF1m, 0, 100))
	assert.Equal(t, 1, m.failed["write"])
	assert.Equal(t, 1, m.failed["erase"])
	assert.Equal(t, 2, m.errs)
}
