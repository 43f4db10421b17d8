package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hi-noikiy/redtrader/internal/domain/models"
	domrepo "github.com/hi-noikiy/redtrader/internal/domain/repository"
	"github.com/hi-noikiy/redtrader/internal/repository"
	"github.com/hi-noikiy/redtrader/internal/usecase"
	"github.com/hi-noikiy/redtrader/pkg/config"
)

func TestRunContextCompilesAndShutsDown(t *testing.T) {
	ctx := context.Background()
	st, err := repository.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	const day0 int64 = 1_699_920_000
	var in []models.Candle
	for i := int64(0); i < 5; i++ {
		p := float64(100 + i)
		in = append(in, models.NewCandle(day0+i*60, p, p, p, p, 1))
	}
	require.True(t, st.Candles().Write(ctx, "BTC", domrepo.TF1m, in))

	job, err := usecase.NewCompileJob(usecase.NewAggregator(st.Candles()), st.Candles(), st.Meta(), "@every 1h", nil, time.Minute, nil)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Server.Enabled = false
	app := New(cfg, nil, job, nil, st)

	runCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	require.NoError(t, app.RunContext(runCtx))

	got, err := st.Candles().Read(ctx, "BTC", domrepo.TF5m, 0, day0+3600)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, day0, got[0].TS)

	e, err := st.Meta().Read(ctx, usecase.LastCompileKey)
	require.NoError(t, err)
	assert.NotNil(t, e)
}
