package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hi-noikiy/redtrader/internal/domain/models"
	domrepo "github.com/hi-noikiy/redtrader/internal/domain/repository"
	"github.com/hi-noikiy/redtrader/pkg/sqldb"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{WithNumericMode(NumericDecimal)}, opts...)
	st, err := Open(context.Background(), sqldb.MemoryPath, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// recordingMetrics counts calls for assertions.
type recordingMetrics struct {
	mu      sync.Mutex
	rows    map[string]int
	failed  map[string]int
	errs    int
	latency int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{rows: map[string]int{}, failed: map[string]int{}}
}

func (m *recordingMetrics) RecordStoreOp(op, table string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !ok {
		m.failed[op]++
	}
}

func (m *recordingMetrics) RecordRowsWritten(table string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[table] += n
}

func (m *recordingMetrics) RecordCompiled(string, string, int) {}

func (m *recordingMetrics) RecordError(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs++
}

func (m *recordingMetrics) RecordLatency(string, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latency++
}

func TestOpenCreatesSchemaIdempotently(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "candrec.db")

	st, err := Open(ctx, "sqlite://"+path, WithInit(true))
	require.NoError(t, err)
	require.True(t, st.Candles().Write(ctx, "BTC", domrepo.TF1m, []models.Candle{models.NewCandle(60, 1, 2, 0.5, 1.5, 10)}))
	require.NoError(t, st.Close())

	// Reopening runs the same DDL again without error and keeps data.
	st, err = Open(ctx, path)
	require.NoError(t, err)
	defer st.Close()

	c, err := st.Candles().Pick(ctx, "BTC", domrepo.TF1m, domrepo.PickLatest)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, int64(60), c.TS)

	for _, tf := range domrepo.Timeframes {
		if tf == domrepo.TF1s {
			continue
		}
		var n int
		ok, err := st.Backend().FetchOne(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", []any{tf.Table()}, &n)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 1, n, tf.Table())
	}
}

func TestOpenSecondsTableIsOptIn(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	_, err := st.Candles().Read(ctx, "BTC", domrepo.TF1s, 0, 10)
	assert.ErrorIs(t, err, domrepo.ErrTimeframeDisabled)
	assert.False(t, st.Candles().Write(ctx, "BTC", domrepo.TF1s, []models.Candle{models.NewCandle(1, 1, 1, 1, 1, 1)}))

	st = newTestStore(t, WithSecondsTable(true))
	require.True(t, st.Candles().Write(ctx, "BTC", domrepo.TF1s, []models.Candle{models.NewCandle(1, 1, 1, 1, 1, 1)}))
	got, err := st.Candles().Read(ctx, "BTC", domrepo.TF1s, 0, 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestOpenRejectsBadLocators(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, "mysql://user:pw@localhost:3306")
	assert.ErrorIs(t, err, sqldb.ErrMissingDatabase)

	_, err = Open(ctx, "oracle://localhost/market")
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
}

type fakeConnector struct {
	opened int
}

func (f *fakeConnector) Dialect() sqldb.Dialect { return sqldb.SQLite{} }

func (f *fakeConnector) Open(loc sqldb.Locator, admin bool, timeout time.Duration) (*sql.DB, error) {
	f.opened++
	db, err := sql.Open("sqlite", "file::memory:")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func TestOpenUsesInjectedConnector(t *testing.T) {
	ctx := context.Background()
	fc := &fakeConnector{}

	st, err := Open(ctx, "fake://db.local/market", WithConnector("fake", fc))
	require.NoError(t, err)
	defer st.Close()
	assert.Equal(t, 1, fc.opened)

	// Networked stores only provision the schema with init.
	require.NoError(t, EnsureSchema(ctx, st.Backend(), false))
	assert.True(t, st.Candles().Write(ctx, "ETH", domrepo.TF5m, []models.Candle{models.NewCandle(300, 1, 1, 1, 1, 1)}))
}

func TestSchemaStatements(t *testing.T) {
	without := SchemaStatements(sqldb.MySQL{}, false)
	with := SchemaStatements(sqldb.MySQL{}, true)
	assert.Len(t, without, 8+4+1)
	assert.Len(t, with, 9+4+1)
	for _, s := range with {
		assert.NotContains(t, s, "candle_h")
	}
}
