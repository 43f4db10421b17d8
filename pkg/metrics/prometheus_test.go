package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordStoreOp("write", "candle_1", true)
	r.RecordStoreOp("write", "candle_1", true)
	r.RecordStoreOp("write", "candle_1", false)
	r.RecordRowsWritten("candle_1", 5)
	r.RecordCompiled("1", "5", 2)
	r.RecordError("store")
	r.RecordLatency("compile", 0.01)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.storeOps.WithLabelValues("write", "candle_1", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.storeOps.WithLabelValues("write", "candle_1", "error")))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.rowsWritten.WithLabelValues("candle_1")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.compiled.WithLabelValues("1", "5")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("store")))

	n, err := testutil.GatherAndCount(reg, "redtrader_operation_duration_seconds")
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
}
