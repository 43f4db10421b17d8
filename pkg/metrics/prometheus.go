package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	storeOps    *prometheus.CounterVec
	rowsWritten *prometheus.CounterVec
	compiled    *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// New registers the recorder's collectors with reg. Pass
// prometheus.DefaultRegisterer to expose them on the default /metrics handler.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		storeOps: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "redtrader_store_ops_total",
				Help: "Store operations by table and result",
			},
			[]string{"op", "table", "result"},
		),
		rowsWritten: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "redtrader_rows_written_total",
				Help: "Rows upserted per table",
			},
			[]string{"table"},
		),
		compiled: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "redtrader_compiled_candles_total",
				Help: "Candles produced by timeframe aggregation",
			},
			[]string{"src", "dst"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "redtrader_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "redtrader_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordStoreOp counts one store operation.
func (r *Recorder) RecordStoreOp(op, table string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	r.storeOps.WithLabelValues(op, table, result).Inc()
}

func (r *Recorder) RecordRowsWritten(table string, n int) {
	r.rowsWritten.WithLabelValues(table).Add(float64(n))
}

func (r *Recorder) RecordCompiled(src, dst string, n int) {
	r.compiled.WithLabelValues(src, dst).Add(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
