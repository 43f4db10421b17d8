package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestNewProducerValidates(t *testing.T) {
	_, err := NewProducer(WithTopic("candles"))
	assert.ErrorIs(t, err, ErrNoBrokers)

	_, err = NewProducer(WithBrokers("localhost:9092"))
	assert.Error(t, err)

	p, err := NewProducer(WithBrokers("localhost:9092"), WithTopic("candles"), WithCompression("zstd"))
	require.NoError(t, err)
	assert.Equal(t, "candles", p.Topic())
	assert.NoError(t, p.Close())
}

func TestPublishBatchEncodes(t *testing.T) {
	w := &fakeWriter{}
	reg := prometheus.NewRegistry()
	p := NewProducerWithWriter(w, "candles", WithRegisterer(reg))

	err := p.PublishBatch(context.Background(), []Message{
		{Key: []byte("BTC"), Value: map[string]int{"ts": 60}},
		{Key: []byte("BTC"), Value: "raw"},
		{Key: []byte("ETH"), Value: []byte{'x'}},
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 3)
	assert.Equal(t, `{"ts":60}`, string(w.msgs[0].Value))
	assert.Equal(t, "raw", string(w.msgs[1].Value))
	assert.Equal(t, "ETH", string(w.msgs[2].Key))

	assert.Equal(t, 3.0, testutil.ToFloat64(p.metrics.messages.WithLabelValues("candles", "gzip", "ok")))
	assert.Equal(t, 13.0, testutil.ToFloat64(p.metrics.bytes.WithLabelValues("candles")))

	require.NoError(t, p.PublishBatch(context.Background(), nil))
	assert.Len(t, w.msgs, 3)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublishFailure(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := NewProducerWithWriter(w, "candles")

	err := p.Publish(context.Background(), []byte("BTC"), 1)
	assert.ErrorContains(t, err, "leader not available")

	err = p.Publish(context.Background(), nil, make(chan int))
	assert.ErrorContains(t, err, "marshal value")
}
