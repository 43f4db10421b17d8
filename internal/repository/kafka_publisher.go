package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/hi-noikiy/redtrader/internal/domain/models"
	domrepo "github.com/hi-noikiy/redtrader/internal/domain/repository"
	pkgkafka "github.com/hi-noikiy/redtrader/pkg/kafka"
)

// CandleMessage is the wire form of a published candle.
type CandleMessage struct {
	Symbol    string          `json:"symbol"`
	Timeframe string          `json:"timeframe"`
	TS        int64           `json:"ts"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
	Extra     any             `json:"extra,omitempty"`
}

// KafkaCandlePublisher implements domrepo.CandlePublisher. Messages are
// keyed by symbol so one symbol stays on one partition.
type KafkaCandlePublisher struct {
	producer *pkgkafka.Producer
}

var _ domrepo.CandlePublisher = (*KafkaCandlePublisher)(nil)

func NewKafkaCandlePublisher(p *pkgkafka.Producer) *KafkaCandlePublisher {
	return &KafkaCandlePublisher{producer: p}
}

func (k *KafkaCandlePublisher) PublishCandles(ctx context.Context, symbol string, tf domrepo.Timeframe, candles []models.Candle) error {
	key := []byte(symbol)
	msgs := make([]pkgkafka.Message, 0, len(candles))
	for _, c := range candles {
		msgs = append(msgs, pkgkafka.Message{Key: key, Value: CandleMessage{
			Symbol:    symbol,
			Timeframe: string(tf),
			TS:        c.TS,
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
			Extra:     c.Extra,
		}})
	}
	return k.producer.PublishBatch(ctx, msgs)
}

func (k *KafkaCandlePublisher) Close() error {
	return k.producer.Close()
}
