package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hi-noikiy/redtrader/internal/domain/models"
	domrepo "github.com/hi-noikiy/redtrader/internal/domain/repository"
	"github.com/hi-noikiy/redtrader/pkg/cache"
	applogger "github.com/hi-noikiy/redtrader/pkg/logger"
	"github.com/hi-noikiy/redtrader/pkg/util"
)

var (
	// ErrInvalidRatio is returned when dst is not a whole multiple of src.
	ErrInvalidRatio = errors.New("invalid timeframe ratio")
	// ErrLocked is returned when another compile of the same pair holds the lock.
	ErrLocked = errors.New("compile already in progress")
)

// CompileStep is one src -> dst roll-up.
type CompileStep struct {
	Src domrepo.Timeframe
	Dst domrepo.Timeframe
}

func (s CompileStep) String() string { return string(s.Src) + "->" + string(s.Dst) }

// DefaultCascade is the roll-up order used by Cascade.
var DefaultCascade = []CompileStep{
	{Src: domrepo.TF1m, Dst: domrepo.TF5m},
	{Src: domrepo.TF1m, Dst: domrepo.TF15m},
	{Src: domrepo.TF5m, Dst: domrepo.TF30m},
	{Src: domrepo.TF30m, Dst: domrepo.TF60m},
	{Src: domrepo.TF60m, Dst: domrepo.TF1d},
}

// StepResult reports the outcome of one cascade step.
type StepResult struct {
	CompileStep
	Count int
	Err   error
}

// Aggregator rolls low-interval candles up into higher intervals, resuming
// after whatever the destination already holds.
type Aggregator struct {
	store   domrepo.CandleStore
	locker  domrepo.Locker
	lockTTL time.Duration
	pub     domrepo.CandlePublisher
	metrics domrepo.Metrics
	l       *applogger.Logger
	steps   []CompileStep
}

type AggregatorOption func(*Aggregator)

// WithLocker serializes compiles of the same (symbol, src, dst) through l.
func WithLocker(l domrepo.Locker, ttl time.Duration) AggregatorOption {
	return func(a *Aggregator) {
		a.locker = l
		a.lockTTL = ttl
	}
}

// WithPublisher forwards produced candles to p.
func WithPublisher(p domrepo.CandlePublisher) AggregatorOption {
	return func(a *Aggregator) { a.pub = p }
}

func WithAggregatorMetrics(m domrepo.Metrics) AggregatorOption {
	return func(a *Aggregator) { a.metrics = m }
}

func WithAggregatorLogger(l *applogger.Logger) AggregatorOption {
	return func(a *Aggregator) { a.l = l }
}

// WithCascade replaces DefaultCascade.
func WithCascade(steps []CompileStep) AggregatorOption {
	return func(a *Aggregator) { a.steps = steps }
}

func NewAggregator(store domrepo.CandleStore, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		store:   store,
		lockTTL: time.Minute,
		steps:   DefaultCascade,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.l == nil {
		a.l = applogger.Nop()
	}
	return a
}

// Compile aggregates complete src buckets of symbol into dst and returns how
// many dst candles were written. Nothing to do is (0, nil).
func (a *Aggregator) Compile(ctx context.Context, symbol string, src, dst domrepo.Timeframe) (int, error) {
	src, dst = src.Canonical(), dst.Canonical()
	sw, dw := src.Seconds(), dst.Seconds()
	if sw <= 0 || dw <= 0 || src == dst || dw%sw != 0 {
		return 0, fmt.Errorf("%w: %s -> %s", ErrInvalidRatio, src, dst)
	}

	if a.locker != nil {
		key := cache.GenerateKeyWithParams("compile", symbol, string(src), string(dst))
		ok, err := a.locker.TryLock(ctx, key, a.lockTTL)
		if err != nil {
			return 0, fmt.Errorf("acquire compile lock: %w", err)
		}
		if !ok {
			return 0, ErrLocked
		}
		defer func() {
			if err := a.locker.Unlock(context.WithoutCancel(ctx), key); err != nil {
				a.l.Warn("compile unlock failed", applogger.String("key", key), applogger.Error(err))
			}
		}()
	}

	begin := time.Now()
	out, err := a.compile(ctx, symbol, src, dst)
	if err != nil {
		a.recordError("compile")
		a.l.Error("compile failed",
			applogger.String("symbol", symbol),
			applogger.String("src", string(src)),
			applogger.String("dst", string(dst)),
			applogger.Error(err),
		)
		return 0, err
	}
	if a.metrics != nil {
		a.metrics.RecordCompiled(string(src), string(dst), len(out))
		a.metrics.RecordLatency("compile", time.Since(begin).Seconds())
	}
	if len(out) == 0 {
		a.l.Debug("nothing to compile",
			applogger.String("symbol", symbol),
			applogger.String("src", string(src)),
			applogger.String("dst", string(dst)),
		)
		return 0, nil
	}

	a.l.Info("candles compiled",
		applogger.String("symbol", symbol),
		applogger.String("src", string(src)),
		applogger.String("dst", string(dst)),
		applogger.Int("count", len(out)),
		applogger.Time("from", util.UnixUTC(out[0].TS)),
		applogger.Time("to", util.UnixUTC(out[len(out)-1].TS)),
		applogger.Duration("took", time.Since(begin)),
	)
	if a.pub != nil {
		if err := a.pub.PublishCandles(ctx, symbol, dst, out); err != nil {
			a.recordError("publish")
			a.l.Warn("publish compiled candles failed",
				applogger.String("symbol", symbol),
				applogger.String("dst", string(dst)),
				applogger.Error(err),
			)
		}
	}
	return len(out), nil
}

func (a *Aggregator) compile(ctx context.Context, symbol string, src, dst domrepo.Timeframe) ([]models.Candle, error) {
	sw, dw := src.Seconds(), dst.Seconds()

	tail := domrepo.NoTail
	last, err := a.store.Pick(ctx, symbol, dst, domrepo.PickLatest)
	if err != nil {
		return nil, fmt.Errorf("destination tail: %w", err)
	}
	var start int64
	if last != nil {
		tail = last.TS
		start = util.AlignDown(last.TS, dw) + dw
	} else {
		head, err := a.store.Pick(ctx, symbol, src, domrepo.PickEarliest)
		if err != nil {
			return nil, fmt.Errorf("source head: %w", err)
		}
		if head == nil {
			return nil, nil
		}
		start = util.AlignUp(head.TS, dw)
	}

	latest, err := a.store.Pick(ctx, symbol, src, domrepo.PickLatest)
	if err != nil {
		return nil, fmt.Errorf("source tail: %w", err)
	}
	if latest == nil {
		return nil, nil
	}
	// The bucket holding the latest source candle may still be filling.
	end := util.AlignDown(latest.TS+sw, dw)
	if start >= end {
		return nil, nil
	}

	candles, err := a.store.Read(ctx, symbol, src, start, end)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	out := Aggregate(candles, int(dw/sw), dw)
	if tail != domrepo.NoTail {
		i := 0
		for i < len(out) && out[i].TS <= tail {
			i++
		}
		out = out[i:]
	}
	if len(out) == 0 {
		return nil, nil
	}
	if err := a.store.CompareAndWrite(ctx, symbol, dst, tail, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Aggregate groups ascending candles into width-sized buckets and returns one
// candle per bucket that has exactly ratio members.
func Aggregate(candles []models.Candle, ratio int, width int64) []models.Candle {
	var (
		out   []models.Candle
		cur   models.Candle
		count int
	)
	flush := func() {
		if count == ratio {
			out = append(out, cur)
		}
	}
	for _, c := range candles {
		bucket := util.AlignDown(c.TS, width)
		if count > 0 && bucket == cur.TS {
			cur.High = decimal.Max(cur.High, c.High)
			cur.Low = decimal.Min(cur.Low, c.Low)
			cur.Close = c.Close
			cur.Volume = cur.Volume.Add(c.Volume)
			count++
			continue
		}
		if count > 0 {
			flush()
		}
		cur = models.Candle{
			TS:     bucket,
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: c.Volume,
		}
		count = 1
	}
	if count > 0 {
		flush()
	}
	return out
}

// Cascade runs every configured step for symbol in order. A failing step does
// not stop the ones after it; all failures are joined into the returned error.
func (a *Aggregator) Cascade(ctx context.Context, symbol string) ([]StepResult, error) {
	results := make([]StepResult, 0, len(a.steps))
	var errs []error
	for _, step := range a.steps {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		n, err := a.Compile(ctx, symbol, step.Src, step.Dst)
		results = append(results, StepResult{CompileStep: step, Count: n, Err: err})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", symbol, step, err))
		}
	}
	return results, errors.Join(errs...)
}

func (a *Aggregator) recordError(kind string) {
	if a.metrics != nil {
		a.metrics.RecordError(kind)
	}
}
