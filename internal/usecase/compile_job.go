package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	domrepo "github.com/hi-noikiy/redtrader/internal/domain/repository"
	applogger "github.com/hi-noikiy/redtrader/pkg/logger"
)

// LastCompileKey is the metadata entry updated after every compile run.
const LastCompileKey = "last_compile"

// CompileReport summarizes one run over all symbols.
type CompileReport struct {
	At      int64          `json:"at"`
	Symbols int            `json:"symbols"`
	Candles int            `json:"candles"`
	Failed  []string       `json:"failed,omitempty"`
	Steps   map[string]int `json:"steps"`
}

// CompileJob runs the aggregator cascade on a cron schedule.
type CompileJob struct {
	agg     *Aggregator
	candles domrepo.CandleStore
	meta    domrepo.MetaStore
	symbols []string
	timeout time.Duration
	l       *applogger.Logger
	cron    *cron.Cron
	now     func() time.Time
}

// NewCompileJob registers the job under schedule (six fields, seconds
// first, or a descriptor such as "@every 1m"). With no symbols configured
// every symbol present in the 1m table is compiled.
func NewCompileJob(agg *Aggregator, candles domrepo.CandleStore, meta domrepo.MetaStore, schedule string, symbols []string, timeout time.Duration, l *applogger.Logger) (*CompileJob, error) {
	if l == nil {
		l = applogger.Nop()
	}
	j := &CompileJob{
		agg:     agg,
		candles: candles,
		meta:    meta,
		symbols: symbols,
		timeout: timeout,
		l:       l,
		cron:    cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		now:     time.Now,
	}
	if _, err := j.cron.AddFunc(schedule, j.tick); err != nil {
		return nil, fmt.Errorf("register compile job %q: %w", schedule, err)
	}
	return j, nil
}

func (j *CompileJob) Start() {
	j.cron.Start()
	j.l.Info("compile job started", applogger.Strings("symbols", j.symbols))
}

// Stop prevents new runs and waits for a running one until ctx is done.
func (j *CompileJob) Stop(ctx context.Context) error {
	done := j.cron.Stop()
	select {
	case <-done.Done():
		j.l.Info("compile job stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *CompileJob) tick() {
	if _, err := j.RunOnce(context.Background()); err != nil {
		j.l.Warn("compile run finished with errors", applogger.Error(err))
	}
}

// RunOnce compiles every symbol once. Per-symbol failures are collected in
// the report and joined into the returned error; the other symbols still run.
func (j *CompileJob) RunOnce(ctx context.Context) (*CompileReport, error) {
	symbols := j.symbols
	if len(symbols) == 0 {
		var err error
		symbols, err = j.candles.ListSymbols(ctx, domrepo.TF1m)
		if err != nil {
			return nil, fmt.Errorf("list symbols: %w", err)
		}
	}

	report := &CompileReport{At: j.now().Unix(), Symbols: len(symbols), Steps: map[string]int{}}
	var errs []error
	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		results, err := j.cascade(ctx, sym)
		for _, r := range results {
			report.Steps[r.String()] += r.Count
			report.Candles += r.Count
		}
		if err != nil {
			report.Failed = append(report.Failed, sym)
			errs = append(errs, err)
		}
	}

	if j.meta != nil && !j.meta.Write(ctx, LastCompileKey, report) {
		j.l.Warn("record compile run failed")
	}
	j.l.Info("compile run done",
		applogger.Int("symbols", report.Symbols),
		applogger.Int("candles", report.Candles),
		applogger.Int("failed", len(report.Failed)),
	)
	return report, errors.Join(errs...)
}

func (j *CompileJob) cascade(ctx context.Context, symbol string) ([]StepResult, error) {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}
	return j.agg.Cascade(ctx, symbol)
}
