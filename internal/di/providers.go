package di

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	domrepo "github.com/hi-noikiy/redtrader/internal/domain/repository"
	"github.com/hi-noikiy/redtrader/internal/repository"
	"github.com/hi-noikiy/redtrader/internal/usecase"
	"github.com/hi-noikiy/redtrader/pkg/cache"
	pkgch "github.com/hi-noikiy/redtrader/pkg/clickhouse"
	"github.com/hi-noikiy/redtrader/pkg/config"
	xhttp "github.com/hi-noikiy/redtrader/pkg/http"
	pkgkafka "github.com/hi-noikiy/redtrader/pkg/kafka"
	applogger "github.com/hi-noikiy/redtrader/pkg/logger"
	"github.com/hi-noikiy/redtrader/pkg/metrics"
	"github.com/hi-noikiy/redtrader/pkg/server"
)

// ProvideLogger builds the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideRegistry returns the process-wide Prometheus registry.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates the metrics recorder shared by stores and the aggregator.
func ProvideMetrics(reg *prometheus.Registry) domrepo.Metrics {
	return metrics.New(reg)
}

// ProvideCache creates the cache selected by cache.type. "none" yields a nil
// service, which disables read-through caching and compile locks.
func ProvideCache(cfg *config.Config, l *applogger.Logger) (cache.Service, func(), error) {
	c := cfg.Cache
	memOpts := []cache.MemoryOption{cache.WithMemoryMaxSize(c.MemoryMaxSize)}

	switch c.Type {
	case "none":
		return nil, func() {}, nil
	case "memory":
		mc := cache.NewMemoryCache(memOpts...)
		return mc, func() { _ = mc.Close() }, nil
	case "redis", "layered":
		host, port, err := splitHostPort(c.Redis.Addr)
		if err != nil {
			return nil, nil, err
		}
		rc, err := cache.NewRedisCache(
			cache.WithRedisHost(host),
			cache.WithRedisPort(port),
			cache.WithRedisPassword(c.Redis.Password),
			cache.WithRedisDB(c.Redis.DB),
			cache.WithRedisPrefix(c.Redis.Prefix),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("redis cache: %w", err)
		}
		l.Info("redis cache connected", applogger.String("addr", c.Redis.Addr))
		if c.Type == "redis" {
			return rc, func() { _ = rc.Close() }, nil
		}
		lc := cache.NewLayeredCache(rc,
			cache.WithLayeredMemorySize(c.MemoryMaxSize),
			cache.WithLayeredMemoryTTL(c.TTL),
		)
		return lc, func() { _ = lc.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache type %q", c.Type)
	}
}

// ProvideLocker exposes the cache as the compile lock when one is configured.
func ProvideLocker(c cache.Service) domrepo.Locker {
	if c == nil {
		return nil
	}
	return c
}

// ProvideStore opens the configured backend. clickhouse:// locators pick up
// the clickhouse section of the config.
func ProvideStore(cfg *config.Config, l *applogger.Logger, m domrepo.Metrics, c cache.Service) (*repository.Store, func(), error) {
	mode, err := repository.ParseNumericMode(cfg.Store.Numeric)
	if err != nil {
		return nil, nil, err
	}
	ch := cfg.ClickHouse
	opts := []repository.Option{
		repository.WithInit(cfg.Store.Init),
		repository.WithVerbose(cfg.Store.Verbose),
		repository.WithNumericMode(mode),
		repository.WithTimeout(cfg.Store.Timeout),
		repository.WithSecondsTable(cfg.Store.SecondsTable),
		repository.WithLogger(l),
		repository.WithMetrics(m),
		repository.WithConnector("clickhouse", pkgch.NewConnector(
			pkgch.WithHTTP(ch.UseHTTP),
			pkgch.WithAsyncInsert(ch.AsyncInsert, ch.WaitForAsync),
			pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout),
			pkgch.WithMaxExecutionTime(ch.MaxExecutionTime),
		)),
	}
	if c != nil {
		opts = append(opts, repository.WithCache(c, cfg.Cache.TTL))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Store.Timeout)
	defer cancel()
	st, err := repository.Open(ctx, cfg.Store.URL, opts...)
	if err != nil {
		return nil, nil, err
	}
	l.Info("store opened",
		applogger.String("dialect", st.Dialect().Name()),
		applogger.String("numeric", mode.String()),
	)
	return st, func() {
		if err := st.Close(); err != nil {
			l.Warn("store close error", applogger.Error(err))
		}
	}, nil
}

func ProvideCandleStore(st *repository.Store) domrepo.CandleStore { return st.Candles() }

func ProvideMetaStore(st *repository.Store) domrepo.MetaStore { return st.Meta() }

// ProvidePublisher creates the Kafka candle publisher when kafka.enabled is
// set; otherwise compiled candles are only stored.
func ProvidePublisher(cfg *config.Config, reg *prometheus.Registry, l *applogger.Logger) (domrepo.CandlePublisher, func(), error) {
	k := cfg.Kafka
	if !k.Enabled {
		return nil, func() {}, nil
	}
	p, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(k.Brokers...),
		pkgkafka.WithTopic(k.Topic),
		pkgkafka.WithRequiredAcks(k.RequiredAcks),
		pkgkafka.WithCompression(k.Compression),
		pkgkafka.WithMaxAttempts(k.MaxAttempts),
		pkgkafka.WithBatching(k.BatchSize, k.BatchBytes, k.BatchTimeout),
		pkgkafka.WithTimeouts(k.WriteTimeout, k.ReadTimeout),
		pkgkafka.WithAsync(k.Async),
		pkgkafka.WithRegisterer(reg),
	)
	if err != nil {
		return nil, nil, err
	}
	l.Info("kafka publisher ready",
		applogger.Strings("brokers", k.Brokers),
		applogger.String("topic", k.Topic),
	)
	pub := repository.NewKafkaCandlePublisher(p)
	return pub, func() {
		if err := pub.Close(); err != nil {
			l.Warn("kafka publisher close error", applogger.Error(err))
		}
	}, nil
}

func ProvideAggregator(cfg *config.Config, candles domrepo.CandleStore, locker domrepo.Locker, pub domrepo.CandlePublisher, m domrepo.Metrics, l *applogger.Logger) *usecase.Aggregator {
	opts := []usecase.AggregatorOption{
		usecase.WithAggregatorMetrics(m),
		usecase.WithAggregatorLogger(l),
	}
	if locker != nil {
		opts = append(opts, usecase.WithLocker(locker, cfg.Compile.LockTTL))
	}
	if pub != nil {
		opts = append(opts, usecase.WithPublisher(pub))
	}
	return usecase.NewAggregator(candles, opts...)
}

func ProvideCompileJob(cfg *config.Config, agg *usecase.Aggregator, candles domrepo.CandleStore, meta domrepo.MetaStore, l *applogger.Logger) (*usecase.CompileJob, error) {
	return usecase.NewCompileJob(agg, candles, meta, cfg.Compile.Schedule, cfg.Compile.Symbols, cfg.Compile.Timeout, l)
}

// ProvideOpsServer builds the /metrics and /healthz endpoint.
func ProvideOpsServer(cfg *config.Config, reg *prometheus.Registry, st *repository.Store, c cache.Service, l *applogger.Logger) *xhttp.Server {
	health := xhttp.NewHealthHandler(0).Add("store", func(ctx context.Context) error {
		var one int
		_, err := st.Backend().FetchOne(ctx, "SELECT 1", nil, &one)
		return err
	})
	if c != nil {
		health.Add("cache", func(ctx context.Context) error {
			if err := c.Set(ctx, "healthz", 1, 0); err != nil {
				return err
			}
			return c.Delete(ctx, "healthz")
		})
	}

	path := cfg.Metrics.Path
	if !cfg.Metrics.Enabled {
		path = ""
	}
	return xhttp.NewServer(l, []xhttp.Handler{health},
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetrics(path, reg, reg),
	)
}

func ProvideApp(cfg *config.Config, l *applogger.Logger, job *usecase.CompileJob, srv *xhttp.Server, st *repository.Store) *server.App {
	return server.New(cfg, l, job, srv, st)
}

func splitHostPort(addr string) (string, int, error) {
	host, p, err := net.SplitHostPort(addr)
	if err != nil {
		var aerr *net.AddrError
		if errors.As(err, &aerr) && aerr.Err == "missing port in address" {
			return addr, 6379, nil
		}
		return "", 0, fmt.Errorf("redis addr %q: %w", addr, err)
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return "", 0, fmt.Errorf("redis addr %q: %w", addr, err)
	}
	return host, port, nil
}
