package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"ETFSentinel/internal/analysis"
	"ETFSentinel/internal/cache"
	"ETFSentinel/internal/calculator"
	"ETFSentinel/internal/collector"
	"ETFSentinel/internal/config"
	"ETFSentinel/internal/costs"
	"ETFSentinel/internal/guard"
	"ETFSentinel/internal/liquidity"
	"ETFSentinel/internal/reconcile"
	"ETFSentinel/internal/recorder"
	"ETFSentinel/internal/reference"
)

// app holds the wired components shared by every command.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	provider collector.Provider
	analyzer *analysis.Analyzer
	recorder recorder.Recorder
	closers  []func()
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func newProvider(cfg *config.Config) collector.Provider {
	switch cfg.Provider.Kind {
	case "rest":
		return collector.NewRESTProvider(cfg.Provider.BaseURL, cfg.Provider.APIKey, cfg.Proxy)
	case "mock":
		return &collector.MockProvider{Price: 100}
	default:
		return collector.NewYahooProvider(cfg.Proxy)
	}
}

func (a *app) newStore(ctx context.Context) (cache.Store, error) {
	switch a.cfg.Cache.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: a.cfg.Cache.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("connect redis %s: %w", a.cfg.Cache.RedisAddr, err)
		}
		a.closers = append(a.closers, func() { client.Close() })
		return cache.NewRedisStore(client, a.cfg.Cache.TTL), nil
	case "memory":
		return cache.NewMemoryStore(), nil
	default:
		return cache.NewFileStore(a.cfg.Cache.Dir)
	}
}

func (a *app) newSources(provider collector.Provider) []reference.Source {
	var (
		sources []reference.Source
		chrome  *reference.ChromeRenderer
	)
	for _, sc := range a.cfg.Reference.Sources {
		var r reference.Renderer
		if sc.Renderer == "http" {
			r = reference.NewHTTPRenderer(a.cfg.Reference.Timeout)
		} else {
			if chrome == nil {
				chrome = reference.NewChromeRenderer(a.cfg.Reference.Headless, a.cfg.Reference.Timeout)
				a.closers = append(a.closers, chrome.Close)
			}
			r = chrome
		}
		sources = append(sources, reference.NewScraper(sc.Name, sc.URLTemplate, nil, r, a.logger))
	}
	if a.cfg.Reference.ProviderFallback {
		sources = append(sources, reference.NewProviderSource(provider))
	}
	return sources
}

func (a *app) newRecorder() recorder.Recorder {
	path := a.cfg.Database.SQLitePath
	if path == "" {
		return recorder.NewNoopRecorder()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		a.logger.Warn("create database dir failed, using noop recorder", "err", err)
		return recorder.NewNoopRecorder()
	}
	sr, err := recorder.NewSQLiteRecorder(path, a.logger)
	if err != nil {
		a.logger.Warn("init sqlite recorder failed, using noop recorder", "err", err)
		return recorder.NewNoopRecorder()
	}
	a.closers = append(a.closers, func() { sr.Close() })
	return sr
}

// newApp wires the pipeline from configuration.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	cal, err := guard.NewCalendar(cfg.Guard.Timezone, cfg.Guard.Open, cfg.Guard.Close)
	if err != nil {
		return nil, fmt.Errorf("market calendar: %w", err)
	}
	g := guard.New(cal, cfg.Guard.MaxAge, logger)

	a.provider = newProvider(cfg)
	logger.Info("market data provider", "name", a.provider.Name())
	col := collector.NewCollector(a.provider, g, logger)

	store, err := a.newStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	metrics := cache.NewMetrics(a.registry)
	limOpts := []cache.LimiterOption{cache.WithLimiterMetrics(metrics)}
	for src, cpm := range cfg.RateLimit.PerSource {
		limOpts = append(limOpts, cache.WithOperationRate(src, cpm))
	}
	lookups := cache.NewRateLimited(
		cache.New(store, logger, cache.WithTTL(cfg.Cache.TTL), cache.WithCacheMetrics(metrics)),
		cache.NewLimiter(cfg.RateLimit.CallsPerMinute, logger, limOpts...),
		logger,
	)

	var validator *reconcile.Validator
	if sources := a.newSources(a.provider); len(sources) > 0 {
		validator = reconcile.NewValidator(sources, lookups, reconcile.DefaultRules(), logger)
	} else {
		logger.Warn("no reference sources configured; reconciliation disabled")
	}

	a.recorder = a.newRecorder()
	a.analyzer = analysis.New(
		col,
		calculator.NewEngine(cfg.Calculator, logger),
		liquidity.NewScorer(cfg.Liquidity, logger),
		costs.NewEstimator(cfg.Costs, logger),
		validator,
		a.recorder,
		logger,
	)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *app) period(flag string) (collector.Period, error) {
	if flag == "" {
		flag = a.cfg.Period
	}
	return collector.ParsePeriod(flag)
}

func (a *app) benchmark(flag string) string {
	if flag == "" {
		return a.cfg.Benchmark
	}
	return strings.ToUpper(flag)
}
