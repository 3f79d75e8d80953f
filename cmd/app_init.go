package main

import (
	"context"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/emissions-service/internal/cache"
	"github.com/sells-group/emissions-service/internal/config"
	"github.com/sells-group/emissions-service/internal/estimate"
	"github.com/sells-group/emissions-service/internal/fetcher"
	"github.com/sells-group/emissions-service/internal/kb"
	"github.com/sells-group/emissions-service/internal/metrics"
	"github.com/sells-group/emissions-service/internal/model"
	"github.com/sells-group/emissions-service/internal/resolve"
	"github.com/sells-group/emissions-service/internal/tables"
)

// appEnv holds everything the serve/refresh/resolve/lookup commands need.
type appEnv struct {
	Tables    *tables.Tables
	Store     *kb.Store
	Ingester  *kb.Ingester
	Resolver  *resolve.Resolver
	Estimator estimate.Estimator
	Cache     cache.Cache
	Metrics   *metrics.Metrics
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Cache != nil {
		if err := e.Cache.Close(); err != nil {
			zap.L().Warn("close payload cache", zap.Error(err))
		}
	}
}

// initApp validates config for mode, opens the payload cache, and wires the
// knowledge base, estimator, and resolver. Callers should defer env.Close().
func initApp(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	tbl, err := tables.Load(cfg.Knowledge.TablesPath)
	if err != nil {
		return nil, err
	}

	c, err := cache.Open(ctx, cache.Options{
		Driver:      cfg.Store.Driver,
		Dir:         cfg.Store.CacheDir,
		DatabaseURL: cfg.Store.DatabaseURL,
	})
	if err != nil {
		return nil, eris.Wrap(err, "open payload cache")
	}

	sources, err := sourcesFromConfig(cfg.Knowledge)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	m := metrics.New()
	store := kb.NewStore(seedSnapshot(tbl))

	fetchTimeout := time.Duration(cfg.Knowledge.FetchTimeoutSecs) * time.Second
	dl := fetcher.NewMux(
		fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:    cfg.Knowledge.UserAgent,
			Timeout:      fetchTimeout,
			MaxAttempts:  cfg.Knowledge.FetchAttempts,
			RateLimiters: hostLimiters(sources, cfg.Knowledge.RateLimit),
		}),
		fetcher.NewFTPFetcher(fetcher.FTPOptions{
			Timeout:  fetchTimeout,
			Username: cfg.Knowledge.FTP.Username,
			Password: cfg.Knowledge.FTP.Password,
		}),
	)

	ingester := kb.NewIngester(store, dl, c, tbl, sources,
		kb.WithTimeout(fetchTimeout),
		kb.WithMaxBytes(cfg.Knowledge.MaxBytes),
		kb.WithRecorder(m),
	)

	est := estimate.New(estimate.Options{
		APIKey:    cfg.Anthropic.Key,
		Model:     cfg.Anthropic.Model,
		MaxTokens: cfg.Anthropic.MaxTokens,
		Timeout:   time.Duration(cfg.Anthropic.TimeoutSecs) * time.Second,
		BaseURL:   cfg.Anthropic.BaseURL,
	})

	return &appEnv{
		Tables:    tbl,
		Store:     store,
		Ingester:  ingester,
		Resolver:  resolve.New(store, est, tbl).WithRecorder(m),
		Estimator: est,
		Cache:     c,
		Metrics:   m,
	}, nil
}

// refresh runs one ingestion pass and updates the snapshot gauge.
func (e *appEnv) refresh(ctx context.Context) kb.RefreshReport {
	report := e.Ingester.Refresh(ctx)
	e.Metrics.SetSnapshotEntries(report.Entries)
	return report
}

// seedSnapshot builds the pre-ingestion snapshot from the tables' defaults
// and seed rows so lookups answer before the first refresh completes.
func seedSnapshot(tbl *tables.Tables) *kb.Snapshot {
	b := kb.NewBuilder(tbl.Defaults)
	for _, rec := range tbl.Seeds {
		b.Put(rec)
	}
	return b.Build()
}

func sourcesFromConfig(kc config.KnowledgeConfig) ([]kb.Source, error) {
	var sources []kb.Source
	for name, sc := range kc.Sources {
		if sc.URL == "" {
			continue
		}
		cat, ok := model.ParseCategory(name)
		if !ok {
			return nil, eris.Errorf("knowledge.sources: unknown category %q", name)
		}
		format, err := fetcher.ParseFormat(sc.Format)
		if err != nil {
			return nil, eris.Wrapf(err, "knowledge.sources.%s", name)
		}
		sources = append(sources, kb.Source{Category: cat, URL: sc.URL, Format: format})
	}
	return sources, nil
}

// hostLimiters gives every source host its own limiter at perSec requests per second.
func hostLimiters(sources []kb.Source, perSec float64) map[string]*rate.Limiter {
	if perSec <= 0 {
		return nil
	}
	limiters := make(map[string]*rate.Limiter)
	for _, src := range sources {
		u, err := url.Parse(src.URL)
		if err != nil || u.Host == "" {
			continue
		}
		if _, ok := limiters[u.Host]; !ok {
			limiters[u.Host] = rate.NewLimiter(rate.Limit(perSec), 1)
		}
	}
	return limiters
}
