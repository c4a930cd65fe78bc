package main

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/keilerkonzept/sshdash/internal/api"
	"github.com/keilerkonzept/sshdash/internal/cache"
	"github.com/keilerkonzept/sshdash/internal/config"
	"github.com/keilerkonzept/sshdash/internal/dataset"
	"github.com/keilerkonzept/sshdash/internal/filter"
	"github.com/keilerkonzept/sshdash/internal/metrics"
	"github.com/keilerkonzept/sshdash/internal/trend"
	"github.com/keilerkonzept/sshdash/internal/view"
)

// app holds everything the commands share: the backend client with its
// cache and metrics, and the logger.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	client  *api.Client
	metrics *metrics.Fetch
	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	a.metrics = metrics.NewFetch(cfg.UI.StatsWindow)
	a.metrics.SetEnabled(cfg.UI.Stats)

	var store cache.Store = cache.Nop{}
	if cfg.Cache.Size > 0 {
		store = cache.NewMemory(cfg.Cache.Size, cfg.Cache.TTL)
	}
	if cfg.Cache.RedisAddr != "" {
		r, err := cache.DialRedis(ctx, cfg.Cache.RedisAddr, cfg.Cache.TTL, log)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		a.closers = append(a.closers, r.Close)
		store = cache.Tiered{Local: store, Remote: r}
	}

	a.client = api.New(cfg.API.BaseURL,
		api.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout}),
		api.WithRateLimit(cfg.API.RPS, cfg.API.Burst),
		api.WithCache(store),
		api.WithLogger(log),
		api.WithMetrics(a.metrics),
	)
	return a, nil
}

func (a *app) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// initialRange is the configured range, else the dataset's own range,
// else the built-in default.
func (a *app) initialRange(ctx context.Context) dataset.DateRange {
	if r, ok, err := a.cfg.InitialRange(); err == nil && ok {
		return r
	}
	r, err := a.client.DateRange(ctx)
	if err != nil {
		a.log.Warn("date range lookup failed, using default", zap.Error(err))
		return dataset.DefaultRange
	}
	return r
}

func (a *app) coordinator(ctx context.Context) *view.Coordinator {
	state := filter.New(a.initialRange(ctx))
	return view.New(state, a.client,
		view.WithLogger(a.log),
		view.WithMetrics(a.metrics),
		view.WithTopN(a.cfg.UI.TopN),
	)
}

func (a *app) tracker() *trend.Tracker {
	t := a.cfg.Trend
	return trend.New(trend.Options{
		K:          t.K,
		WindowDays: t.WindowDays,
		Width:      t.Width,
		Depth:      t.Depth,
		Decay:      t.Decay,
	})
}
