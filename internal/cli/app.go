package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/calvinalkan/thumbs/internal/config"
	"github.com/calvinalkan/thumbs/internal/grid"
	"github.com/calvinalkan/thumbs/internal/imaging"
	"github.com/calvinalkan/thumbs/internal/jobq"
	"github.com/calvinalkan/thumbs/internal/logger"
	"github.com/calvinalkan/thumbs/internal/metrics"
	"github.com/calvinalkan/thumbs/internal/thumbcache"
	"github.com/calvinalkan/thumbs/pkg/fs"
)

// app holds what every command shares: resolved config, logger, metrics,
// the codec and the disk cache.
type app struct {
	cfg   config.Config
	env   map[string]string
	log   *slog.Logger
	reg   *prometheus.Registry
	fs    fs.FS
	codec *imaging.Codec
	cache *thumbcache.Cache
	grid  *metrics.GridMetrics
	jobs  *metrics.JobMetrics
}

func newApp(cfg config.Config, env map[string]string, logOut io.Writer) (*app, error) {
	log, err := logger.New(logOut, cfg.LoggerConfig())
	if err != nil {
		return nil, err
	}

	reg := metrics.NewRegistry()
	fsys := fs.NewReal()
	codec := imaging.NewCodec(fsys, log)

	cache, err := thumbcache.New(thumbcache.Options{
		Root:    cfg.CacheRoot,
		Private: cfg.Private,
		FS:      fsys,
		Codec:   codec,
		Logger:  log,
		Metrics: metrics.NewCacheMetrics(reg),
	})
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	return &app{
		cfg:   cfg,
		env:   env,
		log:   log,
		reg:   reg,
		fs:    fsys,
		codec: codec,
		cache: cache,
		grid:  metrics.NewGridMetrics(reg),
		jobs:  metrics.NewJobMetrics(reg),
	}, nil
}

func (a *app) newEngine(files grid.Collection) (*grid.Engine, error) {
	e, err := grid.New(grid.Options{
		Files:          files,
		Cache:          a.cache,
		Codec:          a.codec,
		ThumbSizes:     a.cfg.ThumbSizes,
		ZoomLevel:      a.cfg.ZoomLevel,
		GridGap:        a.cfg.GridGap,
		PrefetchMargin: a.cfg.PrefetchMargin,
		Logger:         a.log,
		Metrics:        a.grid,
	})
	if err != nil {
		return nil, fmt.Errorf("create grid: %w", err)
	}

	return e, nil
}

// startPrefetcher starts a decode pool for e. The returned stop function
// shuts the pool down; call it before closing e.
func (a *app) startPrefetcher(ctx context.Context, e *grid.Engine) (*grid.Prefetcher, func() error, error) {
	pool, err := grid.NewDecodePool(e, jobq.Options{
		Workers:  a.cfg.Workers,
		Capacity: a.cfg.QueueCapacity,
		Logger:   a.log,
		Metrics:  a.jobs,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create decode pool: %w", err)
	}

	pool.Start(ctx)

	return grid.NewPrefetcher(e, pool, a.log), pool.Stop, nil
}
