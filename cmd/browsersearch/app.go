package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/young1lin/browsersearch/internal/browser"
	"github.com/young1lin/browsersearch/internal/config"
	"github.com/young1lin/browsersearch/internal/runner"
	"github.com/young1lin/browsersearch/internal/search"
	"github.com/young1lin/browsersearch/internal/storage"
	"github.com/young1lin/browsersearch/pkg/logger"
)

// app holds the wired components shared by every subcommand
type app struct {
	cfg      *config.Config
	searcher *search.Searcher
	manager  *search.Manager
	cache    *storage.ResultCache
}

func newApp(cfg *config.Config, log *zap.Logger) *app {
	driver := browser.NewDriver(runner.New(runner.WithLogger(log)), &cfg.Browser, log)
	searcher := search.NewSearcher(driver, &cfg.Search, log)

	a := &app{cfg: cfg, searcher: searcher}

	// a nil *ResultCache must not reach the manager as a non-nil interface
	var cache search.Cache
	if cfg.Cache.Enabled {
		rc, err := storage.NewResultCache(cfg.Cache.Path, time.Duration(cfg.Cache.TTL)*time.Second)
		if err != nil {
			log.Warn("result cache disabled", zap.String("path", cfg.Cache.Path), zap.Error(err))
		} else {
			a.cache = rc
			cache = rc
		}
	}

	a.manager = search.NewManager(searcher, cache, &cfg.Search, log)
	return a
}

// purgeLoop drops expired cache entries until ctx is done
func (a *app) purgeLoop(ctx context.Context) {
	if a.cache == nil || a.cfg.Cache.TTL <= 0 {
		return
	}

	log := logger.Named("cache")
	ticker := time.NewTicker(time.Duration(a.cfg.Cache.TTL) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.cache.Purge()
			if err != nil {
				log.Warn("cache purge failed", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Info("purged expired cache entries", zap.Int("count", n))
			}
		}
	}
}

func (a *app) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			logger.Warn("failed to close result cache", zap.Error(err))
		}
	}
	logger.Sync()
}
