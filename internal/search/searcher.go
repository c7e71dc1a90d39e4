package search

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/young1lin/browsersearch/internal/browser"
	"github.com/young1lin/browsersearch/internal/config"
	"github.com/young1lin/browsersearch/internal/models"
	"github.com/young1lin/browsersearch/internal/snapshot"
	"github.com/young1lin/browsersearch/pkg/logger"
)

// SourceGoogle identifies results scraped from Google.
const SourceGoogle = "google"

// Browser is the subset of the browser driver a Searcher needs.
type Browser interface {
	Ensure(ctx context.Context) browser.EnsureResult
	Open(ctx context.Context, url string) error
	Snapshot(ctx context.Context) ([]byte, error)
	ParseSnapshot(out []byte) (*snapshot.Element, error)
}

// NotReadyError is returned when the browser binary is missing and could not be installed.
// Its message is the manual install guidance.
type NotReadyError struct {
	Instructions string
}

func (e *NotReadyError) Error() string {
	return e.Instructions
}

// Searcher runs Google searches through the browser binary.
// It remembers a successful bootstrap for its lifetime; construct one per process.
type Searcher struct {
	browser Browser
	engine  string
	filter  snapshot.Filter
	log     *zap.Logger

	ready     atomic.Bool
	bootstrap singleflight.Group

	// page guards the browser's single current page from open through snapshot
	page sync.Mutex
}

// NewSearcher creates a Searcher
func NewSearcher(b Browser, cfg *config.SearchConfig, log *zap.Logger) *Searcher {
	engine := cfg.Engine
	if engine == "" {
		engine = DefaultEngine
	}
	return &Searcher{
		browser: b,
		engine:  engine,
		filter:  snapshot.NewFilter(cfg.BlockedDomains),
		log:     logger.OrNop(log).Named("search"),
	}
}

// Name returns the provider name
func (s *Searcher) Name() string {
	return SourceGoogle
}

// Ready reports whether a bootstrap has succeeded.
func (s *Searcher) Ready() bool {
	return s.ready.Load()
}

// Reset forgets a previous successful bootstrap.
func (s *Searcher) Reset() {
	s.ready.Store(false)
}

// Ensure makes sure the browser binary is installed. Concurrent callers share one
// bootstrap; a caller whose ctx ends stops waiting but does not abort the bootstrap.
func (s *Searcher) Ensure(ctx context.Context) (browser.EnsureResult, error) {
	if s.ready.Load() {
		return browser.EnsureResult{Ready: true}, nil
	}

	ch := s.bootstrap.DoChan("ensure", func() (any, error) {
		if s.ready.Load() {
			return browser.EnsureResult{Ready: true}, nil
		}
		res := s.browser.Ensure(context.WithoutCancel(ctx))
		if res.Ready {
			s.ready.Store(true)
		}
		return res, nil
	})

	select {
	case <-ctx.Done():
		return browser.EnsureResult{}, ctx.Err()
	case r := <-ch:
		return r.Val.(browser.EnsureResult), nil
	}
}

// PerformSearch validates the query, makes sure the browser is ready, loads the
// results page and extracts up to limit results from its accessibility snapshot.
func (s *Searcher) PerformSearch(ctx context.Context, query string, limit any) (*models.SearchResponse, error) {
	q, err := ValidateInput(query, limit)
	if err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx, s.log)

	res, err := s.Ensure(ctx)
	if err != nil {
		return nil, err
	}
	if !res.Ready {
		return nil, &NotReadyError{Instructions: res.Instructions}
	}

	start := time.Now()
	out, err := s.loadPage(ctx, buildSearchURL(s.engine, q.Text, q.Limit))
	if err != nil {
		return nil, err
	}

	root, err := s.browser.ParseSnapshot(out)
	if err != nil {
		return nil, err
	}
	if root == nil {
		log.Warn("snapshot output has no snapshot field", zap.Int("bytes", len(out)))
	}

	results := snapshot.Extract(root, q.Limit, s.filter)

	log.Info("search completed",
		zap.String("provider", SourceGoogle),
		zap.String("query", q.Text),
		zap.Int("limit", q.Limit),
		zap.Int("result_count", len(results)),
		zap.Duration("elapsed", time.Since(start)),
	)

	return &models.SearchResponse{
		Results: results,
		Source:  SourceGoogle,
		Query:   q.Text,
	}, nil
}

// loadPage opens searchURL and snapshots it while holding the page lock.
func (s *Searcher) loadPage(ctx context.Context, searchURL string) ([]byte, error) {
	s.page.Lock()
	defer s.page.Unlock()

	if err := s.browser.Open(ctx, searchURL); err != nil {
		return nil, err
	}
	return s.browser.Snapshot(ctx)
}
