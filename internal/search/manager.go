package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/young1lin/browsersearch/internal/config"
	"github.com/young1lin/browsersearch/internal/models"
	"github.com/young1lin/browsersearch/pkg/logger"
)

// ErrRateLimited is returned when a caller gives up waiting for its turn.
var ErrRateLimited = errors.New("search rate limit exceeded")

// Manager fronts a provider with caching and rate limiting
type Manager struct {
	provider Provider
	cache    Cache
	limiter  *rate.Limiter
	log      *zap.Logger
}

// NewManager creates a new search manager. cache may be nil.
func NewManager(p Provider, cache Cache, cfg *config.SearchConfig, log *zap.Logger) *Manager {
	m := &Manager{
		provider: p,
		cache:    cache,
		log:      logger.OrNop(log).Named("manager"),
	}

	if cfg.RatePerMinute > 0 {
		m.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMinute)), 1)
	}

	m.log.Info("search manager initialized",
		zap.String("provider", p.Name()),
		zap.Bool("cache", cache != nil),
		zap.Int("rate_per_minute", cfg.RatePerMinute),
	)

	return m
}

// Search validates the request, serves it from cache when possible and otherwise
// asks the provider.
func (m *Manager) Search(ctx context.Context, query string, limit any) (*models.SearchResponse, error) {
	q, err := ValidateInput(query, limit)
	if err != nil {
		return nil, err
	}

	if logger.TraceIDFromContext(ctx) == "" {
		ctx = logger.ContextWithTraceID(ctx, uuid.NewString())
	}
	log := logger.FromContext(ctx, m.log)

	key := cacheKey(q)
	if m.cache != nil {
		if resp, ok := m.cache.Get(key); ok {
			log.Debug("search cache hit", zap.String("query", q.Text), zap.Int("limit", q.Limit))
			return resp, nil
		}
	}

	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			log.Warn("search rate limited", zap.String("query", q.Text), zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
	}

	resp, err := m.provider.PerformSearch(ctx, q.Text, q.Limit)
	if err != nil {
		log.Error("search failed",
			zap.String("provider", m.provider.Name()),
			zap.String("query", q.Text),
			zap.Error(err),
		)
		return nil, err
	}

	if m.cache != nil {
		if err := m.cache.Put(key, resp); err != nil {
			log.Warn("failed to cache search response", zap.Error(err))
		}
	}

	return resp, nil
}

func cacheKey(q models.SearchQuery) string {
	return fmt.Sprintf("%s|%d", q.Text, q.Limit)
}

// FormatResults formats search results as a string for tool message content
func FormatResults(resp *models.SearchResponse) string {
	if resp == nil || len(resp.Results) == 0 {
		return "No search results found."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Search results for: %s\n\n", resp.Query)
	for i, r := range resp.Results {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r.Title)
		fmt.Fprintf(&b, "   URL: %s\n", r.URL)
		if r.Description != "" {
			fmt.Fprintf(&b, "   Summary: %s\n", r.Description)
		}
		b.WriteString("\n")
	}

	return b.String()
}
