package search

import (
	"context"

	"github.com/young1lin/browsersearch/internal/models"
)

// Provider defines the interface for search providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// PerformSearch runs query and returns at most limit results
	PerformSearch(ctx context.Context, query string, limit any) (*models.SearchResponse, error)
}

// Cache stores search responses between calls
type Cache interface {
	Get(key string) (*models.SearchResponse, bool)
	Put(key string, resp *models.SearchResponse) error
}
