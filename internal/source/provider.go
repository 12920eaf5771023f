package source

import (
	"context"

	"github.com/modelscout/modelscout/internal/config"
	"github.com/modelscout/modelscout/internal/domain/catalog"
	"github.com/modelscout/modelscout/internal/infrastructure/logger"
)

// Lister is the listing surface the provider catalog needs from the gateway.
type Lister interface {
	ListModels(ctx context.Context, key string, cfg config.Provider) ([]catalog.ModelRecord, error)
}

// ProviderCatalog exposes the enabled providers' model listings as one more
// paginated source: a single page holding every listing, then end-of-feed.
type ProviderCatalog struct {
	lister    Lister
	directory *config.ProviderDirectory
}

// NewProviderCatalog builds the catalog over all enabled providers.
func NewProviderCatalog(lister Lister, directory *config.ProviderDirectory) *ProviderCatalog {
	return &ProviderCatalog{lister: lister, directory: directory}
}

// Name returns the catalog identifier.
func (c *ProviderCatalog) Name() string { return string(catalog.SourceProvider) }

// Fetcher returns a pagination driver over this catalog.
func (c *ProviderCatalog) Fetcher(opts ...FetcherOption) *Fetcher {
	return NewFetcher(c.Name(), c.FetchPage, opts...)
}

// FetchPage returns every enabled provider's listing on page 1. A provider
// that fails to list is skipped with a warning; its siblings still land.
func (c *ProviderCatalog) FetchPage(ctx context.Context, page int) ([]catalog.ModelRecord, error) {
	if page > 1 || c.directory == nil {
		return nil, nil
	}
	log := logger.GetLogger()

	var records []catalog.ModelRecord
	for _, p := range c.directory.Enabled() {
		listed, err := c.lister.ListModels(ctx, p.Key, p)
		if err != nil {
			if ctx.Err() != nil {
				return records, ctx.Err()
			}
			log.Warn().
				Str("provider", p.Key).
				Err(err).
				Msg("provider listing failed, skipping")
			continue
		}
		records = append(records, listed...)
	}
	return records, nil
}
