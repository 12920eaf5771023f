package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/modelscout/modelscout/internal/domain/catalog"
	"github.com/modelscout/modelscout/internal/infrastructure/logger"
)

const (
	defaultBatchSize  = 5
	defaultBatchDelay = 500 * time.Millisecond
)

// PageFunc fetches and parses one page of a catalog. Page numbers start at 1.
// Returning an empty slice signals end-of-feed.
type PageFunc func(ctx context.Context, page int) ([]catalog.ModelRecord, error)

// ProgressFunc receives per-page counters as pages complete.
type ProgressFunc func(page, count int)

// Fetcher walks a paginated catalog in concurrent batches until it sees an
// empty page. Pages of the terminal batch that precede the empty page are
// still applied, in ascending page order, so the downstream merge sees a
// deterministic sequence.
type Fetcher struct {
	name       string
	fetchPage  PageFunc
	batchSize  int
	batchDelay time.Duration
	progress   ProgressFunc
}

// FetcherOption customizes a Fetcher.
type FetcherOption func(*Fetcher)

// WithBatchSize sets how many pages are requested in parallel per batch.
func WithBatchSize(n int) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.batchSize = n
		}
	}
}

// WithBatchDelay sets the politeness delay between batches.
func WithBatchDelay(d time.Duration) FetcherOption {
	return func(f *Fetcher) { f.batchDelay = d }
}

// WithProgress registers a callback invoked once per fetched page.
func WithProgress(fn ProgressFunc) FetcherOption {
	return func(f *Fetcher) { f.progress = fn }
}

// NewFetcher builds a Fetcher for the named catalog.
func NewFetcher(name string, fetchPage PageFunc, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		name:       name,
		fetchPage:  fetchPage,
		batchSize:  defaultBatchSize,
		batchDelay: defaultBatchDelay,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchAll drains the catalog and returns its records, deduplicated within
// this run. It returns an error only when the context is cancelled; page
// failures end pagination after one retry and are logged, not surfaced.
func (f *Fetcher) FetchAll(ctx context.Context) ([]catalog.ModelRecord, error) {
	log := logger.GetLogger()
	seen := make(map[string]struct{})
	var records []catalog.ModelRecord

	for start := 1; ; start += f.batchSize {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		if start > 1 {
			if err := sleepCtx(ctx, f.batchDelay); err != nil {
				return records, err
			}
		}

		pages := make([][]catalog.ModelRecord, f.batchSize)
		g, gctx := errgroup.WithContext(ctx)
		for i := 0; i < f.batchSize; i++ {
			i := i
			page := start + i
			g.Go(func() error {
				items, err := f.fetchOnce(gctx, page)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					// A page that fails twice ends pagination like an
					// empty page would, but loudly.
					log.Warn().
						Str("source", f.name).
						Int("page", page).
						Err(err).
						Msg("page fetch failed after retry, treating as end of feed")
					items = nil
				}
				pages[i] = items
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return records, err
		}

		done := false
		for i, items := range pages {
			page := start + i
			if len(items) == 0 {
				done = true
				break
			}
			kept := 0
			for idx, r := range items {
				key := identityKey(f.name, r, page, idx)
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				if r.ID == "" {
					r.ID = key
				}
				records = append(records, r)
				kept++
			}
			if f.progress != nil {
				f.progress(page, kept)
			}
			log.Debug().
				Str("source", f.name).
				Int("page", page).
				Int("items", kept).
				Msg("page fetched")
		}
		if done {
			return records, nil
		}
	}
}

// fetchOnce retries a failed page a single time before giving up.
func (f *Fetcher) fetchOnce(ctx context.Context, page int) ([]catalog.ModelRecord, error) {
	items, err := f.fetchPage(ctx, page)
	if err == nil || ctx.Err() != nil {
		return items, err
	}
	return f.fetchPage(ctx, page)
}

// identityKey dedups items inside one run: explicit id first, then the
// trailing segment of the item URL, then a synthesized page/index key.
func identityKey(source string, r catalog.ModelRecord, page, idx int) string {
	if r.ID != "" {
		return r.ID
	}
	if tail := urlTail(r.URL); tail != "" {
		return fmt.Sprintf("%s:%s", source, tail)
	}
	return fmt.Sprintf("%s:p%d-%d", source, page, idx)
}

func urlTail(rawURL string) string {
	trimmed := strings.TrimRight(rawURL, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return ""
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
