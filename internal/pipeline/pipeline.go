package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/modelscout/modelscout/internal/domain/catalog"
	"github.com/modelscout/modelscout/internal/domain/safety"
	"github.com/modelscout/modelscout/internal/domain/translate"
	"github.com/modelscout/modelscout/internal/infrastructure/logger"
	"github.com/modelscout/modelscout/internal/source"
)

// Catalog is one ingestible source of model records.
type Catalog interface {
	Name() string
	Fetcher(opts ...source.FetcherOption) *source.Fetcher
}

// Pipeline runs every configured catalog concurrently, filters, merges, and
// optionally translates the combined result. A failing catalog contributes an
// empty result; a run never fails as a whole except on cancellation.
type Pipeline struct {
	catalogs   []Catalog
	filter     *safety.Filter
	classifier *safety.Classifier
	merger     *catalog.Merger
	translator *translate.Translator
	observer   Observer
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithClassifier enables the assisted safety stage after the lexical one.
func WithClassifier(c *safety.Classifier) Option {
	return func(p *Pipeline) { p.classifier = c }
}

// WithTranslator enables CJK translation of the merged collection.
func WithTranslator(t *translate.Translator) Option {
	return func(p *Pipeline) { p.translator = t }
}

// WithObserver registers a progress observer.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// WithMerger replaces the default merge policy.
func WithMerger(m *catalog.Merger) Option {
	return func(p *Pipeline) { p.merger = m }
}

// New builds a Pipeline over the given catalogs and lexical filter.
func New(catalogs []Catalog, filter *safety.Filter, opts ...Option) *Pipeline {
	p := &Pipeline{
		catalogs: catalogs,
		filter:   filter,
		merger:   catalog.NewMerger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Result is the terminal outcome of one pipeline run.
type Result struct {
	RunID    uuid.UUID                      `json:"run_id"`
	BySource map[string]catalog.FetchResult `json:"by_source"`
	Records  []catalog.ModelRecord          `json:"records"`
	Flagged  []catalog.ModelRecord          `json:"flagged"`
	Summary  catalog.SyncSummary            `json:"summary"`
}

// Run executes one sync pass, folding the fetched records into existing.
// It returns an error only when the context is cancelled.
func (p *Pipeline) Run(ctx context.Context, existing []catalog.ModelRecord) (*Result, error) {
	log := logger.GetLogger()
	runID := uuid.New()

	var mu sync.Mutex
	bySource := make(map[string]catalog.FetchResult, len(p.catalogs))

	g, gctx := errgroup.WithContext(ctx)
	for _, cat := range p.catalogs {
		cat := cat
		g.Go(func() error {
			result, err := p.runSource(gctx, runID, cat)
			if err != nil {
				if gctx.Err() != nil {
					return err
				}
				// Isolation: a broken catalog yields an empty result
				// while its siblings complete normally.
				log.Error().
					Str("source", cat.Name()).
					Err(err).
					Msg("source failed, continuing with empty result")
				p.emit(Event{
					RunID:   runID,
					Kind:    EventSourceFailed,
					Source:  cat.Name(),
					Message: err.Error(),
				})
				result = catalog.FetchResult{}
			}
			mu.Lock()
			bySource[cat.Name()] = result
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Apply sources in their configured order so merge outcomes are
	// deterministic regardless of which goroutine finished first.
	var incoming, flagged []catalog.ModelRecord
	for _, cat := range p.catalogs {
		r := bySource[cat.Name()]
		incoming = append(incoming, r.Complete...)
		flagged = append(flagged, r.Flagged...)
	}

	merged, summary := p.merger.Merge(existing, incoming)
	summary.Found += len(flagged)
	summary.Flagged = len(flagged)
	p.emit(Event{
		RunID:   runID,
		Kind:    EventMerged,
		Count:   summary.Added,
		Message: fmt.Sprintf("merged %d records: %d added, %d updated, %d duplicates", summary.Found, summary.Added, summary.Updated, summary.Duplicates),
	})

	if p.translator != nil {
		merged = p.translator.Translate(ctx, merged)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p.emit(Event{RunID: runID, Kind: EventTranslated, Count: len(merged)})
	}

	log.Info().
		Str("run_id", runID.String()).
		Int("found", summary.Found).
		Int("added", summary.Added).
		Int("updated", summary.Updated).
		Int("flagged", summary.Flagged).
		Int("duplicates", summary.Duplicates).
		Msg("sync pass complete")

	return &Result{
		RunID:    runID,
		BySource: bySource,
		Records:  merged,
		Flagged:  flagged,
		Summary:  summary,
	}, nil
}

// runSource drains one catalog and pushes its records through the safety
// stages.
func (p *Pipeline) runSource(ctx context.Context, runID uuid.UUID, cat Catalog) (catalog.FetchResult, error) {
	p.emit(Event{RunID: runID, Kind: EventSourceStarted, Source: cat.Name()})

	fetcher := cat.Fetcher(source.WithProgress(func(page, count int) {
		p.emit(Event{
			RunID:  runID,
			Kind:   EventPageFetched,
			Source: cat.Name(),
			Page:   page,
			Count:  count,
		})
	}))

	records, err := fetcher.FetchAll(ctx)
	if err != nil {
		return catalog.FetchResult{}, err
	}

	result := p.filter.Partition(records)
	if p.classifier != nil {
		result = p.classifier.Refine(ctx, result)
	}
	p.emit(Event{
		RunID:   runID,
		Kind:    EventFiltered,
		Source:  cat.Name(),
		Count:   len(result.Complete),
		Message: fmt.Sprintf("%d complete, %d flagged", len(result.Complete), len(result.Flagged)),
	})
	p.emit(Event{
		RunID:  runID,
		Kind:   EventSourceFinished,
		Source: cat.Name(),
		Count:  len(records),
	})
	return result, nil
}

func (p *Pipeline) emit(e Event) {
	if p.observer != nil {
		p.observer.Progress(e)
	}
}
