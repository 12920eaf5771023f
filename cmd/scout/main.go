package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/modelscout/modelscout/internal/config"
	"github.com/modelscout/modelscout/internal/domain/catalog"
	"github.com/modelscout/modelscout/internal/domain/safety"
	"github.com/modelscout/modelscout/internal/domain/translate"
	"github.com/modelscout/modelscout/internal/gateway"
	"github.com/modelscout/modelscout/internal/infrastructure/logger"
	"github.com/modelscout/modelscout/internal/infrastructure/scheduler"
	"github.com/modelscout/modelscout/internal/pipeline"
	"github.com/modelscout/modelscout/internal/ratelimit"
	"github.com/modelscout/modelscout/internal/source"
	"github.com/modelscout/modelscout/internal/utils/httpclients"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.GetLogger()
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		bootLog := logger.GetLogger()
		bootLog.Fatal().Err(err).Msg("failed to configure logger")
	}
	log.Info().Str("version", config.Version).Msg("modelscout starting")

	directory, err := config.LoadProviderDirectory(cfg.ProviderConfigFile)
	if err != nil {
		log.Warn().Err(err).Msg("no provider directory loaded, provider-backed stages disabled")
		directory = nil
	}

	limiter := ratelimit.NewForTier(ratelimit.Tier(cfg.RateLimitTier))
	gw := gateway.New(limiter, gateway.WithTimeout(cfg.HTTPTimeout))

	var proxy httpclients.ProxyFunc
	if cfg.ProxyBaseURL != "" {
		base := strings.TrimRight(cfg.ProxyBaseURL, "/")
		proxy = func(rawURL string) string { return base + "/" + rawURL }
	}

	var catalogs []pipeline.Catalog
	if cfg.SourceEnabled(string(catalog.SourceCivitai)) {
		catalogs = append(catalogs, source.NewCivitai(cfg.CivitaiBaseURL, proxy, limiter))
	}
	if cfg.SourceEnabled(string(catalog.SourceArchiveFeed)) && cfg.ArchiveFeedURL != "" {
		catalogs = append(catalogs, source.NewArchiveFeed(cfg.ArchiveFeedURL, proxy, limiter))
	}
	if cfg.SourceEnabled(string(catalog.SourceProvider)) && directory != nil {
		catalogs = append(catalogs, source.NewProviderCatalog(gw, directory))
	}
	if len(catalogs) == 0 {
		log.Fatal().Msg("no sources enabled")
	}

	opts := []pipeline.Option{}
	if cfg.ContentFilterEnabled && cfg.ContentFilterAssisted && directory != nil {
		if enabled := directory.Enabled(); len(enabled) > 0 {
			p := enabled[0]
			opts = append(opts, pipeline.WithClassifier(safety.NewClassifier(gw, p.Key, p)))
		}
	}
	if cfg.TranslationEnabled {
		opts = append(opts, pipeline.WithTranslator(translate.New(gw, directory)))
	}

	observer := pipeline.NewChannelObserver(256)
	opts = append(opts, pipeline.WithObserver(observer))
	go func() {
		for e := range observer.Events() {
			log.Debug().
				Str("run_id", e.RunID.String()).
				Str("kind", string(e.Kind)).
				Str("source", e.Source).
				Int("page", e.Page).
				Int("count", e.Count).
				Msg(e.Message)
		}
	}()

	pipe := pipeline.New(catalogs, safety.NewFilter(cfg.ContentFilterEnabled), opts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runSync := func(ctx context.Context) {
		result, err := pipe.Run(ctx, nil)
		if err != nil {
			log.Error().Err(err).Msg("sync pass aborted")
			return
		}
		if err := json.NewEncoder(os.Stdout).Encode(result.Summary); err != nil {
			log.Error().Err(err).Msg("failed to write summary")
		}
	}

	sched := scheduler.New(cfg.SyncIntervalMinutes, runSync)
	if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("scheduler stopped")
	}
	log.Info().Msg("modelscout shut down")
}
