// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package main

import (
	"fmt"

	"github.com/tomtom215/scriptorium/internal/alerting"
	"github.com/tomtom215/scriptorium/internal/api"
	"github.com/tomtom215/scriptorium/internal/audit"
	"github.com/tomtom215/scriptorium/internal/blob"
	"github.com/tomtom215/scriptorium/internal/catalog"
	"github.com/tomtom215/scriptorium/internal/chunk"
	"github.com/tomtom215/scriptorium/internal/config"
	"github.com/tomtom215/scriptorium/internal/dlq"
	"github.com/tomtom215/scriptorium/internal/eventbus"
	"github.com/tomtom215/scriptorium/internal/ledger"
	"github.com/tomtom215/scriptorium/internal/logging"
	"github.com/tomtom215/scriptorium/internal/observer"
	"github.com/tomtom215/scriptorium/internal/pipeline"
	"github.com/tomtom215/scriptorium/internal/policy"
	"github.com/tomtom215/scriptorium/internal/providers"
	"github.com/tomtom215/scriptorium/internal/retrieval"
	"github.com/tomtom215/scriptorium/internal/sinks"
	"github.com/tomtom215/scriptorium/internal/store"
	"github.com/tomtom215/scriptorium/internal/ws"
)

// app holds every wired component plus the handles that need closing.
type app struct {
	cfg *config.Config

	store     *store.Store
	blobs     *blob.Store
	catalog   *catalog.Catalog
	ledger    *ledger.Ledger
	queue     *dlq.Queue
	bus       *eventbus.Bus
	alerts    *alerting.Sink
	semantic  *sinks.SemanticSink
	keyword   *sinks.KeywordSink
	warehouse *sinks.Warehouse

	scraper   *pipeline.Scraper
	disp      *pipeline.Dispatcher
	stages    []pipeline.Stage
	runner    *pipeline.Runner
	scheduler *pipeline.Scheduler
	replayer  *pipeline.Replayer

	engine   *retrieval.Engine
	enforcer *policy.Enforcer
	audits   *audit.Store

	hub      *ws.Hub
	consumer *eventbus.Consumer
	server   *api.Server
}

// buildApp wires the full component graph from config. Failures here are
// configuration or dependency problems, never partial states: nothing
// started running yet.
func buildApp(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	var err error
	if a.store, err = store.Open(store.DefaultConfig(cfg.Storage.MetadataPath)); err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}
	if a.blobs, err = blob.Open(cfg.Storage.BlobDir); err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	var messenger alerting.Messenger
	if cfg.Alerts.Enabled {
		messenger = alerting.NewSlackClient(cfg.Alerts.SlackToken, cfg.Alerts.SlackChannel)
	}
	a.alerts = alerting.New(a.store, alerting.Config{Messenger: messenger})

	if a.ledger, err = ledger.New(a.store, ledger.Config{
		Timezone:              cfg.Scheduler.Timezone,
		TranscriptionDailyUSD: cfg.Budgets.TranscriptionDailyUSD,
		YouTubeDailyUnits:     cfg.Quotas.YouTubeDailyUnits,
		Alerts:                a.alerts,
	}); err != nil {
		return nil, fmt.Errorf("build ledger: %w", err)
	}

	if a.bus, err = eventbus.New(cfg.NATS); err != nil {
		return nil, fmt.Errorf("build event bus: %w", err)
	}
	a.catalog = catalog.New(a.store, catalog.Config{
		MaxDurationSec: cfg.Idempotency.MaxVideoDurationSec,
		Events:         eventbus.NewTransitionPublisher(a.bus),
	})
	a.queue = dlq.New(a.store)

	if a.semantic, err = sinks.NewSemanticSink(cfg.Storage.SemanticPath, cfg.Providers.Embedding.Dimensions, cfg.Providers.Embedding.Model); err != nil {
		return nil, fmt.Errorf("open semantic sink: %w", err)
	}
	if a.keyword, err = sinks.NewKeywordSink(cfg.Storage.KeywordPath); err != nil {
		return nil, fmt.Errorf("open keyword sink: %w", err)
	}
	if a.warehouse, err = sinks.NewWarehouse(cfg.Storage.WarehousePath); err != nil {
		return nil, fmt.Errorf("open warehouse: %w", err)
	}

	lister := providers.NewListingClient(providers.ListingConfig{
		BaseURL:       cfg.Providers.Listing.BaseURL,
		APIKey:        cfg.Providers.Listing.APIKey,
		ChannelHandle: cfg.Providers.Listing.ChannelHandle,
		Timeout:       cfg.Providers.Listing.Timeout,
	})
	var sheet providers.SheetReader
	if cfg.Providers.Sheet.Enabled {
		sheet = providers.NewSheetClient(providers.SheetConfig{
			URL:     cfg.Providers.Sheet.URL,
			Timeout: cfg.Providers.Sheet.Timeout,
		})
	}
	speech := providers.NewSpeechClient(providers.SpeechConfig{
		BaseURL:          cfg.Providers.Speech.BaseURL,
		APIKey:           cfg.Providers.Speech.APIKey,
		Timeout:          cfg.Providers.Speech.Timeout,
		PollBase:         cfg.Providers.Speech.PollBase,
		PollCap:          cfg.Providers.Speech.PollCap,
		PollMaxAttempts:  cfg.Providers.Speech.PollMaxAttempts,
		RatePerMinuteUSD: cfg.Providers.Speech.RatePerMinuteUSD,
	})
	llm, err := providers.NewLLMClient(providers.LLMConfig{
		BaseURL:         cfg.Providers.LLM.BaseURL,
		APIKey:          cfg.Providers.LLM.APIKey,
		Model:           cfg.Providers.LLM.Model,
		MaxOutputTokens: cfg.Providers.LLM.MaxOutputTokens,
		PromptID:        cfg.Providers.LLM.PromptID,
		Timeout:         cfg.Providers.LLM.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("build llm client: %w", err)
	}
	embedder, err := providers.NewEmbedClient(providers.EmbedConfig{
		BaseURL:    cfg.Providers.Embedding.BaseURL,
		APIKey:     cfg.Providers.Embedding.APIKey,
		Model:      cfg.Providers.Embedding.Model,
		Dimensions: cfg.Providers.Embedding.Dimensions,
		Timeout:    cfg.Providers.Embedding.Timeout,
		CacheSize:  cfg.Providers.Embedding.CacheSize,
	})
	if err != nil {
		return nil, fmt.Errorf("build embed client: %w", err)
	}

	chunker, err := chunk.New(chunk.Config{
		MaxTokensPerChunk: cfg.Chunking.MaxTokensPerChunk,
		OverlapTokens:     cfg.Chunking.OverlapTokens,
		Encoding:          cfg.Chunking.Encoding,
	})
	if err != nil {
		return nil, fmt.Errorf("build chunker: %w", err)
	}

	a.disp = pipeline.NewDispatcher(a.catalog, a.queue, a.bus, cfg.Retries, cfg.Pipeline.Concurrency)
	a.stages = []pipeline.Stage{
		pipeline.NewTranscribeStage(a.catalog, a.ledger, a.blobs, speech),
		pipeline.NewSummarizeStage(a.catalog, a.blobs, llm, cfg.Providers.LLM.PromptID),
		pipeline.NewIndexStage(a.catalog, a.blobs, chunker, embedder,
			a.semantic, a.keyword, a.warehouse, cfg.Index.StrictAllSinks),
	}
	a.scraper = pipeline.NewScraper(a.catalog, a.ledger, lister, sheet)

	planner := pipeline.NewPlanner(a.ledger, cfg.Scheduler,
		cfg.Providers.Listing.ChannelHandle, cfg.Providers.Sheet.Enabled)
	obs := observer.New(a.alerts, a.bus)
	a.runner = pipeline.NewRunner(planner, a.scraper, a.disp, a.catalog, a.queue,
		a.stages, obs, cfg.Pipeline.CancelGrace)
	if a.scheduler, err = pipeline.NewScheduler(cfg.Scheduler, a.runner.Run); err != nil {
		return nil, fmt.Errorf("build scheduler: %w", err)
	}
	a.replayer = pipeline.NewReplayer(a.catalog, a.queue, a.disp, a.stages)

	a.audits = audit.NewStore(a.warehouse.DB())
	if a.enforcer, err = policy.New(cfg.Policy, a.audits); err != nil {
		return nil, fmt.Errorf("compile policy: %w", err)
	}
	a.engine = retrieval.NewEngine(
		retrieval.NewRouter(cfg.Routing),
		cfg.Retrieval,
		retrieval.NewSemanticSource(embedder, a.semantic),
		retrieval.NewKeywordSource(a.keyword),
		retrieval.NewStructuredSource(a.warehouse),
	)

	a.hub = ws.NewHub()
	if a.consumer, err = eventbus.NewConsumer(cfg.NATS, a.bus, a.warehouse, a.hub); err != nil {
		return nil, fmt.Errorf("build event consumer: %w", err)
	}

	auth, err := api.NewAuthenticator(cfg.Security)
	if err != nil {
		return nil, fmt.Errorf("build authenticator: %w", err)
	}
	handler := api.NewHandler(a.engine, a.enforcer, a.audits, a.queue, a.replayer,
		a.scheduler, a.catalog, a.ledger, obs, map[string]api.Pinger{
			"semantic":  a.semantic,
			"keyword":   a.keyword,
			"warehouse": a.warehouse,
		})
	router := api.NewRouter(cfg.Security, handler, auth, a.hub)
	a.server = api.NewServer(cfg.Server, router.Routes())

	ok = true
	return a, nil
}

// close releases every opened handle, tolerating partial construction.
func (a *app) close() {
	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			logging.Warn().Err(err).Msg("event consumer close failed")
		}
	}
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			logging.Warn().Err(err).Msg("event bus close failed")
		}
	}
	if a.semantic != nil {
		if err := a.semantic.Close(); err != nil {
			logging.Warn().Err(err).Msg("semantic sink close failed")
		}
	}
	if a.keyword != nil {
		if err := a.keyword.Close(); err != nil {
			logging.Warn().Err(err).Msg("keyword sink close failed")
		}
	}
	if a.warehouse != nil {
		if err := a.warehouse.Close(); err != nil {
			logging.Warn().Err(err).Msg("warehouse close failed")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logging.Warn().Err(err).Msg("metadata store close failed")
		}
	}
}
