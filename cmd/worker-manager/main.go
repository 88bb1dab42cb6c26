package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"query-orchestrator/internal/clients/genai"
	"query-orchestrator/internal/common/camunda"
	"query-orchestrator/internal/common/config"
	"query-orchestrator/internal/common/database"
	"query-orchestrator/internal/common/logger"
	"query-orchestrator/internal/common/observability"
	"query-orchestrator/internal/engine"
	"query-orchestrator/internal/engine/cache"
	"query-orchestrator/internal/operations"
	"query-orchestrator/internal/store/places"
	oq "query-orchestrator/internal/workers/ai-conversation/orchestrate-query"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	log.Info("starting worker manager", map[string]interface{}{
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	})

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		log.Warn("observability disabled", map[string]interface{}{"error": err.Error()})
	}
	defer obs.Shutdown(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Postgres ---
	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		zapLog.Fatal("postgres setup failed", zap.Error(err))
	}
	defer pg.Close()
	if err := database.ConnectWithRetry(ctx, log, "PostgreSQL connection", 15, 2*time.Second, pg.Ping); err != nil {
		zapLog.Fatal("postgres unavailable", zap.Error(err))
	}
	placeStore := places.NewStore(pg.DB, log)
	if err := placeStore.EnsureSchema(ctx); err != nil {
		zapLog.Fatal("places schema failed", zap.Error(err))
	}

	// --- Elasticsearch ---
	es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
	if err != nil {
		zapLog.Fatal("elasticsearch setup failed", zap.Error(err))
	}
	if err := database.ConnectWithRetry(ctx, log, "Elasticsearch connection", 15, 2*time.Second, es.Ping); err != nil {
		zapLog.Fatal("elasticsearch unavailable", zap.Error(err))
	}

	// --- Result cache store ---
	var (
		store cache.Store
		rdb   *database.RedisClient
	)
	switch cfg.Orchestrator.CacheBackend {
	case config.CacheBackendRedis:
		rdb = database.NewRedis(cfg.Database.Redis)
		defer rdb.Close()
		if err := database.ConnectWithRetry(ctx, log, "Redis connection", 10, 2*time.Second, rdb.Ping); err != nil {
			zapLog.Fatal("redis unavailable", zap.Error(err))
		}
		store = cache.NewRedisStore(rdb.Client, cfg.Orchestrator.CacheKeyPrefix)
	default:
		store = cache.NewMemoryStore()
	}

	// --- Engine ---
	ops := operations.NewFromSources(sourcesFromConfig(cfg, es, pg), log)
	reasoning := genai.NewClient(genai.Config{
		BaseURL:     cfg.APIs.GenAI.BaseURL,
		APIKey:      cfg.APIs.GenAI.APIKey,
		Timeout:     config.GetDuration(cfg.APIs.GenAI.Timeout),
		MaxTokens:   cfg.APIs.GenAI.MaxTokens,
		Temperature: cfg.APIs.GenAI.Temperature,
		MaxRetries:  cfg.APIs.GenAI.MaxRetries,
	}, log)

	eng, err := engine.Build(cfg.Orchestrator, engine.Backends{
		Reasoning:  reasoning,
		Operations: ops,
		Store:      store,
	}, log)
	if err != nil {
		zapLog.Fatal("engine setup failed", zap.Error(err))
	}
	defer eng.Close()
	go eng.RunSweeper(ctx, config.GetDuration(cfg.Orchestrator.SweepInterval))

	// --- Zeebe worker ---
	zeebe, err := camunda.NewClient(cfg.Camunda.BrokerAddress)
	if err != nil {
		zapLog.Fatal("zeebe client failed", zap.Error(err))
	}
	defer zeebe.Close()

	var workers []*camunda.Worker
	if config.IsWorkerEnabled(cfg, oq.TaskType) {
		wcfg := oq.LoadConfig(cfg)
		handler := oq.NewHandler(wcfg, eng.Orchestrator, placeStore, obs, log)
		workers = append(workers, camunda.StartWorker(zeebe.GetClient(), camunda.WorkerOptions{
			TaskType:      oq.TaskType,
			MaxJobsActive: wcfg.MaxJobsActive,
			Timeout:       wcfg.Timeout,
		}, handler.Handle, log))
	}

	// --- Health & metrics ---
	checks := map[string]readinessCheck{"postgres": pg.Ping, "elasticsearch": es.Ping}
	if rdb != nil {
		checks["redis"] = rdb.Ping
	}
	srv := newServer(cfg.App.Port, checks, log)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != errServerClosed {
			log.Error("health server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, w := range workers {
		w.Stop(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("health server shutdown failed", map[string]interface{}{"error": err.Error()})
	}
	log.Info("worker manager stopped", nil)
}

func sourcesFromConfig(cfg *config.Config, es *database.ElasticsearchClient, pg *database.PostgresClient) operations.Sources {
	httpSource := func(api config.HTTPAPIConfig) operations.HTTPConfig {
		return operations.HTTPConfig{BaseURL: api.BaseURL, APIKey: api.APIKey, Timeout: config.GetDuration(api.Timeout)}
	}
	return operations.Sources{
		Search:            es.Client,
		PlacesIndex:       cfg.Database.Elasticsearch.PlacesIndex,
		DB:                pg.DB,
		Weather:           httpSource(cfg.APIs.Weather),
		Events:            httpSource(cfg.APIs.Events),
		Geocode:           httpSource(cfg.APIs.Geocode),
		IPGeolocation:     httpSource(cfg.APIs.IPGeolocation),
		Photos:            httpSource(cfg.APIs.Photos),
		WebSearch:         httpSource(cfg.APIs.WebSearch.HTTPAPIConfig),
		WebSearchEngineID: cfg.APIs.WebSearch.EngineID,
	}
}
