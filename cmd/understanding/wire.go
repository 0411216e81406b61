package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/iammorganparry/clive/apps/understanding/internal/api"
	"github.com/iammorganparry/clive/apps/understanding/internal/clock"
	"github.com/iammorganparry/clive/apps/understanding/internal/config"
	"github.com/iammorganparry/clive/apps/understanding/internal/embedding"
	"github.com/iammorganparry/clive/apps/understanding/internal/goals"
	"github.com/iammorganparry/clive/apps/understanding/internal/intent"
	"github.com/iammorganparry/clive/apps/understanding/internal/memory"
	"github.com/iammorganparry/clive/apps/understanding/internal/personalization"
	"github.com/iammorganparry/clive/apps/understanding/internal/pipeline"
	"github.com/iammorganparry/clive/apps/understanding/internal/planner"
	"github.com/iammorganparry/clive/apps/understanding/internal/store"
	"github.com/iammorganparry/clive/apps/understanding/internal/telemetry"
	"github.com/iammorganparry/clive/apps/understanding/internal/vectorstore"
	"github.com/iammorganparry/clive/apps/understanding/internal/window"
)

// app holds the wired components. Optional backends stay nil interfaces
// when unconfigured.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *store.DB
	pipeline *pipeline.Pipeline
	traces   *telemetry.Log
	archive  api.TraceArchive
	indexer  api.Indexer
	ollama   api.HealthChecker
	qdrant   api.HealthChecker
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		if err := os.Setenv(config.FileEnv, path); err != nil {
			return nil, fmt.Errorf("set config path: %w", err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(w io.Writer, level string) *slog.Logger {
	logLevel := slog.LevelInfo
	if level == "debug" {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevel}))
}

func wireApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	clk := clock.Real{}

	// SQLite
	if cfg.DBPath != "" {
		db, err := store.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.db = db
	}

	// Embeddings
	var embedder embedding.Embedder = embedding.NewHashEmbedder()
	dim := embedding.FallbackDimension
	if cfg.OllamaBaseURL != "" {
		ollamaClient := embedding.NewOllamaClient(cfg.OllamaBaseURL, cfg.EmbeddingModel, cfg.RequestTimeout)
		a.ollama = ollamaClient
		var primary embedding.Embedder = ollamaClient
		if a.db != nil {
			primary = embedding.NewCachedEmbedder(ollamaClient, store.NewEmbeddingCacheStore(a.db), cfg.EmbeddingModel, logger)
		}
		dim = cfg.EmbeddingDim
		embedder = embedding.NewFallback(primary, dim, logger)
	}

	// Memory
	memOpts := memory.Options{
		Embedder:  embedder,
		Dimension: dim,
		Clock:     clk,
		Logger:    logger,
		Capacity:  cfg.MemoryCapacity,
	}
	if cfg.QdrantURL != "" {
		qdrantClient := vectorstore.NewQdrantClient(cfg.QdrantURL, dim, cfg.RequestTimeout)
		collMgr := vectorstore.NewCollectionManager(qdrantClient, cfg.QdrantPrefix)
		retriever := vectorstore.NewRetriever(qdrantClient, collMgr, embedder)
		a.qdrant = qdrantClient
		a.indexer = retriever
		memOpts.Remote = retriever
	}
	if a.db != nil {
		memOpts.Persister = store.NewMemoryRowStore(a.db)
		memOpts.Pictures = store.NewPictureStore(a.db, clk)
	}
	mem := memory.NewStore(memOpts)
	if a.db != nil {
		n, err := mem.Warm(ctx)
		if err != nil {
			logger.Warn("memory warm-up failed", "error", err)
		} else {
			logger.Info("memory warmed", "rows", n)
		}
	}

	// Traces
	traceOpts := telemetry.Options{Max: cfg.MaxTraces, Clock: clk, Logger: logger}
	if a.db != nil {
		traceStore := store.NewTraceStore(a.db)
		traceOpts.Archive = traceStore
		a.archive = traceStore
	}
	a.traces = telemetry.New(traceOpts)

	// Personalization and goals
	var source personalization.Source
	if cfg.PersonalizationFile != "" {
		source = personalization.FileSource{Path: cfg.PersonalizationFile}
	}
	deps := pipeline.Deps{
		Window:          window.New(clk),
		Memory:          mem,
		Personalization: personalization.NewStore(source, clk, logger),
		Tracer:          a.traces,
		Thresholds: intent.Thresholds{
			Commit:    cfg.CommitThreshold,
			Clarify:   cfg.ClarifyThreshold,
			Secondary: cfg.SecondaryThreshold,
		},
		DefaultTopK:  cfg.DefaultTopK,
		GoalLimit:    cfg.GoalLimit,
		RefreshAfter: cfg.RefreshAfter,
		Clock:        clk,
		Logger:       logger,
	}
	if cfg.GoalsFile != "" {
		deps.Goals = goals.FileProvider{Path: cfg.GoalsFile}
	}

	// Planning
	if cfg.PlannerEnabled {
		var sink planner.ScheduleSink = planner.NewMemorySink()
		if a.db != nil {
			sink = store.NewScheduleStore(a.db)
		}
		deps.Planner = planner.New(clk, logger)
		deps.Executor = planner.NewExecutor(sink, clk)
	}

	a.pipeline = pipeline.New(deps)
	return a, nil
}

func (a *app) routerDeps() api.Deps {
	return api.Deps{
		Pipeline:   a.pipeline,
		Traces:     a.traces,
		Archive:    a.archive,
		Indexer:    a.indexer,
		DB:         a.db,
		Ollama:     a.ollama,
		Qdrant:     a.qdrant,
		APIKey:     a.cfg.APIKey,
		BriefLimit: a.cfg.BriefLimit,
		Logger:     a.logger,
	}
}

func (a *app) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
