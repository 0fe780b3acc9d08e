// Package app builds the long lived components from Settings. Both binaries
// go through Build so the API server and the CLI see the same wiring.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/akolanti/ComplianceGPT/internal/config"
	"github.com/akolanti/ComplianceGPT/internal/crawler"
	"github.com/akolanti/ComplianceGPT/internal/customHttpClient"
	"github.com/akolanti/ComplianceGPT/internal/data/redisStore"
	"github.com/akolanti/ComplianceGPT/internal/domain/documentModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/schedulerModel"
	"github.com/akolanti/ComplianceGPT/internal/rag"
	"github.com/akolanti/ComplianceGPT/internal/rag/embedding"
	"github.com/akolanti/ComplianceGPT/internal/rag/embedding/googleEmbedding"
	"github.com/akolanti/ComplianceGPT/internal/rag/embedding/openaiEmbedding"
	"github.com/akolanti/ComplianceGPT/internal/rag/ingest"
	"github.com/akolanti/ComplianceGPT/internal/rag/llm"
	"github.com/akolanti/ComplianceGPT/internal/rag/llm/gemini"
	"github.com/akolanti/ComplianceGPT/internal/rag/llm/openaiCompat"
	"github.com/akolanti/ComplianceGPT/internal/rag/vectorDB"
	"github.com/akolanti/ComplianceGPT/internal/rag/vectorDB/memoryDB"
	"github.com/akolanti/ComplianceGPT/internal/rag/vectorDB/qdrantDB"
	"github.com/akolanti/ComplianceGPT/internal/scheduler"
	"github.com/akolanti/ComplianceGPT/internal/tracker"
	"github.com/akolanti/ComplianceGPT/pkg/logger_i"
)

type App struct {
	Settings  config.Settings
	Tracker   documentModel.Tracker
	Store     vectorDB.Store
	Cache     vectorDB.AnswerCache
	Embedder  embedding.Embedder
	LLM       llm.Provider
	Crawler   *crawler.Crawler
	Pipeline  *ingest.Pipeline
	Rag       rag.Service
	Scheduler *scheduler.Scheduler
}

// Build connects every backend named in settings. Connections opened by the
// Redis and Qdrant clients are closed when ctx is cancelled; the tracker is
// closed by Close.
func Build(ctx context.Context, settings config.Settings) (*App, error) {
	logger := logger_i.NewLogger("app")
	a := &App{Settings: settings}

	var err error
	if a.Tracker, err = newTracker(ctx, settings); err != nil {
		return nil, fmt.Errorf("tracker: %w", err)
	}
	if a.Embedder, err = newEmbedder(ctx, settings.Embedding); err != nil {
		a.Close()
		return nil, fmt.Errorf("embedding: %w", err)
	}
	if a.LLM, err = newLLM(ctx, settings.LLM.ProviderSettings); err != nil {
		a.Close()
		return nil, fmt.Errorf("llm: %w", err)
	}
	if err = a.buildVectorStore(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("vector store: %w", err)
	}

	locker, err := newLocker(ctx, settings)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("ingest locks: %w", err)
	}
	a.Pipeline = ingest.NewPipeline(a.Tracker, a.Store, a.Embedder, locker, settings.Ingest)

	a.Crawler, err = crawler.New(settings.Source, settings.DocumentsDir(), a.Tracker, customHttpClient.NewClient(0))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("crawler: %w", err)
	}

	a.Rag = rag.NewService(rag.Dependencies{
		Store:    a.Store,
		Cache:    a.Cache,
		LLM:      a.LLM,
		Embedder: a.Embedder,
		Ingester: a.Pipeline,
		Tracker:  a.Tracker,
	}, settings.LLM, settings.Query)

	stateStore, err := newStateStore(ctx, settings)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("scheduler state: %w", err)
	}
	a.Scheduler = scheduler.New(a.Crawler, a.Pipeline, a.Cache, stateStore, settings.Scheduler)

	logger.Info("Components ready",
		"tracker", settings.Tracker.Backend,
		"vector", settings.Vector.Backend,
		"embedding", settings.Embedding.Provider,
		"llm", settings.LLM.Provider,
		"state", settings.Scheduler.StateBackend)
	return a, nil
}

func (a *App) Close() error {
	if a.Tracker == nil {
		return nil
	}
	return a.Tracker.Close()
}

func newTracker(ctx context.Context, settings config.Settings) (documentModel.Tracker, error) {
	switch settings.Tracker.Backend {
	case config.TrackerBackendRedis:
		return tracker.GetRedisTracker(ctx, settings.Redis)
	case config.TrackerBackendMemory:
		return tracker.NewMemoryTracker(), nil
	default:
		return tracker.OpenSQLite(settings.Tracker.SQLitePath)
	}
}

func newEmbedder(ctx context.Context, settings config.ProviderSettings) (embedding.Embedder, error) {
	if settings.Provider == config.ProviderOpenAI {
		if settings.Model == config.GoogleEmbeddingModel {
			settings.Model = ""
		}
		return openaiEmbedding.New(settings), nil
	}
	return googleEmbedding.GetGoogleEmbeddingClient(ctx, settings)
}

func newLLM(ctx context.Context, settings config.ProviderSettings) (llm.Provider, error) {
	if settings.Provider == config.ProviderOpenAI {
		// the default model names a Gemini model
		if settings.Model == config.GeminiModelName {
			settings.Model = ""
		}
		return openaiCompat.New(settings), nil
	}
	return gemini.GetGeminiClient(ctx, settings)
}

func (a *App) buildVectorStore(ctx context.Context) error {
	settings := a.Settings
	dimension := a.Embedder.Dimension()

	if settings.Vector.Backend == config.VectorBackendMemory {
		a.Store = memoryDB.New(dimension)
		a.Cache = memoryDB.NewCache(settings.Query.CacheCutoff)
		return nil
	}

	holder, err := qdrantDB.GetQdrantClient(ctx, settings.Vector, dimension)
	if err != nil {
		return err
	}
	if settings.Query.CacheCutoff > 0 {
		holder.SetCacheCutoff(settings.Query.CacheCutoff)
	}
	if err := holder.EnsureCollection(ctx); err != nil {
		return err
	}
	a.Store = holder

	cache, err := holder.AnswerCache(ctx)
	if err != nil {
		// answers are still served, only without the cache
		logger_i.NewLogger("app").Warn("Answer cache unavailable", "error", err)
		return nil
	}
	a.Cache = cache
	return nil
}

func newLocker(ctx context.Context, settings config.Settings) (tracker.Locker, error) {
	if settings.Tracker.Backend != config.TrackerBackendRedis {
		return tracker.NewMemoryLocker(), nil
	}
	store, err := redisStore.GetRedisStore(ctx, settings.Redis, config.RedisTrackerStore)
	if err != nil {
		return nil, err
	}
	return tracker.NewRedisLocker(store, settings.Ingest.LockTTL), nil
}

func newStateStore(ctx context.Context, settings config.Settings) (schedulerModel.StateStore, error) {
	switch settings.Scheduler.StateBackend {
	case config.StateBackendRedis:
		store, err := redisStore.GetRedisStore(ctx, settings.Redis, config.RedisStateStore)
		if err != nil {
			return nil, err
		}
		return scheduler.NewRedisStateStore(store), nil
	case config.StateBackendFile, "":
		return scheduler.NewFileStateStore(settings.Scheduler.StatePath), nil
	}
	return nil, errors.New("unknown state backend " + settings.Scheduler.StateBackend)
}
