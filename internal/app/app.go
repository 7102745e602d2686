// Package app wires the shared service graph used by the api, worker and admin binaries.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"jobcompass/internal/ai"
	"jobcompass/internal/config"
	"jobcompass/internal/database"
	"jobcompass/internal/ingest"
	"jobcompass/internal/match"
	"jobcompass/internal/matching"
	"jobcompass/internal/search"
	"jobcompass/internal/storage"
	"jobcompass/internal/store"
)

type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	DB        *gorm.DB
	Redis     *redis.Client
	Store     *store.Store
	Storage   *storage.Client
	Registry  *search.Registry
	Engine    *ai.Engine
	Ingest    *ingest.Service
	Lifecycle *match.Lifecycle
	Pipeline  *matching.Pipeline
}

// New connects to PostgreSQL and Redis, migrates the schema and builds the services.
// Object storage is optional; without it raw batches are not archived.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	log.Info("database ready", zap.String("host", cfg.Database.Host), zap.String("db", cfg.Database.Name))

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	a := &App{
		Config:    cfg,
		Logger:    log,
		DB:        db,
		Redis:     redisClient,
		Store:     store.New(db),
		Lifecycle: match.NewLifecycle(nil),
	}

	var opts []ingest.Option
	if cfg.MinIO.Enabled() {
		client, err := storage.NewClient(cfg.MinIO, log)
		if err != nil {
			_ = redisClient.Close()
			return nil, fmt.Errorf("init storage client: %w", err)
		}
		a.Storage = client
		opts = append(opts, ingest.WithArchiver(client))
		log.Info("archive storage ready", zap.String("bucket", cfg.MinIO.Bucket))
	} else {
		log.Warn("minio endpoint not set, raw search batches will not be archived")
	}

	a.Registry = search.NewRegistry(
		search.NewCachedProvider(search.NewTavilyClient(cfg.Tavily, log), redisClient, cfg.Search.CacheTTL, log),
		search.NewCachedProvider(search.NewBrightDataClient(cfg.BrightData, log), redisClient, cfg.Search.CacheTTL, log),
	)
	for name, ok := range a.Registry.Status() {
		if !ok {
			log.Warn("search provider has no credentials", zap.String("provider", name))
		}
	}

	gen, err := ai.NewGenerator(ctx, cfg.Gemini, log)
	if err != nil {
		_ = redisClient.Close()
		return nil, err
	}
	a.Engine = ai.NewEngine(gen, cfg.Gemini.Strict, log)
	a.Ingest = ingest.NewService(a.Store, a.Registry, log, opts...)
	a.Pipeline = matching.NewPipeline(a.Store, a.Ingest, matching.NewBatchMatcher(a.Engine, log), a.Lifecycle, cfg.Tavily.MaxResults, log)
	return a, nil
}

func (a *App) Close() {
	if err := a.Redis.Close(); err != nil {
		a.Logger.Error("close redis client failed", zap.Error(err))
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
