package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"jobcompass/internal/app"
	"jobcompass/internal/config"
	"jobcompass/internal/logger"
	"jobcompass/internal/metrics"
	"jobcompass/internal/tasks"
	"jobcompass/internal/worker"
)

func main() {
	cfg := config.MustLoad()

	zl, err := logger.New(cfg.Log.JSON, cfg.Log.Debug)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("bootstrap failed", zap.Error(err))
	}
	defer a.Close()

	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr()}
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 4,
		Queues:      map[string]int{"default": 1},
		Logger:      zl.Sugar(),
	})

	mux := asynq.NewServeMux()
	mux.Use(metrics.AsynqMetricsMiddleware())
	mux.Handle(tasks.TypeIngestListings, worker.NewIngestTaskHandler(a.Ingest, a.Redis, zl))
	mux.Handle(tasks.TypeProcessProfile, worker.NewProcessTaskHandler(a.Pipeline, a.Redis, zl))

	if cfg.Scheduler.Enabled {
		client := asynq.NewClient(redisOpt)
		defer func() { _ = client.Close() }()

		scheduler := worker.NewScheduler(a.Store, client, cfg.Scheduler.IntervalMinutes, zl)
		if err := scheduler.Start(ctx); err != nil {
			zl.Fatal("start scheduler", zap.Error(err))
		}
		defer scheduler.Stop()
	}

	if err := server.Start(mux); err != nil {
		zl.Fatal("start worker server", zap.Error(err))
	}
	zl.Info("worker started", zap.String("redis_addr", cfg.Redis.Addr()))

	<-ctx.Done()
	zl.Info("shutting down worker")
	server.Shutdown()
}
