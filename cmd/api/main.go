package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"jobcompass/internal/api"
	"jobcompass/internal/app"
	"jobcompass/internal/config"
	"jobcompass/internal/logger"
)

func main() {
	cfg := config.MustLoad()

	zl, err := logger.New(cfg.Log.JSON, cfg.Log.Debug)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if !cfg.API.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("bootstrap failed", zap.Error(err))
	}
	defer a.Close()

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Redis.Addr()})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			zl.Error("close asynq client failed", zap.Error(err))
		}
	}()

	deps := api.Deps{
		Config:    cfg,
		Store:     a.Store,
		Registry:  a.Registry,
		Previewer: a.Ingest,
		Analyzer:  a.Engine,
		Lifecycle: a.Lifecycle,
		Enqueuer:  asynqClient,
		Redis:     a.Redis,
		Logger:    zl,
	}
	if a.Storage != nil {
		deps.Archives = a.Storage
	}

	router := api.NewRouter(cfg, zl)
	api.RegisterRoutes(router, deps)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zl.Info("api listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("api server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down api")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("graceful shutdown failed", zap.Error(err))
	}
}
