package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"jobcompass/internal/api/middleware"
	"jobcompass/internal/config"
	"jobcompass/internal/logger"
	"jobcompass/internal/metrics"
)

// NewRouter builds the engine with the shared middleware chain, /health and /metrics.
func NewRouter(cfg *config.Config, log *zap.Logger) *gin.Engine {
	log = logger.OrNop(log)
	debug := cfg != nil && cfg.API.Debug

	router := gin.New()
	router.Use(
		middleware.CorrelationIDMiddleware(),
		middleware.ZapLoggerMiddleware(log),
		gin.CustomRecovery(func(c *gin.Context, recovered any) {
			middleware.LoggerFromContext(c).Error("panic recovered", zap.Any("panic", recovered), zap.Stack("stack"))
			c.AbortWithStatusJSON(http.StatusInternalServerError, envelope{Message: "Internal server error"})
		}),
		metrics.GinMiddleware(),
		func(c *gin.Context) {
			c.Set(debugErrorsKey, debug)
			c.Next()
		},
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.NoRoute(func(c *gin.Context) {
		fail(c, http.StatusNotFound, "Route not found")
	})

	return router
}
