package api

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"jobcompass/internal/api/middleware"
	"jobcompass/internal/config"
	"jobcompass/internal/match"
	"jobcompass/internal/search"
	"jobcompass/internal/store"
)

// Deps are the collaborators behind the /v1 routes. Redis and Archives may be nil.
type Deps struct {
	Config    *config.Config
	Store     *store.Store
	Registry  *search.Registry
	Previewer Previewer
	Analyzer  MatchAnalyzer
	Lifecycle *match.Lifecycle
	Enqueuer  TaskEnqueuer
	Redis     *redis.Client
	Archives  ArchiveLinker
	Logger    *zap.Logger
}

// RegisterRoutes mounts the /v1 API.
func RegisterRoutes(router *gin.Engine, deps Deps) {
	lifecycle := deps.Lifecycle
	if lifecycle == nil {
		lifecycle = match.NewLifecycle(nil)
	}
	var quotaKV quotaStore
	if deps.Redis != nil {
		quotaKV = deps.Redis
	}

	profiles := NewProfileHandler(deps.Store)
	boards := NewBoardHandler(deps.Store, deps.Registry, deps.Enqueuer)
	criteria := NewCriteriaHandler(deps.Store)
	listings := NewListingHandler(deps.Store)
	matches := NewMatchHandler(deps.Store, lifecycle, deps.Enqueuer)
	aiHandler := NewAIHandler(deps.Store, deps.Analyzer, lifecycle, quotaKV, deps.Config.API.AIHourlyLimit)
	searches := NewSearchHandler(deps.Previewer, deps.Registry)
	runs := NewIngestRunHandler(deps.Store, deps.Archives)
	internalOnly := middleware.InternalSecretMiddleware(deps.Config.API.InternalSecret)

	v1 := router.Group("/v1")
	{
		if deps.Redis != nil {
			ws := NewWsHandler(deps.Redis, deps.Store, deps.Logger, deps.Config.API.AllowedOrigins)
			v1.GET("/ws", ws.HandleConnection)
		}

		profileGroup := v1.Group("/profiles")
		{
			profileGroup.GET("", profiles.List)
			profileGroup.POST("", profiles.Create)
			profileGroup.GET("/:id", profiles.Get)
			profileGroup.PUT("/:id", profiles.Update)
			profileGroup.DELETE("/:id", profiles.Delete)
			profileGroup.GET("/:id/criteria/default", criteria.Default)
		}

		boardGroup := v1.Group("/boards")
		{
			boardGroup.GET("", boards.List)
			boardGroup.POST("", boards.Create)
			boardGroup.GET("/:id", boards.Get)
			boardGroup.PUT("/:id", boards.Update)
			boardGroup.DELETE("/:id", boards.Delete)
			boardGroup.POST("/:id/ingest", internalOnly, boards.Ingest)
		}

		criteriaGroup := v1.Group("/criteria")
		{
			criteriaGroup.GET("", criteria.List)
			criteriaGroup.POST("", criteria.Create)
			criteriaGroup.GET("/:id", criteria.Get)
			criteriaGroup.PUT("/:id", criteria.Update)
			criteriaGroup.DELETE("/:id", criteria.Delete)
		}

		listingGroup := v1.Group("/listings")
		{
			listingGroup.GET("", listings.List)
			listingGroup.POST("", listings.Create)
			listingGroup.GET("/:id", listings.Get)
			listingGroup.DELETE("/:id", listings.Delete)
		}

		matchGroup := v1.Group("/matches")
		{
			matchGroup.GET("", matches.List)
			matchGroup.POST("", matches.Create)
			matchGroup.GET("/suggestions", matches.Suggestions)
			matchGroup.POST("/run", matches.Run)
			matchGroup.GET("/:id", matches.Get)
			matchGroup.PUT("/:id", matches.Update)
			matchGroup.DELETE("/:id", matches.Delete)
			matchGroup.POST("/:id/view", matches.View)
			matchGroup.POST("/:id/apply", matches.Apply)
			matchGroup.POST("/:id/reject", matches.Reject)
			matchGroup.POST("/:id/interested", matches.Interested)
			matchGroup.POST("/:id/not-interested", matches.NotInterested)
		}

		aiGroup := v1.Group("/ai")
		{
			aiGroup.POST("/analyze-match", aiHandler.Analyze)
			aiGroup.POST("/generate-cover-letter", aiHandler.CoverLetter)
		}

		v1.POST("/search", searches.Search)
		v1.GET("/search/health", searches.Health)

		runGroup := v1.Group("/ingest-runs")
		{
			runGroup.GET("", runs.List)
			runGroup.GET("/:id", runs.Get)
			runGroup.GET("/:id/archive-link", runs.ArchiveLink)
		}
	}
}
