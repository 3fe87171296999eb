package api

import (
	"net/http"

	authDelivery "jobtrack-backend/internal/auth/delivery"
	authUsecase "jobtrack-backend/internal/auth/usecase"
	jobDelivery "jobtrack-backend/internal/job/delivery"
	mailDelivery "jobtrack-backend/internal/mail/delivery"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes bundles the handlers mounted under /api
type Routes struct {
	AuthUsecase authUsecase.AuthUsecase
	Auth        *authDelivery.AuthHandler
	Sync        *mailDelivery.SyncHandler
	Jobs        *jobDelivery.JobHandler
	Settings    *RuntimeSettings
}

func SetupRoutes(r *gin.Engine, routes Routes) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	requireAuth := authDelivery.AuthMiddleware(routes.AuthUsecase)

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		auth := api.Group("/auth")
		auth.Use(requireAuth)
		{
			auth.GET("/me", routes.Auth.Me)
			auth.PUT("/imap", routes.Auth.ConnectIMAP)
		}

		fcm := api.Group("/fcm")
		fcm.Use(requireAuth)
		{
			fcm.POST("/register", routes.Auth.RegisterFCMToken)
			fcm.DELETE("/:token", routes.Auth.UnregisterFCMToken)
		}

		sync := api.Group("/sync")
		sync.Use(requireAuth)
		{
			sync.POST("", routes.Sync.RunSync)
			sync.POST("/gmail", routes.Sync.RunSync)
			sync.GET("/runs", routes.Sync.GetRuns)
		}
		api.GET("/messages", requireAuth, routes.Sync.GetMessages)

		jobs := api.Group("/jobs")
		jobs.Use(requireAuth)
		{
			jobs.GET("", routes.Jobs.GetJobs)
			jobs.POST("", routes.Jobs.CreateJob)
			jobs.GET("/search", routes.Jobs.SearchJobs)
			jobs.GET("/:id", routes.Jobs.GetJobByID)
			jobs.PATCH("/:id/status", routes.Jobs.UpdateStatus)
		}

		settings := api.Group("/settings")
		settings.Use(requireAuth)
		{
			settings.GET("/pipeline", routes.Settings.GetPipelineSettings)
			settings.PUT("/pipeline", routes.Settings.UpdatePipelineSettings)
			settings.GET("/ollama", routes.Settings.GetOllamaSettings)
			settings.PUT("/ollama", routes.Settings.UpdateOllamaSettings)
			settings.POST("/ollama/test", routes.Settings.TestOllamaConnection)
		}
	}
}
