package api

import (
	"net/http"

	adminDelivery "attendance-bridge/internal/admin/delivery"
	adminUsecase "attendance-bridge/internal/admin/usecase"
	callbackDelivery "attendance-bridge/internal/callback/delivery"
	"attendance-bridge/pkg/config"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	r *gin.Engine,
	cfg *config.Config,
	callbackHandler *callbackDelivery.CallbackHandler,
	adminHandler *adminDelivery.AdminHandler,
	settingsHandler *SettingsHandler,
	tokenUsecase adminUsecase.TokenUsecase,
) {
	// WeCom callback (signature checked per request)
	callbackHandler.Register(r, cfg.CallbackPath)

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Operator routes (protected)
		admin := api.Group("/admin")
		admin.Use(adminDelivery.AuthMiddleware(tokenUsecase))
		{
			admin.GET("/state", adminHandler.GetState)
			admin.GET("/settings", settingsHandler.GetSettings)
			admin.POST("/poll", adminHandler.RunPoll)
			admin.POST("/test-send", adminHandler.TestSend)
		}
	}
}
