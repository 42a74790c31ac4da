package routes

import (
	"creatorhub/internal/handlers"
	"creatorhub/internal/logger"
	"creatorhub/ws"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the HTTP API, the health check and the websocket
// endpoint. auth guards every API route.
func RegisterRoutes(
	ginRouter *gin.Engine,
	appHandlers *handlers.AppHandlers,
	wsHandler *ws.WebSocketHandler,
	auth gin.HandlerFunc,
) {
	ginRouter.GET("/health", appHandlers.HealthHandler.Health)

	api := ginRouter.Group("/api/v1")
	{
		appHandlers.ChatHandler.RegisterRoutes(api, auth)
	}

	// Authentication happens at upgrade or through the authenticate event.
	ginRouter.GET("/ws", wsHandler.ServeWS)
	logger.Info("WebSocket route /ws registered")
}
