package router

import (
	"github.com/labstack/echo/v4"

	"agrolink/internal/adapter/api/handler"
	"agrolink/internal/adapter/api/middleware"
)

func SetupAgentRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, adminMiddleware *middleware.AdminMiddleware) {
	agentHandler := handler.GetAgentHandler()

	agents := e.Group("/v1/agents", authMiddleware.Authenticate, adminMiddleware.StaffOnly)
	agents.GET("/online", agentHandler.ListOnlineAgents)
	agents.GET("/:id", agentHandler.GetAgent)
}
