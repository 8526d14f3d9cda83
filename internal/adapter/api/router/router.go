package router

import (
	"github.com/labstack/echo/v4"

	"agrolink/internal/adapter/api/handler"
	"agrolink/internal/adapter/api/middleware"
)

func Setup(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, adminMiddleware *middleware.AdminMiddleware, wsHandler *handler.WebSocketHandler) {
	SetupWebSocketRouter(e, wsHandler)
	SetupNotificationRouter(e, authMiddleware)
	SetupAgentRouter(e, authMiddleware, adminMiddleware)
	SetupHealthRouter(e)
}
