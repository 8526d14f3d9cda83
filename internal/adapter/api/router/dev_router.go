package router

import (
	"github.com/labstack/echo/v4"

	"agrolink/internal/adapter/api/handler"
)

func SetupDevRouter(e *echo.Echo, environment string) {
	devTokenHandler := handler.GetDevTokenHandler()
	if environment != "development" || devTokenHandler == nil {
		return
	}

	e.POST("/_dev/token", devTokenHandler.GenerateToken)
}
