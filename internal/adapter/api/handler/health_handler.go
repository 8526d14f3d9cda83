package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"agrolink/internal/infrastructure/firebase"
	ws "agrolink/internal/infrastructure/websocket"
)

type HealthHandler struct {
	db           *gorm.DB
	firebaseAuth *firebase.FirebaseAuthClient
	wsManager    *ws.Manager
}

var healthHandler *HealthHandler

// NewHealthHandler accepts nil for the backends that are not configured.
func NewHealthHandler(db *gorm.DB, firebaseAuth *firebase.FirebaseAuthClient, wsManager *ws.Manager) *HealthHandler {
	return &HealthHandler{
		db:           db,
		firebaseAuth: firebaseAuth,
		wsManager:    wsManager,
	}
}

func SetupHealthHandler(db *gorm.DB, firebaseAuth *firebase.FirebaseAuthClient, wsManager *ws.Manager) {
	healthHandler = NewHealthHandler(db, firebaseAuth, wsManager)
}

func GetHealthHandler() *HealthHandler {
	return healthHandler
}

func (h *HealthHandler) CheckHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":      "Server is running",
		"time":        time.Now().Format(time.RFC3339),
		"connections": h.wsManager.ClientCount(),
	})
}

func (h *HealthHandler) CheckDatabaseHealth(c echo.Context) error {
	if h.db == nil {
		return c.JSON(http.StatusOK, map[string]string{"status": "SQL database not configured"})
	}

	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request().Context())
	}
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "Database connection failed",
			"error":  err.Error(),
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "Database connected successfully",
	})
}

func (h *HealthHandler) CheckFirebaseHealth(c echo.Context) error {
	if h.firebaseAuth == nil {
		return c.JSON(http.StatusOK, map[string]string{"status": "Firebase Auth not configured"})
	}

	if err := h.firebaseAuth.TestConnection(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "Firebase Auth connection failed",
			"error":  err.Error(),
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "Firebase Auth connected successfully",
	})
}
