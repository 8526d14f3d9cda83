package handler

import (
	"time"

	"github.com/labstack/echo/v4"

	"agrolink/internal/domain/entity"
	"agrolink/internal/infrastructure/auth"
	"agrolink/pkg/errors"
	"agrolink/pkg/response"
)

const devTokenTTL = 24 * time.Hour

// DevTokenHandler mints signed tokens so the socket can be exercised locally
// without the marketplace front end.
type DevTokenHandler struct {
	issuer *auth.HMACVerifier
}

var devTokenHandler *DevTokenHandler

func NewDevTokenHandler(issuer *auth.HMACVerifier) *DevTokenHandler {
	return &DevTokenHandler{
		issuer: issuer,
	}
}

func SetupDevTokenHandler(issuer *auth.HMACVerifier) {
	devTokenHandler = NewDevTokenHandler(issuer)
}

func GetDevTokenHandler() *DevTokenHandler {
	return devTokenHandler
}

type devTokenRequest struct {
	UserID string `json:"userId" validate:"required,max=128"`
	Name   string `json:"name" validate:"max=128"`
	Role   string `json:"role" validate:"omitempty,oneof=user agent admin"`
}

func (h *DevTokenHandler) GenerateToken(c echo.Context) error {
	var req devTokenRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	role, _ := entity.ParseRole(req.Role)
	token, err := h.issuer.IssueToken(req.UserID, req.Name, string(role), devTokenTTL)
	if err != nil {
		return response.Error(c, errors.Internal("Failed to sign token", err))
	}

	return response.Success(c, map[string]interface{}{
		"token":     token,
		"userId":    req.UserID,
		"role":      role,
		"expiresIn": int(devTokenTTL.Seconds()),
	})
}
