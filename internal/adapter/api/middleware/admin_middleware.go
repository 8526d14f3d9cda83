package middleware

import (
	"github.com/labstack/echo/v4"

	"agrolink/pkg/errors"
	"agrolink/pkg/response"
)

type AdminMiddleware struct{}

func NewAdminMiddleware() *AdminMiddleware {
	return &AdminMiddleware{}
}

func (m *AdminMiddleware) AdminOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		identity, ok := IdentityFrom(c)
		if !ok {
			return response.Error(c, errors.Unauthorized("Authentication required", nil))
		}
		if !identity.IsAdmin() {
			return response.Error(c, errors.Forbidden("Admin privileges required", nil))
		}
		return next(c)
	}
}

// StaffOnly admits agents and admins.
func (m *AdminMiddleware) StaffOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		identity, ok := IdentityFrom(c)
		if !ok {
			return response.Error(c, errors.Unauthorized("Authentication required", nil))
		}
		if !identity.IsStaff() {
			return response.Error(c, errors.Forbidden("Agent or admin privileges required", nil))
		}
		return next(c)
	}
}
