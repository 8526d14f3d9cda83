package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"agrolink/internal/domain/entity"
	"agrolink/internal/infrastructure/auth"
	"agrolink/pkg/response"
)

// RoleHeader carries the declared role on HTTP requests.
const RoleHeader = "X-Client-Role"

type AuthMiddleware struct {
	verifier *auth.IdentityVerifier
}

func NewAuthMiddleware(verifier *auth.IdentityVerifier) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
	}
}

// Authenticate resolves the bearer token into an identity and stores it on
// the context under "identity", with "uid" and "role" alongside.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		identity, err := m.verifier.Verify(c.Request().Context(), BearerToken(c), c.Request().Header.Get(RoleHeader))
		if err != nil {
			return response.Error(c, err)
		}

		c.Set("identity", identity)
		c.Set("uid", identity.UserID)
		c.Set("role", string(identity.Role))

		return next(c)
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(c echo.Context) string {
	parts := strings.SplitN(c.Request().Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// IdentityFrom returns the identity Authenticate stored.
func IdentityFrom(c echo.Context) (entity.Identity, bool) {
	identity, ok := c.Get("identity").(entity.Identity)
	return identity, ok
}
