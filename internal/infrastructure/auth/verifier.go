// Package auth verifies the signed identity token presented when a client
// connects and turns it into an entity.Identity.
package auth

import (
	"context"
	"strings"

	"agrolink/internal/domain/entity"
	"agrolink/pkg/errors"
	"agrolink/pkg/logger"
)

// Claims is the provider-neutral subset of a verified token.
type Claims struct {
	UserID string
	Name   string
	Role   string
}

// TokenVerifier checks a token signature and returns its claims.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*Claims, error)
}

type IdentityVerifier struct {
	tokens            TokenVerifier
	trustDeclaredRole bool
}

func NewIdentityVerifier(tokens TokenVerifier, trustDeclaredRole bool) *IdentityVerifier {
	return &IdentityVerifier{
		tokens:            tokens,
		trustDeclaredRole: trustDeclaredRole,
	}
}

// Verify validates token and resolves the connection role. A role carried by
// the token always wins over the declared one; without it the declared role
// is used only when the verifier is configured to trust it.
func (v *IdentityVerifier) Verify(ctx context.Context, token, declaredRole string) (entity.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return entity.Identity{}, errors.Unauthorized("Authentication error: No token provided", nil)
	}

	claims, err := v.tokens.VerifyToken(ctx, token)
	if err != nil || claims == nil || claims.UserID == "" {
		return entity.Identity{}, errors.Unauthorized("Authentication error: Invalid token", err)
	}

	role, ok := entity.ParseRole(declaredRole)
	if !ok {
		return entity.Identity{}, errors.Unauthorized("Authentication error: Invalid role", nil)
	}

	if claims.Role != "" {
		tokenRole, ok := entity.ParseRole(claims.Role)
		if !ok {
			return entity.Identity{}, errors.Unauthorized("Authentication error: Invalid role", nil)
		}
		if tokenRole != role {
			logger.Warn("Identity %s declared role %q but token says %q", claims.UserID, role, tokenRole)
		}
		role = tokenRole
	} else if !v.trustDeclaredRole {
		role = entity.RoleUser
	}

	return entity.Identity{
		UserID: claims.UserID,
		Role:   role,
		Name:   claims.Name,
	}, nil
}
