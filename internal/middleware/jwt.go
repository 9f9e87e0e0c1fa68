package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/backoffice/internal/auth"
	"github.com/congo-pay/backoffice/internal/identity"
)

// TokenVerifier resolves an access token to the staff member it was issued to.
type TokenVerifier interface {
	Verify(ctx context.Context, accessToken string) (identity.Actor, error)
}

// JWTAuth returns a middleware that validates bearer access tokens and stores
// the resolved actor in the request locals.
func JWTAuth(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		token := strings.TrimSpace(authz[len("Bearer "):])
		actor, err := verifier.Verify(c.UserContext(), token)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}
		c.Locals(auth.ActorLocalKey, actor)
		return c.Next()
	}
}

// RequireRole rejects requests whose actor does not hold one of the roles.
func RequireRole(roles ...identity.Role) fiber.Handler {
	allowed := make(map[identity.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *fiber.Ctx) error {
		actor, ok := auth.ActorFrom(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, "unauthorized")
		}
		if _, ok := allowed[actor.Role]; !ok {
			return fiber.NewError(http.StatusForbidden, "insufficient role")
		}
		return c.Next()
	}
}
