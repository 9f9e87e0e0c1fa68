package middleware

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/backoffice/internal/identity"
)

type staticVerifier map[string]identity.Actor

func (v staticVerifier) Verify(_ context.Context, token string) (identity.Actor, error) {
	actor, ok := v[token]
	if !ok {
		return identity.Actor{}, errors.New("unknown token")
	}
	return actor, nil
}

func newGuardedApp() *fiber.App {
	verifier := staticVerifier{
		"admin-token":   {ID: "u1", Role: identity.RoleAdmin},
		"auditor-token": {ID: "u2", Role: identity.RoleAuditor},
	}
	app := fiber.New()
	protected := app.Group("", JWTAuth(verifier))
	protected.Get("/read", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	protected.Post("/write", RequireRole(identity.RoleAdmin, identity.RoleSuperAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func do(t *testing.T, app *fiber.App, method, path, token string) int {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestJWTAuthRejectsMissingAndUnknownTokens(t *testing.T) {
	app := newGuardedApp()
	if status := do(t, app, fiber.MethodGet, "/read", ""); status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", status)
	}
	if status := do(t, app, fiber.MethodGet, "/read", "forged"); status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown token, got %d", status)
	}
	if status := do(t, app, fiber.MethodGet, "/read", "auditor-token"); status != fiber.StatusOK {
		t.Fatalf("expected 200 for auditor read, got %d", status)
	}
}

func TestRequireRole(t *testing.T) {
	app := newGuardedApp()
	if status := do(t, app, fiber.MethodPost, "/write", "auditor-token"); status != fiber.StatusForbidden {
		t.Fatalf("expected 403 for auditor write, got %d", status)
	}
	if status := do(t, app, fiber.MethodPost, "/write", "admin-token"); status != fiber.StatusOK {
		t.Fatalf("expected 200 for admin write, got %d", status)
	}
}
