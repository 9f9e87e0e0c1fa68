package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/backoffice/internal/auth"
)

// RegisterAuthRoutes wires authentication endpoints. Logout sits behind the
// JWT gate so only the session owner can end it.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, rateLimiter, jwtmw fiber.Handler) {
	group := r.Group("/auth")
	if rateLimiter != nil {
		group.Post("/login", rateLimiter, h.Login)
	} else {
		group.Post("/login", h.Login)
	}
	group.Post("/refresh", h.Refresh)
	group.Post("/logout", jwtmw, h.Logout)
}
