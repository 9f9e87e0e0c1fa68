package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/backoffice/internal/auth"
	"github.com/congo-pay/backoffice/internal/identity"
	"github.com/congo-pay/backoffice/internal/middleware"
)

// RegisterStaffRoutes wires the profile and staff management endpoints.
func RegisterStaffRoutes(r fiber.Router, h *auth.Handler) {
	r.Get("/me", h.Me)
	r.Post("/staff", middleware.RequireRole(identity.RoleSuperAdmin), h.Register)
}
