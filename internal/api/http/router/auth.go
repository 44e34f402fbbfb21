package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/bookspot/bookspot_backend/internal/api/http/handler"
)

// Login is throttled on its own; register and refresh only fall under the
// global limiter.
func (r *Router) registerAuthRoutes(api fiber.Router, h *handler.AuthHandler, authRequired, loginLimit fiber.Handler) {
	group := api.Group("/auth")
	group.Post("/login", loginLimit, h.Login)
	group.Post("/register", h.Register)
	group.Post("/refresh", h.Refresh)
	group.Post("/logout", authRequired, h.Logout)
}
