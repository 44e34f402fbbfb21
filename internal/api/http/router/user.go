package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/bookspot/bookspot_backend/internal/api/http/handler"
	"github.com/bookspot/bookspot_backend/pkg/authorize"
)

func (r *Router) registerUserRoutes(
	api fiber.Router,
	h *handler.UserHandler,
	authRequired fiber.Handler,
	requirePerm func(authorize.Resource, authorize.Action) fiber.Handler,
) {
	users := api.Group("/users", authRequired)
	users.Get("/me", h.GetMe)
	users.Get("/", requirePerm(authorize.ResourceUser, authorize.ActionList), h.List)
	// Providers may create clients here too; the service decides by role.
	users.Post("/", h.Create)
	users.Get("/:id", h.Get)
	users.Delete("/:id", requirePerm(authorize.ResourceUser, authorize.ActionDelete), h.Delete)
}
