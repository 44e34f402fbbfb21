package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/bookspot/bookspot_backend/internal/api/http/handler"
	"github.com/bookspot/bookspot_backend/pkg/authorize"
)

func (r *Router) registerAdminRoutes(
	api fiber.Router,
	h *handler.AdminHandler,
	authRequired fiber.Handler,
	requirePerm func(authorize.Resource, authorize.Action) fiber.Handler,
) {
	api.Post("/admin/sweep", authRequired, requirePerm(authorize.ResourceSweep, authorize.ActionExecute), h.Sweep)
	api.Get("/audit", authRequired, requirePerm(authorize.ResourceAudit, authorize.ActionRead), h.ListAudit)
}
