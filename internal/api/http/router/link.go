package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/bookspot/bookspot_backend/internal/api/http/handler"
	"github.com/bookspot/bookspot_backend/pkg/authorize"
)

func (r *Router) registerLinkRoutes(
	api fiber.Router,
	h *handler.LinkHandler,
	authRequired fiber.Handler,
	requirePerm func(authorize.Resource, authorize.Action) fiber.Handler,
) {
	clients := api.Group("/providers/:providerID/clients", authRequired)
	clients.Get("/", requirePerm(authorize.ResourceClientLink, authorize.ActionList), h.ListClients)
	clients.Post("/", requirePerm(authorize.ResourceClientLink, authorize.ActionCreate), h.AddNewClient)
	clients.Post("/link", requirePerm(authorize.ResourceClientLink, authorize.ActionCreate), h.AddExistingClient)
	clients.Patch("/:clientID", requirePerm(authorize.ResourceClientLink, authorize.ActionUpdate), h.SetStatus)
	clients.Delete("/:clientID", requirePerm(authorize.ResourceClientLink, authorize.ActionDelete), h.RemoveClient)

	api.Get("/clients/:clientID/providers", authRequired,
		requirePerm(authorize.ResourceClientLink, authorize.ActionList), h.ListProviders)
}
