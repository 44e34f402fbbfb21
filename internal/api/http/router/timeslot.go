package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/bookspot/bookspot_backend/internal/api/http/handler"
	"github.com/bookspot/bookspot_backend/pkg/authorize"
)

func (r *Router) registerTimeslotRoutes(
	api fiber.Router,
	h *handler.TimeslotHandler,
	authRequired fiber.Handler,
	requirePerm func(authorize.Resource, authorize.Action) fiber.Handler,
) {
	slots := api.Group("/timeslots", authRequired)
	slots.Get("/", h.List)
	slots.Post("/", requirePerm(authorize.ResourceTimeslot, authorize.ActionCreate), h.Create)
	slots.Get("/:id", h.Get)
	slots.Patch("/:id", requirePerm(authorize.ResourceTimeslot, authorize.ActionUpdate), h.UpdateDuration)
	slots.Delete("/:id", requirePerm(authorize.ResourceTimeslot, authorize.ActionDelete), h.Delete)

	slots.Post("/:id/book", requirePerm(authorize.ResourceBooking, authorize.ActionBook), h.Book)
	slots.Post("/:id/cancel", requirePerm(authorize.ResourceBooking, authorize.ActionCancel), h.Cancel)
	slots.Post("/:id/complete", requirePerm(authorize.ResourceBooking, authorize.ActionComplete), h.Complete)
}
