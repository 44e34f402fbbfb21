package handler

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/bookspot/bookspot_backend/internal/schema"
	"github.com/bookspot/bookspot_backend/internal/service/link"
)

type LinkHandler struct {
	svc link.Service
}

func NewLinkHandler(svc link.Service) *LinkHandler {
	return &LinkHandler{svc: svc}
}

type providerView struct {
	ProviderID uuid.UUID         `json:"provider_id"`
	Name       string            `json:"name,omitempty"`
	Email      string            `json:"email,omitempty"`
	Timezone   string            `json:"timezone,omitempty"`
	Status     schema.LinkStatus `json:"status"`
	LinkedAt   time.Time         `json:"linked_at"`
}

// GET /api/v1/providers/:providerID/clients
func (h *LinkHandler) ListClients(c fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	providerID, valid := idParam(c, "providerID")
	if !valid {
		return badRequest(c, "invalid provider id")
	}

	links, err := h.svc.ListClients(c.Context(), actor, providerID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return ok(c, links)
}

// POST /api/v1/providers/:providerID/clients
//
// Creates a brand-new client account owned by the provider.
func (h *LinkHandler) AddNewClient(c fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	providerID, valid := idParam(c, "providerID")
	if !valid {
		return badRequest(c, "invalid provider id")
	}

	var body struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Timezone string `json:"timezone"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	l, err := h.svc.AddNewClient(c.Context(), actor, providerID, link.NewClientRequest{
		Name:     body.Name,
		Email:    body.Email,
		Password: body.Password,
		Timezone: body.Timezone,
	})
	if err != nil {
		return mapServiceError(c, err)
	}
	return created(c, l)
}

// POST /api/v1/providers/:providerID/clients/link
func (h *LinkHandler) AddExistingClient(c fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	providerID, valid := idParam(c, "providerID")
	if !valid {
		return badRequest(c, "invalid provider id")
	}

	var body struct {
		Email string `json:"email"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.Email == "" {
		return badRequest(c, "email is required")
	}

	l, err := h.svc.AddExistingClient(c.Context(), actor, providerID, body.Email)
	if err != nil {
		return mapServiceError(c, err)
	}
	return ok(c, l)
}

// PATCH /api/v1/providers/:providerID/clients/:clientID
func (h *LinkHandler) SetStatus(c fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	providerID, valid := idParam(c, "providerID")
	if !valid {
		return badRequest(c, "invalid provider id")
	}
	clientID, valid := idParam(c, "clientID")
	if !valid {
		return badRequest(c, "invalid client id")
	}

	var body struct {
		Status schema.LinkStatus `json:"status"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	l, err := h.svc.SetLinkStatus(c.Context(), actor, providerID, clientID, body.Status)
	if err != nil {
		return mapServiceError(c, err)
	}
	return ok(c, l)
}

// DELETE /api/v1/providers/:providerID/clients/:clientID
func (h *LinkHandler) RemoveClient(c fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	providerID, valid := idParam(c, "providerID")
	if !valid {
		return badRequest(c, "invalid provider id")
	}
	clientID, valid := idParam(c, "clientID")
	if !valid {
		return badRequest(c, "invalid client id")
	}

	cancelled, err := h.svc.RemoveClient(c.Context(), actor, providerID, clientID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return ok(c, fiber.Map{"cancelled_bookings": cancelled})
}

// GET /api/v1/clients/:clientID/providers
func (h *LinkHandler) ListProviders(c fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	clientID, valid := idParam(c, "clientID")
	if !valid {
		return badRequest(c, "invalid client id")
	}

	links, err := h.svc.ListProviders(c.Context(), actor, clientID)
	if err != nil {
		return mapServiceError(c, err)
	}

	out := make([]providerView, 0, len(links))
	for _, l := range links {
		v := providerView{ProviderID: l.ProviderID, Status: l.Status, LinkedAt: l.CreatedAt}
		if l.Provider != nil {
			v.Name = l.Provider.Name
			v.Email = l.Provider.Email
			v.Timezone = l.Provider.Timezone
		}
		out = append(out, v)
	}
	return ok(c, out)
}
