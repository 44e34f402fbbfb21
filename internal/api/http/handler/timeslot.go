package handler

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/bookspot/bookspot_backend/internal/schema"
	"github.com/bookspot/bookspot_backend/internal/service/scheduling"
)

type TimeslotHandler struct {
	svc scheduling.Service
}

func NewTimeslotHandler(svc scheduling.Service) *TimeslotHandler {
	return &TimeslotHandler{svc: svc}
}

// GET /api/v1/timeslots
func (h *TimeslotHandler) List(c fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}

	var q struct {
		ProviderID string `query:"provider_id"`
		ClientID   string `query:"client_id"`
		Status     string `query:"status"`
		Mine       bool   `query:"mine"`
		Available  bool   `query:"available"`
		Future     bool   `query:"future"`
		From       string `query:"from"`
		To         string `query:"to"`
		Limit      int    `query:"limit"`
		Offset     int    `query:"offset"`
	}
	if err := c.Bind().Query(&q); err != nil {
		return badRequest(c, "invalid query parameters")
	}

	req := scheduling.ListRequest{
		BookedByMe:    q.Mine,
		AvailableOnly: q.Available,
		FutureOnly:    q.Future,
		Limit:         q.Limit,
		Offset:        q.Offset,
	}
	if q.ProviderID != "" {
		id, err := uuid.Parse(q.ProviderID)
		if err != nil {
			return badRequest(c, "invalid provider_id")
		}
		req.ProviderID = &id
	}
	if q.ClientID != "" {
		id, err := uuid.Parse(q.ClientID)
		if err != nil {
			return badRequest(c, "invalid client_id")
		}
		req.ClientID = &id
	}
	if q.Status != "" {
		st := schema.TimeslotStatus(q.Status)
		req.Status = &st
	}
	if q.From != "" {
		t, err := time.Parse(time.RFC3339, q.From)
		if err != nil {
			return badRequest(c, "from must be RFC 3339")
		}
		req.From = &t
	}
	if q.To != "" {
		t, err := time.Parse(time.RFC3339, q.To)
		if err != nil {
			return badRequest(c, "to must be RFC 3339")
		}
		req.To = &t
	}

	slots, err := h.svc.ListTimeslots(c.Context(), actor, req)
	if err != nil {
		return mapServiceError(c, err)
	}
	return ok(c, slots)
}

// POST /api/v1/timeslots
func (h *TimeslotHandler) Create(c fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}

	var body struct {
		ProviderID      *uuid.UUID `json:"provider_id"`
		StartTime       time.Time  `json:"start_time"`
		DurationMinutes int        `json:"duration_minutes"`
		ClientID        *uuid.UUID `json:"client_id"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	slot, err := h.svc.CreateTimeslot(c.Context(), actor, scheduling.CreateTimeslotRequest{
		ProviderID:      body.ProviderID,
		StartTime:       body.StartTime,
		DurationMinutes: body.DurationMinutes,
		ClientID:        body.ClientID,
	})
	if err != nil {
		return mapServiceError(c, err)
	}
	return created(c, slot)
}

// GET /api/v1/timeslots/:id
func (h *TimeslotHandler) Get(c fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, valid := idParam(c, "id")
	if !valid {
		return badRequest(c, "invalid timeslot id")
	}

	slot, err := h.svc.GetTimeslot(c.Context(), actor, id)
	if err != nil {
		return mapServiceError(c, err)
	}
	return ok(c, slot)
}

// PATCH /api/v1/timeslots/:id
func (h *TimeslotHandler) UpdateDuration(c fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, valid := idParam(c, "id")
	if !valid {
		return badRequest(c, "invalid timeslot id")
	}

	var body struct {
		DurationMinutes int `json:"duration_minutes"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	slot, err := h.svc.UpdateDuration(c.Context(), actor, id, body.DurationMinutes)
	if err != nil {
		return mapServiceError(c, err)
	}
	return ok(c, slot)
}

// DELETE /api/v1/timeslots/:id
func (h *TimeslotHandler) Delete(c fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, valid := idParam(c, "id")
	if !valid {
		return badRequest(c, "invalid timeslot id")
	}

	if err := h.svc.DeleteTimeslot(c.Context(), actor, id); err != nil {
		return mapServiceError(c, err)
	}
	return noContent(c)
}

// POST /api/v1/timeslots/:id/book
//
// A client books for itself; providers and admins name the client.
func (h *TimeslotHandler) Book(c fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, valid := idParam(c, "id")
	if !valid {
		return badRequest(c, "invalid timeslot id")
	}

	var body struct {
		ClientID *uuid.UUID `json:"client_id"`
	}
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&body); err != nil {
			return badRequest(c, "invalid request body")
		}
	}

	clientID := actor.ID
	if body.ClientID != nil {
		clientID = *body.ClientID
	} else if !actor.IsClient() {
		return badRequest(c, "client_id is required")
	}

	slot, err := h.svc.BookTimeslot(c.Context(), actor, id, clientID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return ok(c, slot)
}

// POST /api/v1/timeslots/:id/cancel
func (h *TimeslotHandler) Cancel(c fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, valid := idParam(c, "id")
	if !valid {
		return badRequest(c, "invalid timeslot id")
	}

	slot, err := h.svc.CancelBooking(c.Context(), actor, id)
	if err != nil {
		return mapServiceError(c, err)
	}
	return ok(c, slot)
}

// POST /api/v1/timeslots/:id/complete
func (h *TimeslotHandler) Complete(c fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, valid := idParam(c, "id")
	if !valid {
		return badRequest(c, "invalid timeslot id")
	}

	slot, err := h.svc.CompleteTimeslot(c.Context(), actor, id)
	if err != nil {
		return mapServiceError(c, err)
	}
	return ok(c, slot)
}
