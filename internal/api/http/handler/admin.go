package handler

import (
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/bookspot/bookspot_backend/internal/policy"
	"github.com/bookspot/bookspot_backend/internal/service/audit"
	"github.com/bookspot/bookspot_backend/internal/service/scheduling"
)

type AdminHandler struct {
	sweeper *scheduling.SweepRunner
	audit   audit.Service
}

func NewAdminHandler(sweeper *scheduling.SweepRunner, auditSvc audit.Service) *AdminHandler {
	return &AdminHandler{sweeper: sweeper, audit: auditSvc}
}

// POST /api/v1/admin/sweep
//
// Runs one completion sweep now. completed is zero when another instance
// holds the sweep lock.
func (h *AdminHandler) Sweep(c fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	if !policy.CanRunSweep(actor) {
		return forbidden(c)
	}

	n, err := h.sweeper.RunOnce(c.Context())
	if err != nil {
		return mapServiceError(c, err)
	}
	return ok(c, fiber.Map{"completed": n})
}

// GET /api/v1/audit
func (h *AdminHandler) ListAudit(c fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}

	var q struct {
		TimeslotID string `query:"timeslot_id"`
		ProviderID string `query:"provider_id"`
		Limit      int    `query:"limit"`
		Offset     int    `query:"offset"`
	}
	if err := c.Bind().Query(&q); err != nil {
		return badRequest(c, "invalid query parameters")
	}

	req := audit.ListRequest{Limit: q.Limit, Offset: q.Offset}
	if q.TimeslotID != "" {
		id, err := uuid.Parse(q.TimeslotID)
		if err != nil {
			return badRequest(c, "invalid timeslot_id")
		}
		req.TimeslotID = &id
	}
	if q.ProviderID != "" {
		id, err := uuid.Parse(q.ProviderID)
		if err != nil {
			return badRequest(c, "invalid provider_id")
		}
		req.ProviderID = &id
	}

	entries, err := h.audit.List(c.Context(), actor, req)
	if err != nil {
		return mapServiceError(c, err)
	}
	return ok(c, entries)
}
