package handler

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/bookspot/bookspot_backend/internal/api/http/middleware"
	"github.com/bookspot/bookspot_backend/internal/policy"
	"github.com/bookspot/bookspot_backend/internal/service/auth"
	"github.com/bookspot/bookspot_backend/internal/service/link"
	"github.com/bookspot/bookspot_backend/internal/service/scheduling"
	"github.com/bookspot/bookspot_backend/internal/service/user"
)

// mapServiceError turns the service error kinds into HTTP responses. Every
// service in this module reuses the scheduling kinds, so one switch covers
// them all.
func mapServiceError(c fiber.Ctx, err error) error {
	var verr *scheduling.ValidationError
	switch {
	case errors.Is(err, user.ErrEmailAlreadyExists), errors.Is(err, link.ErrAlreadyLinked):
		return fail(c, fiber.StatusConflict, err.Error())
	case errors.As(err, &verr):
		return invalidField(c, verr.Field, verr.Error())
	case errors.Is(err, scheduling.ErrValidation):
		return badRequest(c, err.Error())
	case errors.Is(err, scheduling.ErrUnauthorizedRelationship):
		return fail(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, scheduling.ErrForbidden):
		return forbidden(c)
	case errors.Is(err, scheduling.ErrNotFound):
		return fail(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, scheduling.ErrBookingConflict),
		errors.Is(err, scheduling.ErrInvalidStateTransition):
		return fail(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrSessionNotFound):
		return fail(c, fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrAccountLocked):
		return fail(c, fiber.StatusTooManyRequests, err.Error())
	default:
		slog.ErrorContext(c.Context(), "request failed", "path", c.Path(), "err", err)
		return fail(c, fiber.StatusInternalServerError, "internal server error")
	}
}

func actorOf(c fiber.Ctx) (policy.Actor, error) {
	a, found := middleware.ActorFromFiber(c)
	if !found {
		return policy.Actor{}, fiber.ErrUnauthorized
	}
	return a, nil
}

// idParam parses a UUID path parameter.
func idParam(c fiber.Ctx, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(name))
	return id, err == nil
}
