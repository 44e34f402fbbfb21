package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/bookspot/bookspot_backend/internal/api/http/middleware"
)

// Successful bodies are {"data": ...}. Failures are {"error": message} with
// the request id attached, plus "field" when a single input was rejected.

func ok(c fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{"data": data})
}

func created(c fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": data})
}

func noContent(c fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}

func fail(c fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(errorBody(c, msg))
}

func invalidField(c fiber.Ctx, field, msg string) error {
	body := errorBody(c, msg)
	body["field"] = field
	return c.Status(fiber.StatusBadRequest).JSON(body)
}

func errorBody(c fiber.Ctx, msg string) fiber.Map {
	body := fiber.Map{"error": msg}
	if rid, found := middleware.RequestIDFromFiber(c); found {
		body["request_id"] = rid
	}
	return body
}

func badRequest(c fiber.Ctx, msg string) error {
	return fail(c, fiber.StatusBadRequest, msg)
}

func unauthorized(c fiber.Ctx) error {
	return fail(c, fiber.StatusUnauthorized, "authentication required")
}

func forbidden(c fiber.Ctx) error {
	return fail(c, fiber.StatusForbidden, "not allowed to perform this action")
}
