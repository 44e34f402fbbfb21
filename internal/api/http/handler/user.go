package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/bookspot/bookspot_backend/internal/schema"
	"github.com/bookspot/bookspot_backend/internal/service/user"
)

type UserHandler struct {
	svc user.Service
}

func NewUserHandler(svc user.Service) *UserHandler {
	return &UserHandler{svc: svc}
}

// GET /api/v1/users/me
func (h *UserHandler) GetMe(c fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}

	u, err := h.svc.Get(c.Context(), actor, actor.ID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return ok(c, u)
}

// GET /api/v1/users
func (h *UserHandler) List(c fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}

	var q struct {
		Role   string `query:"role"`
		Limit  int    `query:"limit"`
		Offset int    `query:"offset"`
	}
	if err := c.Bind().Query(&q); err != nil {
		return badRequest(c, "invalid query parameters")
	}

	req := user.ListRequest{Limit: q.Limit, Offset: q.Offset}
	if q.Role != "" {
		r := schema.Role(q.Role)
		if !r.Valid() {
			return badRequest(c, "invalid role")
		}
		req.Role = &r
	}

	users, err := h.svc.List(c.Context(), actor, req)
	if err != nil {
		return mapServiceError(c, err)
	}
	return ok(c, users)
}

// POST /api/v1/users
func (h *UserHandler) Create(c fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}

	var body struct {
		Name     string      `json:"name"`
		Email    string      `json:"email"`
		Password string      `json:"password"`
		Role     schema.Role `json:"role"`
		Timezone string      `json:"timezone"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	u, err := h.svc.Create(c.Context(), actor, user.CreateRequest{
		Name:     body.Name,
		Email:    body.Email,
		Password: body.Password,
		Role:     body.Role,
		Timezone: body.Timezone,
	})
	if err != nil {
		return mapServiceError(c, err)
	}
	return created(c, u)
}

// GET /api/v1/users/:id
func (h *UserHandler) Get(c fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, valid := idParam(c, "id")
	if !valid {
		return badRequest(c, "invalid user id")
	}

	u, err := h.svc.Get(c.Context(), actor, id)
	if err != nil {
		return mapServiceError(c, err)
	}
	return ok(c, u)
}

// DELETE /api/v1/users/:id
func (h *UserHandler) Delete(c fiber.Ctx) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, valid := idParam(c, "id")
	if !valid {
		return badRequest(c, "invalid user id")
	}

	if err := h.svc.Delete(c.Context(), actor, id); err != nil {
		return mapServiceError(c, err)
	}
	return noContent(c)
}
