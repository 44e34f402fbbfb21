package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/bookspot/bookspot_backend/internal/policy"
	"github.com/bookspot/bookspot_backend/internal/schema"
	"github.com/bookspot/bookspot_backend/internal/service/auth"
	"github.com/bookspot/bookspot_backend/internal/service/user"
	"github.com/bookspot/bookspot_backend/pkg/reqctx"
)

type AuthHandler struct {
	svc   auth.Service
	users user.Service
}

func NewAuthHandler(svc auth.Service, users user.Service) *AuthHandler {
	return &AuthHandler{svc: svc, users: users}
}

// POST /api/v1/auth/register
//
// Self-registration is open to clients and service providers only.
func (h *AuthHandler) Register(c fiber.Ctx) error {
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
	if body.Role == "" {
		body.Role = schema.RoleClient
	}

	u, err := h.users.Create(c.Context(), policy.Actor{}, user.CreateRequest{
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

// POST /api/v1/auth/login
func (h *AuthHandler) Login(c fiber.Ctx) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.Email == "" || body.Password == "" {
		return badRequest(c, "email and password are required")
	}

	tokens, err := h.svc.Login(c.Context(), auth.LoginRequest{
		Email:    body.Email,
		Password: body.Password,
	})
	if err != nil {
		return mapServiceError(c, err)
	}
	return ok(c, tokenBody(tokens))
}

// POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(c fiber.Ctx) error {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.RefreshToken == "" {
		return badRequest(c, "refresh_token is required")
	}

	tokens, err := h.svc.RefreshTokens(c.Context(), body.RefreshToken)
	if err != nil {
		return mapServiceError(c, err)
	}
	return ok(c, tokenBody(tokens))
}

// POST /api/v1/auth/logout  (requires AuthRequired middleware)
func (h *AuthHandler) Logout(c fiber.Ctx) error {
	sessionID, found := reqctx.SessionIDFromContext(c.Context())
	if !found {
		return unauthorized(c)
	}

	if err := h.svc.Logout(c.Context(), sessionID); err != nil {
		return mapServiceError(c, err)
	}
	return noContent(c)
}

func tokenBody(t *auth.AuthTokens) fiber.Map {
	return fiber.Map{
		"access_token":  t.AccessToken,
		"refresh_token": t.RefreshToken,
		"expires_in":    t.ExpiresIn,
	}
}
