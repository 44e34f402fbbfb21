package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/bookspot/bookspot_backend/pkg/authorize"
)

// RequirePermission checks the authenticated actor's casbin permission in the
// system domain. Ownership and relationship checks stay in the services.
func RequirePermission(auth authorize.IAuthorization, resource authorize.Resource, action authorize.Action) fiber.Handler {
	return func(c fiber.Ctx) error {
		subject, err := authorize.SubjectFromContext(c.Context())
		if err != nil {
			return fiber.ErrUnauthorized
		}

		if err := auth.MustEnforce(c.Context(), subject, authorize.DomainSys, resource, action); err != nil {
			if errors.Is(err, authorize.ErrForbidden) {
				return fiber.ErrForbidden
			}
			return err
		}

		return c.Next()
	}
}
