package middleware

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/bookspot/bookspot_backend/internal/policy"
	"github.com/bookspot/bookspot_backend/internal/service/auth"
	"github.com/bookspot/bookspot_backend/pkg/authorize"
	"github.com/bookspot/bookspot_backend/pkg/reqctx"
)

const LocalsActor = "actor"

// AuthRequired validates a Bearer PASETO access token against its Redis
// session, loads the account and its permission claims, and stores the
// resulting actor in Locals and in the request context.
func AuthRequired(svc auth.Service, authz authorize.IAuthorization) fiber.Handler {
	return func(c fiber.Ctx) error {
		h := c.Get("Authorization")
		if h == "" {
			return fiber.ErrUnauthorized
		}

		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return fiber.ErrUnauthorized
		}

		sess, err := svc.Authenticate(c.Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrSessionNotFound) {
				return fiber.ErrUnauthorized
			}
			return err
		}

		actor := policy.Actor{
			ID:       sess.User.ID,
			Role:     sess.User.Role,
			Timezone: sess.User.Timezone,
		}
		if authz != nil {
			claims, err := authorize.ClaimsFor(c.Context(), authz, sess.User.ID.String())
			if err != nil {
				slog.ErrorContext(c.Context(), "load permission claims", "user_id", sess.User.ID, "err", err)
				return err
			}
			actor.Claims = claims
		}

		ctx := reqctx.WithClaims(c.Context(), sess.Claims)
		c.SetContext(reqctx.WithActor(ctx, actor))
		c.Locals(LocalsActor, actor)
		return c.Next()
	}
}

// ActorFromFiber returns the actor stored by AuthRequired.
func ActorFromFiber(c fiber.Ctx) (policy.Actor, bool) {
	a, ok := c.Locals(LocalsActor).(policy.Actor)
	return a, ok
}
