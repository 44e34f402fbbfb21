package reqctx

import (
	"context"

	"github.com/bookspot/bookspot_backend/internal/policy"
)

// WithActor stores the authenticated caller, with role and claims resolved.
func WithActor(ctx context.Context, a policy.Actor) context.Context {
	return context.WithValue(ctx, keyActor, a)
}

// ActorFromContext returns the caller stored by WithActor.
func ActorFromContext(ctx context.Context) (policy.Actor, bool) {
	a, ok := ctx.Value(keyActor).(policy.Actor)
	return a, ok
}
