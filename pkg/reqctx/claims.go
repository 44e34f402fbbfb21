package reqctx

import (
	"context"

	"github.com/google/uuid"
)

// SessionClaims is the verified token behind an authenticated request.
type SessionClaims interface {
	GetUserID() uuid.UUID
	GetSessionID() uuid.UUID
	GetRole() string
}

func WithClaims(ctx context.Context, claims SessionClaims) context.Context {
	return context.WithValue(ctx, keyClaims, claims)
}

// ClaimsFromContext returns nil for anonymous requests.
func ClaimsFromContext(ctx context.Context) SessionClaims {
	claims, _ := ctx.Value(keyClaims).(SessionClaims)
	return claims
}

// SessionIDFromContext returns the session the request was authenticated
// with, which is what logout revokes.
func SessionIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	claims := ClaimsFromContext(ctx)
	if claims == nil || claims.GetSessionID() == uuid.Nil {
		return uuid.Nil, false
	}
	return claims.GetSessionID(), true
}
