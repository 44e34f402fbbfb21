package authorize

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/bookspot/bookspot_backend/pkg/reqctx"
)

var (
	ErrNoSubjectInContext = errors.New("no subject found in context")
)

// UserIDFromContext returns the caller's id, preferring the resolved actor
// over raw token claims.
func UserIDFromContext(ctx context.Context) (uuid.UUID, error) {
	if a, ok := reqctx.ActorFromContext(ctx); ok && a.ID != uuid.Nil {
		return a.ID, nil
	}
	if claims := reqctx.ClaimsFromContext(ctx); claims != nil {
		if id := claims.GetUserID(); id != uuid.Nil {
			return id, nil
		}
	}
	return uuid.Nil, ErrNoSubjectInContext
}

// SubjectFromContext extracts the Casbin subject (user id) from context.
func SubjectFromContext(ctx context.Context) (GroupSubject, error) {
	id, err := UserIDFromContext(ctx)
	if err != nil {
		return "", err
	}
	return GroupSubject(id.String()), nil
}
