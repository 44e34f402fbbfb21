package authorize

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/bookspot/bookspot_backend/internal/policy"
	"github.com/bookspot/bookspot_backend/internal/schema"
	"github.com/bookspot/bookspot_backend/pkg/reqctx"
)

type stubClaims struct{ id uuid.UUID }

func (s stubClaims) GetUserID() uuid.UUID    { return s.id }
func (s stubClaims) GetSessionID() uuid.UUID { return uuid.New() }
func (s stubClaims) GetRole() string         { return "client" }

func TestSubjectFromContext(t *testing.T) {
	actorID := uuid.New()
	claimsID := uuid.New()

	tests := []struct {
		name    string
		ctx     context.Context
		want    GroupSubject
		wantErr error
	}{
		{
			name: "actor wins over claims",
			ctx: reqctx.WithActor(
				reqctx.WithClaims(context.Background(), stubClaims{id: claimsID}),
				policy.Actor{ID: actorID, Role: schema.RoleClient},
			),
			want: GroupSubject(actorID.String()),
		},
		{
			name: "claims only",
			ctx:  reqctx.WithClaims(context.Background(), stubClaims{id: claimsID}),
			want: GroupSubject(claimsID.String()),
		},
		{
			name:    "nil uuid in claims",
			ctx:     reqctx.WithClaims(context.Background(), stubClaims{}),
			wantErr: ErrNoSubjectInContext,
		},
		{
			name:    "empty context",
			ctx:     context.Background(),
			wantErr: ErrNoSubjectInContext,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SubjectFromContext(tt.ctx)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("SubjectFromContext() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("SubjectFromContext() = %q, want %q", got, tt.want)
			}
		})
	}
}
