package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bookspot/bookspot_backend/internal/policy"
	"github.com/bookspot/bookspot_backend/internal/schema"
	"github.com/bookspot/bookspot_backend/internal/service/scheduling"
	"github.com/bookspot/bookspot_backend/internal/testutil"
	"github.com/bookspot/bookspot_backend/pkg/events"
)

func TestRecordAndList(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := New(db)
	ctx := context.Background()

	providerA, providerB := uuid.New(), uuid.New()
	slotA := uuid.New()
	client := uuid.New()
	at := time.Date(2030, 3, 4, 9, 0, 0, 0, time.UTC)

	for i, e := range []events.TimeslotEvent{
		{Kind: events.KindCreated, TimeslotID: slotA, ProviderID: providerA, Status: "available", OccurredAt: at},
		{Kind: events.KindBooked, TimeslotID: slotA, ProviderID: providerA, ClientID: &client, Status: "booked", OccurredAt: at.Add(time.Minute)},
		{Kind: events.KindCreated, TimeslotID: uuid.New(), ProviderID: providerB, Status: "available", OccurredAt: at.Add(2 * time.Minute)},
	} {
		if err := svc.Record(ctx, e); err != nil {
			t.Fatalf("Record(%d) error = %v", i, err)
		}
	}

	admin := policy.Actor{ID: uuid.New(), Role: schema.RoleAdmin}
	all, err := svc.List(ctx, admin, ListRequest{})
	if err != nil || len(all) != 3 {
		t.Fatalf("List(admin) = %d, %v, want 3", len(all), err)
	}

	var decoded events.TimeslotEvent
	if err := json.Unmarshal(all[1].Payload, &decoded); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if decoded.Kind != events.KindBooked || decoded.ClientID == nil || *decoded.ClientID != client {
		t.Errorf("payload = %+v, want the booked event", decoded)
	}

	provider := policy.Actor{ID: providerA, Role: schema.RoleServiceProvider}
	own, err := svc.List(ctx, provider, ListRequest{TimeslotID: &slotA})
	if err != nil || len(own) != 2 {
		t.Errorf("List(provider) = %d, %v, want 2", len(own), err)
	}
	if _, err := svc.List(ctx, provider, ListRequest{ProviderID: &providerB}); !errors.Is(err, scheduling.ErrForbidden) {
		t.Errorf("List(other provider) error = %v, want ErrForbidden", err)
	}
	if _, err := svc.List(ctx, policy.Actor{ID: client, Role: schema.RoleClient}, ListRequest{}); !errors.Is(err, scheduling.ErrForbidden) {
		t.Errorf("List(client) error = %v, want ErrForbidden", err)
	}
}
