package timeslot_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	qslot "github.com/bookspot/bookspot_backend/internal/repo/timeslot"
	"github.com/bookspot/bookspot_backend/internal/schema"
	"github.com/bookspot/bookspot_backend/internal/testutil"
)

var base = time.Date(2030, time.June, 1, 8, 0, 0, 0, time.UTC)

func seed(t *testing.T, db *gorm.DB, providerID uuid.UUID, offset time.Duration, minutes int, status schema.TimeslotStatus, clientID *uuid.UUID) *schema.Timeslot {
	t.Helper()
	s := &schema.Timeslot{
		ProviderID:      providerID,
		ClientID:        clientID,
		StartTime:       base.Add(offset),
		DurationMinutes: minutes,
		Status:          status,
	}
	if err := db.Create(s).Error; err != nil {
		t.Fatalf("seed timeslot: %v", err)
	}
	return s
}

func ids(t *testing.T, db *gorm.DB, scopes ...qslot.Scope) []uuid.UUID {
	t.Helper()
	var slots []schema.Timeslot
	if err := db.Scopes(append(scopes, qslot.ByStartTime())...).Find(&slots).Error; err != nil {
		t.Fatalf("query: %v", err)
	}
	out := make([]uuid.UUID, len(slots))
	for i := range slots {
		out[i] = slots[i].ID
	}
	return out
}

func TestScopes(t *testing.T) {
	db := testutil.OpenDB(t)
	p := testutil.CreateUser(t, db, schema.RoleServiceProvider)
	q := testutil.CreateUser(t, db, schema.RoleServiceProvider)
	c := testutil.CreateUser(t, db, schema.RoleClient)
	testutil.Link(t, db, p.ID, c.ID, schema.LinkActive)
	testutil.Link(t, db, q.ID, c.ID, schema.LinkInactive)

	early := seed(t, db, p.ID, 0, 60, schema.StatusBooked, &c.ID)
	open := seed(t, db, p.ID, 2*time.Hour, 30, schema.StatusAvailable, nil)
	done := seed(t, db, p.ID, -2*time.Hour, 60, schema.StatusCompleted, nil)
	other := seed(t, db, q.ID, 2*time.Hour, 30, schema.StatusAvailable, nil)

	now := base.Add(30 * time.Minute)

	tests := []struct {
		name   string
		scopes []qslot.Scope
		want   []uuid.UUID
	}{
		{"provider", []qslot.Scope{qslot.ProviderID(p.ID)}, []uuid.UUID{done.ID, early.ID, open.ID}},
		{"provider set", []qslot.Scope{qslot.ProviderIDIn(q.ID)}, []uuid.UUID{other.ID}},
		{"empty provider set", []qslot.Scope{qslot.ProviderIDIn()}, []uuid.UUID{}},
		{"client", []qslot.Scope{qslot.ClientID(c.ID), qslot.Booked()}, []uuid.UUID{early.ID}},
		{"completed", []qslot.Scope{qslot.Completed()}, []uuid.UUID{done.ID}},
		{"not available", []qslot.Scope{qslot.StatusNEQ(schema.StatusAvailable)}, []uuid.UUID{done.ID, early.ID}},
		{"available to linked client", []qslot.Scope{qslot.LinkedProvidersOf(c.ID), qslot.Available(now)}, []uuid.UUID{open.ID}},
		{"future", []qslot.Scope{qslot.Future(now), qslot.ProviderID(p.ID)}, []uuid.UUID{open.ID}},
		{"ended by now", []qslot.Scope{qslot.EndedBy(now)}, []uuid.UUID{done.ID}},
		{"ended at the boundary", []qslot.Scope{qslot.EndedBy(base.Add(time.Hour)), qslot.Booked()}, []uuid.UUID{early.ID}},
		{"window", []qslot.Scope{qslot.StartTimeGTE(base), qslot.StartTimeLT(base.Add(2 * time.Hour))}, []uuid.UUID{early.ID}},
		{"overlap", []qslot.Scope{qslot.Overlapping(base.Add(50*time.Minute), base.Add(130*time.Minute)), qslot.ProviderID(p.ID)}, []uuid.UUID{early.ID, open.ID}},
		{"touching is not overlap", []qslot.Scope{qslot.Overlapping(base.Add(time.Hour), base.Add(2*time.Hour)), qslot.ProviderID(p.ID)}, []uuid.UUID{}},
		{"exclude self", []qslot.Scope{qslot.Overlapping(base, base.Add(time.Hour)), qslot.IDNEQ(early.ID)}, []uuid.UUID{}},
		{"page", []qslot.Scope{qslot.ProviderID(p.ID), qslot.Page(1, 1)}, []uuid.UUID{early.ID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(t, db, tt.scopes...)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d rows, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("row %d = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}
