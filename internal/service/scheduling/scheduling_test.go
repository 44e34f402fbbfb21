package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"

	"github.com/bookspot/bookspot_backend/internal/policy"
	"github.com/bookspot/bookspot_backend/internal/schema"
	"github.com/bookspot/bookspot_backend/internal/testutil"
	"github.com/bookspot/bookspot_backend/pkg/events"
)

var epoch = time.Date(2030, time.March, 4, 9, 0, 0, 0, time.UTC)

type fixture struct {
	db       *gorm.DB
	clock    *clockwork.FakeClock
	events   *events.Recorder
	svc      Service
	provider policy.Actor
	client   policy.Actor
	admin    policy.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.OpenDB(t)
	clock := clockwork.NewFakeClockAt(epoch)
	rec := &events.Recorder{}

	p := testutil.CreateUser(t, db, schema.RoleServiceProvider)
	c := testutil.CreateUser(t, db, schema.RoleClient)
	a := testutil.CreateUser(t, db, schema.RoleAdmin)
	testutil.Link(t, db, p.ID, c.ID, schema.LinkActive)

	return &fixture{
		db:       db,
		clock:    clock,
		events:   rec,
		svc:      New(db, clock, rec, nil, DefaultConfig()),
		provider: policy.Actor{ID: p.ID, Role: schema.RoleServiceProvider},
		client:   policy.Actor{ID: c.ID, Role: schema.RoleClient},
		admin:    policy.Actor{ID: a.ID, Role: schema.RoleAdmin},
	}
}

func (f *fixture) create(t *testing.T, start time.Time, minutes int) *schema.Timeslot {
	t.Helper()
	slot, err := f.svc.CreateTimeslot(context.Background(), f.provider, CreateTimeslotRequest{
		StartTime:       start,
		DurationMinutes: minutes,
	})
	if err != nil {
		t.Fatalf("create timeslot: %v", err)
	}
	return slot
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *schema.Timeslot {
	t.Helper()
	var slot schema.Timeslot
	if err := f.db.Where("id = ?", id).Take(&slot).Error; err != nil {
		t.Fatalf("reload timeslot: %v", err)
	}
	return &slot
}

// assertBookedInvariant checks status == booked <=> client is set, over every row.
func assertBookedInvariant(t *testing.T, db *gorm.DB) {
	t.Helper()
	var slots []schema.Timeslot
	if err := db.Find(&slots).Error; err != nil {
		t.Fatalf("list timeslots: %v", err)
	}
	for _, s := range slots {
		if s.IsBooked() != (s.ClientID != nil) {
			t.Errorf("timeslot %s: status=%s client=%v breaks booked<=>client", s.ID, s.Status, s.ClientID)
		}
	}
}

func TestBookThenCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	slot := f.create(t, epoch.Add(48*time.Hour), 60)
	if slot.Status != schema.StatusAvailable || slot.ClientID != nil {
		t.Fatalf("new slot = %s/%v, want available with no client", slot.Status, slot.ClientID)
	}
	if want := slot.StartTime.Add(time.Hour); !slot.EndTime.Equal(want) {
		t.Errorf("EndTime = %v, want %v", slot.EndTime, want)
	}

	booked, err := f.svc.BookTimeslot(ctx, f.client, slot.ID, f.client.ID)
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if booked.Status != schema.StatusBooked || !booked.BookedBy(f.client.ID) {
		t.Fatalf("booked slot = %s/%v, want booked by client", booked.Status, booked.ClientID)
	}

	cancelled, err := f.svc.CancelBooking(ctx, f.client, slot.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != schema.StatusAvailable || cancelled.ClientID != nil {
		t.Fatalf("cancelled slot = %s/%v, want available with no client", cancelled.Status, cancelled.ClientID)
	}

	stored := f.reload(t, slot.ID)
	if stored.Status != schema.StatusAvailable || stored.ClientID != nil {
		t.Errorf("stored slot = %s/%v, want available with no client", stored.Status, stored.ClientID)
	}

	want := []events.Kind{events.KindCreated, events.KindBooked, events.KindCancelled}
	got := f.events.Kinds()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	assertBookedInvariant(t, f.db)
}

func TestCreateWithClientIsBookedImmediately(t *testing.T) {
	f := newFixture(t)

	slot, err := f.svc.CreateTimeslot(context.Background(), f.provider, CreateTimeslotRequest{
		StartTime:       epoch.Add(24 * time.Hour),
		DurationMinutes: 30,
		ClientID:        &f.client.ID,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if slot.Status != schema.StatusBooked || !slot.BookedBy(f.client.ID) {
		t.Fatalf("slot = %s/%v, want booked by client", slot.Status, slot.ClientID)
	}
	if kinds := f.events.Kinds(); len(kinds) != 1 || kinds[0] != events.KindCreated {
		t.Errorf("events = %v, want a single created event", kinds)
	}
}

func TestCreateWithUnlinkedClient(t *testing.T) {
	f := newFixture(t)
	stranger := testutil.CreateUser(t, f.db, schema.RoleClient)

	_, err := f.svc.CreateTimeslot(context.Background(), f.provider, CreateTimeslotRequest{
		StartTime:       epoch.Add(24 * time.Hour),
		DurationMinutes: 30,
		ClientID:        &stranger.ID,
	})
	if !errors.Is(err, ErrUnauthorizedRelationship) {
		t.Fatalf("err = %v, want ErrUnauthorizedRelationship", err)
	}

	var n int64
	f.db.Model(&schema.Timeslot{}).Count(&n)
	if n != 0 {
		t.Errorf("timeslots = %d, want 0 after failed create", n)
	}
}

func TestCreateRejectsOverlap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day := epoch.Add(24 * time.Hour).Truncate(24 * time.Hour)
	ten := day.Add(10 * time.Hour)

	f.create(t, ten, 60)

	_, err := f.svc.CreateTimeslot(ctx, f.provider, CreateTimeslotRequest{
		StartTime:       ten.Add(30 * time.Minute),
		DurationMinutes: 60,
	})
	var verr *ValidationError
	if !errors.As(err, &verr) || !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if verr.Field != "start_time" {
		t.Errorf("field = %q, want start_time", verr.Field)
	}

	other := testutil.CreateUser(t, f.db, schema.RoleServiceProvider)
	otherActor := policy.Actor{ID: other.ID, Role: schema.RoleServiceProvider}
	if _, err := f.svc.CreateTimeslot(ctx, otherActor, CreateTimeslotRequest{
		StartTime:       ten.Add(30 * time.Minute),
		DurationMinutes: 60,
	}); err != nil {
		t.Fatalf("same interval for another provider: %v", err)
	}

	// [11:00, 12:00) only touches [10:00, 11:00).
	f.create(t, ten.Add(time.Hour), 60)
}

func TestBookedNeighbourBlocksCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := epoch.Add(10 * time.Hour)

	slot := f.create(t, start, 60)
	if _, err := f.svc.BookTimeslot(ctx, f.client, slot.ID, f.client.ID); err != nil {
		t.Fatalf("book: %v", err)
	}

	_, err := f.svc.CreateTimeslot(ctx, f.provider, CreateTimeslotRequest{
		StartTime:       start.Add(-30 * time.Minute),
		DurationMinutes: 45,
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}

	// A completed slot keeps its interval too.
	if _, err := f.svc.CompleteTimeslot(ctx, f.provider, slot.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	_, err = f.svc.CreateTimeslot(ctx, f.provider, CreateTimeslotRequest{
		StartTime:       start.Add(15 * time.Minute),
		DurationMinutes: 15,
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		actor   policy.Actor
		req     CreateTimeslotRequest
		wantErr error
	}{
		{
			name:    "start in the past",
			actor:   f.provider,
			req:     CreateTimeslotRequest{StartTime: epoch.Add(-time.Minute), DurationMinutes: 60},
			wantErr: ErrValidation,
		},
		{
			name:    "start equal to now",
			actor:   f.provider,
			req:     CreateTimeslotRequest{StartTime: epoch, DurationMinutes: 60},
			wantErr: ErrValidation,
		},
		{
			name:    "missing start",
			actor:   f.provider,
			req:     CreateTimeslotRequest{DurationMinutes: 60},
			wantErr: ErrValidation,
		},
		{
			name:    "duration below minimum",
			actor:   f.provider,
			req:     CreateTimeslotRequest{StartTime: epoch.Add(time.Hour), DurationMinutes: 14},
			wantErr: ErrValidation,
		},
		{
			name:    "duration above maximum",
			actor:   f.provider,
			req:     CreateTimeslotRequest{StartTime: epoch.Add(time.Hour), DurationMinutes: 481},
			wantErr: ErrValidation,
		},
		{
			name:    "client cannot create",
			actor:   f.client,
			req:     CreateTimeslotRequest{StartTime: epoch.Add(time.Hour), DurationMinutes: 60},
			wantErr: ErrForbidden,
		},
		{
			name:    "admin must name provider",
			actor:   f.admin,
			req:     CreateTimeslotRequest{StartTime: epoch.Add(time.Hour), DurationMinutes: 60},
			wantErr: ErrValidation,
		},
		{
			name:    "admin naming a client as provider",
			actor:   f.admin,
			req:     CreateTimeslotRequest{ProviderID: &f.client.ID, StartTime: epoch.Add(time.Hour), DurationMinutes: 60},
			wantErr: ErrValidation,
		},
		{
			name:    "admin naming an unknown provider",
			actor:   f.admin,
			req:     CreateTimeslotRequest{ProviderID: ptr(uuid.New()), StartTime: epoch.Add(time.Hour), DurationMinutes: 60},
			wantErr: ErrNotFound,
		},
		{
			name:    "provider creating for another provider",
			actor:   f.provider,
			req:     CreateTimeslotRequest{ProviderID: ptr(uuid.New()), StartTime: epoch.Add(time.Hour), DurationMinutes: 60},
			wantErr: ErrForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateTimeslot(context.Background(), tt.actor, tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	t.Run("bounds are inclusive", func(t *testing.T) {
		for i, minutes := range []int{15, 480} {
			start := epoch.Add(time.Duration(24*(i+1)) * time.Hour)
			if _, err := f.svc.CreateTimeslot(context.Background(), f.provider, CreateTimeslotRequest{
				StartTime:       start,
				DurationMinutes: minutes,
			}); err != nil {
				t.Errorf("duration %d: %v", minutes, err)
			}
		}
	})
}

func TestConcurrentBookingAdmitsOne(t *testing.T) {
	f := newFixture(t)
	slot := f.create(t, epoch.Add(48*time.Hour), 60)

	const n = 8
	clients := make([]policy.Actor, n)
	for i := range clients {
		c := testutil.CreateUser(t, f.db, schema.RoleClient)
		testutil.Link(t, f.db, f.provider.ID, c.ID, schema.LinkActive)
		clients[i] = policy.Actor{ID: c.ID, Role: schema.RoleClient}
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
		others    []error
	)
	start := make(chan struct{})
	for _, c := range clients {
		wg.Add(1)
		go func(c policy.Actor) {
			defer wg.Done()
			<-start
			_, err := f.svc.BookTimeslot(context.Background(), c, slot.ID, c.ID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrBookingConflict):
				conflicts++
			default:
				others = append(others, err)
			}
		}(c)
	}
	close(start)
	wg.Wait()

	if len(others) > 0 {
		t.Fatalf("unexpected errors: %v", others)
	}
	if successes != 1 || conflicts != n-1 {
		t.Fatalf("successes=%d conflicts=%d, want 1 and %d", successes, conflicts, n-1)
	}

	stored := f.reload(t, slot.ID)
	if !stored.IsBooked() || stored.ClientID == nil {
		t.Fatalf("stored slot = %s/%v, want booked with a client", stored.Status, stored.ClientID)
	}
	assertBookedInvariant(t, f.db)
}

func TestBookPreconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("unknown timeslot", func(t *testing.T) {
		_, err := f.svc.BookTimeslot(ctx, f.client, uuid.New(), f.client.ID)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("already booked", func(t *testing.T) {
		slot := f.create(t, epoch.Add(5*time.Hour), 60)
		if _, err := f.svc.BookTimeslot(ctx, f.client, slot.ID, f.client.ID); err != nil {
			t.Fatalf("book: %v", err)
		}
		_, err := f.svc.BookTimeslot(ctx, f.client, slot.ID, f.client.ID)
		if !errors.Is(err, ErrBookingConflict) {
			t.Errorf("err = %v, want ErrBookingConflict", err)
		}
	})

	t.Run("started", func(t *testing.T) {
		g := newFixture(t)
		slot := g.create(t, epoch.Add(30*time.Minute), 15)
		g.clock.Advance(time.Hour)
		_, err := g.svc.BookTimeslot(ctx, g.client, slot.ID, g.client.ID)
		if !errors.Is(err, ErrBookingConflict) {
			t.Errorf("err = %v, want ErrBookingConflict", err)
		}
	})

	t.Run("unlinked client", func(t *testing.T) {
		slot := f.create(t, epoch.Add(7*time.Hour), 60)
		stranger := testutil.CreateUser(t, f.db, schema.RoleClient)
		actor := policy.Actor{ID: stranger.ID, Role: schema.RoleClient}
		_, err := f.svc.BookTimeslot(ctx, actor, slot.ID, stranger.ID)
		if !errors.Is(err, ErrUnauthorizedRelationship) {
			t.Errorf("err = %v, want ErrUnauthorizedRelationship", err)
		}
	})

	t.Run("inactive link", func(t *testing.T) {
		slot := f.create(t, epoch.Add(9*time.Hour), 60)
		idle := testutil.CreateUser(t, f.db, schema.RoleClient)
		testutil.Link(t, f.db, f.provider.ID, idle.ID, schema.LinkInactive)
		actor := policy.Actor{ID: idle.ID, Role: schema.RoleClient}
		_, err := f.svc.BookTimeslot(ctx, actor, slot.ID, idle.ID)
		if !errors.Is(err, ErrUnauthorizedRelationship) {
			t.Errorf("err = %v, want ErrUnauthorizedRelationship", err)
		}
	})

	t.Run("client booking for someone else", func(t *testing.T) {
		slot := f.create(t, epoch.Add(11*time.Hour), 60)
		_, err := f.svc.BookTimeslot(ctx, f.client, slot.ID, uuid.New())
		if !errors.Is(err, ErrForbidden) {
			t.Errorf("err = %v, want ErrForbidden", err)
		}
	})
}

func TestProviderReassignsBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	second := testutil.CreateUser(t, f.db, schema.RoleClient)
	testutil.Link(t, f.db, f.provider.ID, second.ID, schema.LinkActive)
	secondActor := policy.Actor{ID: second.ID, Role: schema.RoleClient}

	slot := f.create(t, epoch.Add(24*time.Hour), 60)
	if _, err := f.svc.BookTimeslot(ctx, f.client, slot.ID, f.client.ID); err != nil {
		t.Fatalf("book: %v", err)
	}

	if _, err := f.svc.BookTimeslot(ctx, secondActor, slot.ID, second.ID); !errors.Is(err, ErrBookingConflict) {
		t.Fatalf("client taking a booked slot: err = %v, want ErrBookingConflict", err)
	}

	swapped, err := f.svc.BookTimeslot(ctx, f.provider, slot.ID, second.ID)
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if !swapped.BookedBy(second.ID) || !swapped.IsBooked() {
		t.Fatalf("reassigned slot = %s/%v, want booked by second client", swapped.Status, swapped.ClientID)
	}

	stranger := testutil.CreateUser(t, f.db, schema.RoleClient)
	if _, err := f.svc.BookTimeslot(ctx, f.provider, slot.ID, stranger.ID); !errors.Is(err, ErrUnauthorizedRelationship) {
		t.Errorf("reassign to unlinked client: err = %v, want ErrUnauthorizedRelationship", err)
	}

	kinds := f.events.Kinds()
	if kinds[len(kinds)-1] != events.KindReassigned {
		t.Errorf("last event = %s, want reassigned", kinds[len(kinds)-1])
	}
}

func TestSweepCompletesExpiredBookingsThenDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	slot := f.create(t, epoch.Add(time.Hour), 60)
	if _, err := f.svc.BookTimeslot(ctx, f.client, slot.ID, f.client.ID); err != nil {
		t.Fatalf("book: %v", err)
	}
	open := f.create(t, epoch.Add(150*time.Minute), 15)

	f.clock.Advance(3 * time.Hour)

	if stored := f.reload(t, slot.ID); !stored.IsBooked() {
		t.Fatalf("before sweep status = %s, want booked", stored.Status)
	}

	n, err := f.svc.SweepCompleted(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("swept = %d, want 1", n)
	}
	if stored := f.reload(t, slot.ID); !stored.IsCompleted() {
		t.Fatalf("after sweep status = %s, want completed", stored.Status)
	}
	if stored := f.reload(t, open.ID); !stored.IsAvailable() {
		t.Errorf("unbooked slot status = %s, want available", stored.Status)
	}

	if err := f.svc.DeleteTimeslot(ctx, f.provider, slot.ID); err != nil {
		t.Fatalf("delete completed: %v", err)
	}
	if _, err := f.svc.GetTimeslot(ctx, f.provider, slot.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("get after delete: err = %v, want ErrNotFound", err)
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		slot := f.create(t, epoch.Add(time.Duration(i+1)*time.Hour), 30)
		if _, err := f.svc.BookTimeslot(ctx, f.client, slot.ID, f.client.ID); err != nil {
			t.Fatalf("book: %v", err)
		}
	}
	f.clock.Advance(2 * time.Hour)

	first, err := f.svc.SweepCompleted(ctx)
	if err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	if first != 1 {
		t.Fatalf("first sweep = %d, want 1", first)
	}

	second, err := f.svc.SweepCompleted(ctx)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if second != 0 {
		t.Fatalf("second sweep = %d, want 0", second)
	}

	f.clock.Advance(2 * time.Hour)
	third, err := f.svc.SweepCompleted(ctx)
	if err != nil {
		t.Fatalf("third sweep: %v", err)
	}
	if third != 2 {
		t.Errorf("third sweep = %d, want 2", third)
	}
	assertBookedInvariant(t, f.db)

	var swept int
	for _, e := range f.events.Events() {
		if e.Kind != events.KindSwept {
			continue
		}
		swept++
		if e.ClientID == nil || *e.ClientID != f.client.ID {
			t.Errorf("swept event client = %v, want %s", e.ClientID, f.client.ID)
		}
	}
	if swept != 3 {
		t.Errorf("swept events = %d, want 3", swept)
	}
}

func TestCancelPastBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	slot := f.create(t, epoch.Add(time.Hour), 120)
	if _, err := f.svc.BookTimeslot(ctx, f.client, slot.ID, f.client.ID); err != nil {
		t.Fatalf("book: %v", err)
	}
	f.clock.Advance(90 * time.Minute)

	if _, err := f.svc.CancelBooking(ctx, f.client, slot.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("client cancel after start: err = %v, want ErrForbidden", err)
	}
	if stored := f.reload(t, slot.ID); !stored.BookedBy(f.client.ID) {
		t.Fatalf("failed cancel changed the slot: %s/%v", stored.Status, stored.ClientID)
	}

	cancelled, err := f.svc.CancelBooking(ctx, f.provider, slot.ID)
	if err != nil {
		t.Fatalf("provider cancel: %v", err)
	}
	if !cancelled.IsAvailable() || cancelled.ClientID != nil {
		t.Errorf("cancelled slot = %s/%v, want available with no client", cancelled.Status, cancelled.ClientID)
	}
}

func TestTransitionLegality(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	available := f.create(t, epoch.Add(24*time.Hour), 60)
	booked := f.create(t, epoch.Add(26*time.Hour), 60)
	if _, err := f.svc.BookTimeslot(ctx, f.client, booked.ID, f.client.ID); err != nil {
		t.Fatalf("book: %v", err)
	}

	t.Run("complete requires booked", func(t *testing.T) {
		_, err := f.svc.CompleteTimeslot(ctx, f.provider, available.ID)
		if !errors.Is(err, ErrInvalidStateTransition) {
			t.Errorf("err = %v, want ErrInvalidStateTransition", err)
		}
	})

	t.Run("cancel requires booked", func(t *testing.T) {
		_, err := f.svc.CancelBooking(ctx, f.provider, available.ID)
		if !errors.Is(err, ErrInvalidStateTransition) {
			t.Errorf("err = %v, want ErrInvalidStateTransition", err)
		}
	})

	t.Run("delete refuses booked for owner and admin", func(t *testing.T) {
		for _, a := range []policy.Actor{f.provider, f.admin} {
			if err := f.svc.DeleteTimeslot(ctx, a, booked.ID); !errors.Is(err, ErrInvalidStateTransition) {
				t.Errorf("%s: err = %v, want ErrInvalidStateTransition", a.Role, err)
			}
		}
	})

	t.Run("client cannot complete", func(t *testing.T) {
		_, err := f.svc.CompleteTimeslot(ctx, f.client, booked.ID)
		if !errors.Is(err, ErrForbidden) {
			t.Errorf("err = %v, want ErrForbidden", err)
		}
	})

	t.Run("complete then nothing reopens it", func(t *testing.T) {
		done, err := f.svc.CompleteTimeslot(ctx, f.provider, booked.ID)
		if err != nil {
			t.Fatalf("complete: %v", err)
		}
		if !done.IsCompleted() {
			t.Fatalf("status = %s, want completed", done.Status)
		}
		if done.ClientID != nil || f.reload(t, booked.ID).ClientID != nil {
			t.Errorf("completed slot still references a client")
		}
		evs := f.events.Events()
		last := evs[len(evs)-1]
		if last.Kind != events.KindCompleted || last.ClientID == nil || *last.ClientID != f.client.ID {
			t.Errorf("last event = %s/%v, want completed for the former client", last.Kind, last.ClientID)
		}
		assertBookedInvariant(t, f.db)
		if _, err := f.svc.CancelBooking(ctx, f.provider, booked.ID); !errors.Is(err, ErrInvalidStateTransition) {
			t.Errorf("cancel completed: err = %v, want ErrInvalidStateTransition", err)
		}
		if _, err := f.svc.BookTimeslot(ctx, f.client, booked.ID, f.client.ID); !errors.Is(err, ErrBookingConflict) {
			t.Errorf("book completed: err = %v, want ErrBookingConflict", err)
		}
		if _, err := f.svc.CompleteTimeslot(ctx, f.provider, booked.ID); !errors.Is(err, ErrInvalidStateTransition) {
			t.Errorf("complete twice: err = %v, want ErrInvalidStateTransition", err)
		}
		if _, err := f.svc.UpdateDuration(ctx, f.admin, booked.ID, 30); !errors.Is(err, ErrInvalidStateTransition) {
			t.Errorf("resize completed: err = %v, want ErrInvalidStateTransition", err)
		}
	})

	t.Run("other provider cannot delete", func(t *testing.T) {
		other := testutil.CreateUser(t, f.db, schema.RoleServiceProvider)
		a := policy.Actor{ID: other.ID, Role: schema.RoleServiceProvider}
		if err := f.svc.DeleteTimeslot(ctx, a, available.ID); !errors.Is(err, ErrForbidden) {
			t.Errorf("err = %v, want ErrForbidden", err)
		}
	})
}

func TestUpdateDuration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ten := epoch.Add(25 * time.Hour)

	a := f.create(t, ten, 60)
	f.create(t, ten.Add(time.Hour), 60)

	if _, err := f.svc.UpdateDuration(ctx, f.provider, a.ID, 90); !errors.Is(err, ErrValidation) {
		t.Fatalf("grow into neighbour: err = %v, want ErrValidation", err)
	}
	if _, err := f.svc.UpdateDuration(ctx, f.provider, a.ID, 10); !errors.Is(err, ErrValidation) {
		t.Fatalf("below minimum: err = %v, want ErrValidation", err)
	}

	shrunk, err := f.svc.UpdateDuration(ctx, f.provider, a.ID, 45)
	if err != nil {
		t.Fatalf("shrink: %v", err)
	}
	if shrunk.DurationMinutes != 45 || !shrunk.EndTime.Equal(ten.Add(45*time.Minute)) {
		t.Errorf("shrunk = %d min ending %v", shrunk.DurationMinutes, shrunk.EndTime)
	}
	if stored := f.reload(t, a.ID); !stored.EndTime.Equal(ten.Add(45 * time.Minute)) {
		t.Errorf("stored end = %v, want %v", stored.EndTime, ten.Add(45*time.Minute))
	}

	if _, err := f.svc.BookTimeslot(ctx, f.client, a.ID, f.client.ID); err != nil {
		t.Fatalf("book: %v", err)
	}
	if _, err := f.svc.UpdateDuration(ctx, f.provider, a.ID, 30); !errors.Is(err, ErrInvalidStateTransition) {
		t.Errorf("owner resizing booked: err = %v, want ErrInvalidStateTransition", err)
	}
	if _, err := f.svc.UpdateDuration(ctx, f.admin, a.ID, 30); err != nil {
		t.Errorf("admin resizing booked: %v", err)
	}
}

// A booking that commits between the resize's read and its write must win:
// the owner may only resize a slot that is not booked.
func TestUpdateDurationLosesToConcurrentBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slot := f.create(t, epoch.Add(24*time.Hour), 60)

	var fired bool
	err := f.db.Callback().Update().Before("gorm:update").Register("test:book_first", func(tx *gorm.DB) {
		if fired || tx.Statement.Table != "timeslots" {
			return
		}
		fired = true
		_, err := tx.Statement.ConnPool.ExecContext(tx.Statement.Context,
			"UPDATE timeslots SET status = ?, client_id = ? WHERE id = ?",
			string(schema.StatusBooked), f.client.ID, slot.ID)
		if err != nil {
			t.Errorf("book in callback: %v", err)
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}
	t.Cleanup(func() { _ = f.db.Callback().Update().Remove("test:book_first") })

	if _, err := f.svc.UpdateDuration(ctx, f.provider, slot.ID, 30); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("resize during booking: err = %v, want ErrInvalidStateTransition", err)
	}
	if !fired {
		t.Fatal("booking callback never ran")
	}

	stored := f.reload(t, slot.ID)
	if !stored.BookedBy(f.client.ID) || stored.DurationMinutes != 60 {
		t.Errorf("stored = %s/%d min, want booked and still 60 min", stored.Status, stored.DurationMinutes)
	}
}

func TestCancelRepairsBookedSlotWithoutClient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slot := f.create(t, epoch.Add(24*time.Hour), 60)

	if err := f.db.Model(&schema.Timeslot{}).Where("id = ?", slot.ID).
		Update("status", schema.StatusBooked).Error; err != nil {
		t.Fatalf("corrupt slot: %v", err)
	}

	if _, err := f.svc.CancelBooking(ctx, f.client, slot.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("client cancel: err = %v, want ErrForbidden", err)
	}
	got, err := f.svc.CancelBooking(ctx, f.provider, slot.ID)
	if err != nil {
		t.Fatalf("provider cancel: %v", err)
	}
	if !got.IsAvailable() || got.ClientID != nil {
		t.Errorf("after cancel = %s/%v, want available with no client", got.Status, got.ClientID)
	}
	assertBookedInvariant(t, f.db)
}

func TestClassifyLockError(t *testing.T) {
	other := errors.New("connection reset")

	tests := []struct {
		name     string
		err      error
		conflict bool
	}{
		{"lock not available", &pgconn.PgError{Code: "55P03"}, true},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"wrapped lock timeout", fmt.Errorf("lock timeslot: %w", &pgconn.PgError{Code: "55P03"}), true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"other error", other, false},
		{"not found", ErrTimeslotNotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyLockError(tt.err)
			if tt.conflict {
				if !errors.Is(got, ErrBookingConflict) {
					t.Errorf("classifyLockError() = %v, want ErrBookingConflict", got)
				}
				return
			}
			if got != tt.err {
				t.Errorf("classifyLockError() = %v, want the input unchanged", got)
			}
		})
	}
}

func TestNoOverlapAfterMixedOperations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := epoch.Add(72 * time.Hour)

	starts := []time.Duration{0, 30 * time.Minute, time.Hour, 90 * time.Minute, 3 * time.Hour, 150 * time.Minute}
	var created []*schema.Timeslot
	for _, off := range starts {
		slot, err := f.svc.CreateTimeslot(ctx, f.provider, CreateTimeslotRequest{StartTime: base.Add(off), DurationMinutes: 60})
		if err == nil {
			created = append(created, slot)
		} else if !errors.Is(err, ErrValidation) {
			t.Fatalf("create: %v", err)
		}
	}
	for _, s := range created {
		_, err := f.svc.UpdateDuration(ctx, f.provider, s.ID, 120)
		if err != nil && !errors.Is(err, ErrValidation) {
			t.Fatalf("resize: %v", err)
		}
	}

	var slots []schema.Timeslot
	if err := f.db.Where("provider_id = ?", f.provider.ID).Find(&slots).Error; err != nil {
		t.Fatalf("list: %v", err)
	}
	for i := range slots {
		for j := i + 1; j < len(slots); j++ {
			a, b := slots[i], slots[j]
			if a.StartTime.Before(b.End()) && b.StartTime.Before(a.End()) {
				t.Errorf("overlap: [%v,%v) and [%v,%v)", a.StartTime, a.End(), b.StartTime, b.End())
			}
		}
	}
}

func TestVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other := testutil.CreateUser(t, f.db, schema.RoleServiceProvider)
	otherProvider := policy.Actor{ID: other.ID, Role: schema.RoleServiceProvider}
	stranger := testutil.CreateUser(t, f.db, schema.RoleClient)
	strangerActor := policy.Actor{ID: stranger.ID, Role: schema.RoleClient}

	open := f.create(t, epoch.Add(24*time.Hour), 60)
	mine := f.create(t, epoch.Add(26*time.Hour), 60)
	if _, err := f.svc.BookTimeslot(ctx, f.client, mine.ID, f.client.ID); err != nil {
		t.Fatalf("book: %v", err)
	}
	if _, err := f.svc.CreateTimeslot(ctx, otherProvider, CreateTimeslotRequest{
		StartTime:       epoch.Add(24 * time.Hour),
		DurationMinutes: 60,
	}); err != nil {
		t.Fatalf("create for other provider: %v", err)
	}

	t.Run("get", func(t *testing.T) {
		tests := []struct {
			name    string
			actor   policy.Actor
			id      uuid.UUID
			wantErr error
		}{
			{"owner sees open slot", f.provider, open.ID, nil},
			{"admin sees booked slot", f.admin, mine.ID, nil},
			{"linked client sees open slot", f.client, open.ID, nil},
			{"booked client sees own booking", f.client, mine.ID, nil},
			{"other provider is told not found", otherProvider, open.ID, ErrNotFound},
			{"unlinked client is told not found", strangerActor, open.ID, ErrNotFound},
			{"unlinked client cannot see booking", strangerActor, mine.ID, ErrNotFound},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := f.svc.GetTimeslot(ctx, tt.actor, tt.id)
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("err = %v, want %v", err, tt.wantErr)
				}
			})
		}
	})

	t.Run("list", func(t *testing.T) {
		count := func(a policy.Actor, req ListRequest) int {
			t.Helper()
			slots, err := f.svc.ListTimeslots(ctx, a, req)
			if err != nil {
				t.Fatalf("list as %s: %v", a.Role, err)
			}
			return len(slots)
		}

		if n := count(f.admin, ListRequest{}); n != 3 {
			t.Errorf("admin sees %d, want 3", n)
		}
		if n := count(f.provider, ListRequest{}); n != 2 {
			t.Errorf("provider sees %d, want 2", n)
		}
		if n := count(f.client, ListRequest{}); n != 1 {
			t.Errorf("client browsing sees %d, want 1", n)
		}
		if n := count(f.client, ListRequest{BookedByMe: true}); n != 1 {
			t.Errorf("client bookings = %d, want 1", n)
		}
		if n := count(strangerActor, ListRequest{}); n != 0 {
			t.Errorf("unlinked client sees %d, want 0", n)
		}
		booked := schema.StatusBooked
		if n := count(f.admin, ListRequest{Status: &booked}); n != 1 {
			t.Errorf("admin booked filter = %d, want 1", n)
		}
		if n := count(f.admin, ListRequest{ProviderIDs: []uuid.UUID{}}); n != 0 {
			t.Errorf("empty provider set = %d, want 0", n)
		}

		if _, err := f.svc.ListTimeslots(ctx, f.provider, ListRequest{ProviderID: &other.ID}); !errors.Is(err, ErrForbidden) {
			t.Errorf("provider listing another provider: err = %v, want ErrForbidden", err)
		}
		bogus := schema.TimeslotStatus("pending")
		if _, err := f.svc.ListTimeslots(ctx, f.admin, ListRequest{Status: &bogus}); !errors.Is(err, ErrValidation) {
			t.Errorf("unknown status: err = %v, want ErrValidation", err)
		}
	})
}

func ptr[T any](v T) *T { return &v }
