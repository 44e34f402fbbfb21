package scheduling

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bookspot/bookspot_backend/internal/policy"
	"github.com/bookspot/bookspot_backend/internal/schema"
	"github.com/bookspot/bookspot_backend/pkg/events"
	"github.com/bookspot/bookspot_backend/pkg/observability"
)

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type CreateTimeslotRequest struct {
	// ProviderID is required when an admin creates a slot. Providers always
	// create for themselves.
	ProviderID      *uuid.UUID
	StartTime       time.Time
	DurationMinutes int
	// ClientID books the slot at creation.
	ClientID *uuid.UUID
}

type ListRequest struct {
	ProviderID  *uuid.UUID
	ProviderIDs []uuid.UUID
	ClientID    *uuid.UUID
	Status      *schema.TimeslotStatus
	// BookedByMe switches a client's listing from bookable slots of their
	// linked providers to their own bookings.
	BookedByMe    bool
	AvailableOnly bool
	FutureOnly    bool
	From          *time.Time
	To            *time.Time
	Limit         int
	Offset        int
}

type Config struct {
	MinDurationMinutes int
	MaxDurationMinutes int
	// LockTimeout bounds how long booking waits for the row lock.
	LockTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		MinDurationMinutes: 15,
		MaxDurationMinutes: 480,
		LockTimeout:        3 * time.Second,
	}
}

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

// Service is the availability engine: the only mutation path for timeslots.
type Service interface {
	// Transitions
	CreateTimeslot(ctx context.Context, actor policy.Actor, req CreateTimeslotRequest) (*schema.Timeslot, error)
	UpdateDuration(ctx context.Context, actor policy.Actor, slotID uuid.UUID, durationMinutes int) (*schema.Timeslot, error)
	BookTimeslot(ctx context.Context, actor policy.Actor, slotID, clientID uuid.UUID) (*schema.Timeslot, error)
	CancelBooking(ctx context.Context, actor policy.Actor, slotID uuid.UUID) (*schema.Timeslot, error)
	CompleteTimeslot(ctx context.Context, actor policy.Actor, slotID uuid.UUID) (*schema.Timeslot, error)
	DeleteTimeslot(ctx context.Context, actor policy.Actor, slotID uuid.UUID) error

	// SweepCompleted moves every booked slot whose end has passed to
	// completed and returns how many rows it transitioned.
	SweepCompleted(ctx context.Context) (int64, error)

	// Read projections
	GetTimeslot(ctx context.Context, actor policy.Actor, slotID uuid.UUID) (*schema.Timeslot, error)
	ListTimeslots(ctx context.Context, actor policy.Actor, req ListRequest) ([]*schema.Timeslot, error)
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type schedulingService struct {
	db      *gorm.DB
	clock   clockwork.Clock
	events  events.Publisher
	metrics *observability.SchedulingMetrics
	cfg     Config
}

func New(db *gorm.DB, clock clockwork.Clock, pub events.Publisher, metrics *observability.SchedulingMetrics, cfg Config) Service {
	def := DefaultConfig()
	if cfg.MinDurationMinutes <= 0 {
		cfg.MinDurationMinutes = def.MinDurationMinutes
	}
	if cfg.MaxDurationMinutes <= 0 {
		cfg.MaxDurationMinutes = def.MaxDurationMinutes
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = def.LockTimeout
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &schedulingService{
		db:      db,
		clock:   clock,
		events:  pub,
		metrics: metrics,
		cfg:     cfg,
	}
}

// ---------------------------------------------------------------------------
// Shared helpers
// ---------------------------------------------------------------------------

func (s *schedulingService) now() time.Time {
	return s.clock.Now().UTC()
}

func (s *schedulingService) validateDuration(minutes int) error {
	if minutes < s.cfg.MinDurationMinutes || minutes > s.cfg.MaxDurationMinutes {
		return invalid("duration_minutes",
			fmt.Sprintf("must be between %d and %d", s.cfg.MinDurationMinutes, s.cfg.MaxDurationMinutes))
	}
	return nil
}

func (s *schedulingService) isPostgres() bool {
	return s.db.Dialector.Name() == "postgres"
}

// txOptions runs locking transactions at serializable isolation where the
// database supports choosing it.
func (s *schedulingService) txOptions() []*sql.TxOptions {
	if !s.isPostgres() {
		return nil
	}
	return []*sql.TxOptions{{Isolation: sql.LevelSerializable}}
}

func (s *schedulingService) setLockTimeout(tx *gorm.DB) error {
	if !s.isPostgres() {
		return nil
	}
	ms := s.cfg.LockTimeout.Milliseconds()
	if err := tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", ms)).Error; err != nil {
		return fmt.Errorf("set lock timeout: %w", err)
	}
	return nil
}

func loadTimeslot(tx *gorm.DB, id uuid.UUID) (*schema.Timeslot, error) {
	var slot schema.Timeslot
	if err := tx.Where("id = ?", id).Take(&slot).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTimeslotNotFound
		}
		return nil, fmt.Errorf("get timeslot: %w", err)
	}
	return &slot, nil
}

// lockProvider takes a row lock on the provider so that overlap checks and
// inserts for one provider never interleave.
func lockProvider(tx *gorm.DB, providerID uuid.UUID) (*schema.User, error) {
	var u schema.User
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", providerID).
		Take(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProviderNotFound
		}
		return nil, fmt.Errorf("lock provider: %w", err)
	}
	if u.Role != schema.RoleServiceProvider {
		return nil, invalid("provider_id", "is not a service provider")
	}
	return &u, nil
}

func requireClient(tx *gorm.DB, clientID uuid.UUID) error {
	var u schema.User
	if err := tx.Select("id", "role").Where("id = ?", clientID).Take(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrClientNotFound
		}
		return fmt.Errorf("get client: %w", err)
	}
	if u.Role != schema.RoleClient {
		return invalid("client_id", "is not a client")
	}
	return nil
}

func requireActiveLink(tx *gorm.DB, providerID, clientID uuid.UUID) error {
	var n int64
	err := tx.Model(&schema.ProviderClientLink{}).
		Where("provider_id = ? AND client_id = ? AND status = ?", providerID, clientID, schema.LinkActive).
		Count(&n).Error
	if err != nil {
		return fmt.Errorf("check link: %w", err)
	}
	if n == 0 {
		return ErrUnauthorizedRelationship
	}
	return nil
}

// classifyLockError turns lock waits, serialization failures and deadlocks
// inside a locking transaction into ErrBookingConflict.
func classifyLockError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "55P03", "40001", "40P01":
			return fmt.Errorf("%w: %s", ErrBookingConflict, pgErr.Code)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: lock wait exceeded", ErrBookingConflict)
	}
	return err
}

func (s *schedulingService) publish(ctx context.Context, kind events.Kind, slot *schema.Timeslot, clientID *uuid.UUID, actor *policy.Actor) {
	e := events.TimeslotEvent{
		Kind:       kind,
		TimeslotID: slot.ID,
		ProviderID: slot.ProviderID,
		ClientID:   clientID,
		Status:     string(slot.Status),
		OccurredAt: s.now(),
	}
	if actor != nil && actor.ID != uuid.Nil {
		id := actor.ID
		e.ActorID = &id
	}
	if err := s.events.Publish(ctx, e); err != nil {
		slog.WarnContext(ctx, "publish timeslot event failed",
			"kind", kind, "timeslot_id", slot.ID, "err", err)
	}
	s.metrics.Transition(ctx, string(kind))
}
