package scheduling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bookspot/bookspot_backend/internal/policy"
	"github.com/bookspot/bookspot_backend/internal/schema"
	"github.com/bookspot/bookspot_backend/pkg/events"
	"github.com/bookspot/bookspot_backend/pkg/observability"
)

// BookTimeslot assigns clientID to an available slot, or swaps the client of
// a booked slot when a provider or admin reassigns it. The read, the checks
// and the write happen under an exclusive row lock, so at most one of several
// concurrent bookings of the same slot commits.
func (s *schedulingService) BookTimeslot(ctx context.Context, actor policy.Actor, slotID, clientID uuid.UUID) (*schema.Timeslot, error) {
	ctx, span := observability.StartSpan(ctx, "scheduling.BookTimeslot",
		attribute.String("timeslot.id", slotID.String()),
		attribute.String("client.id", clientID.String()),
	)
	defer span.End()

	if clientID == uuid.Nil {
		return nil, invalid("client_id", "is required")
	}

	began := time.Now()
	var (
		slot      schema.Timeslot
		kind      = events.KindBooked
		unchanged bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.setLockTimeout(tx); err != nil {
			return err
		}

		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", slotID).
			Take(&slot).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTimeslotNotFound
			}
			return fmt.Errorf("lock timeslot: %w", err)
		}

		if !policy.CanBook(actor, &slot, clientID) {
			return ErrForbidden
		}

		switch {
		case slot.IsAvailable():
		case slot.IsBooked() && !actor.IsClient():
			if slot.BookedBy(clientID) {
				unchanged = true
				return nil
			}
			kind = events.KindReassigned
		default:
			return ErrBookingConflict
		}

		if !slot.StartTime.After(s.now()) {
			return fmt.Errorf("%w: timeslot has already started", ErrBookingConflict)
		}
		if err := requireClient(tx, clientID); err != nil {
			return err
		}
		if err := requireActiveLink(tx, slot.ProviderID, clientID); err != nil {
			return err
		}

		res := tx.Model(&schema.Timeslot{}).
			Where("id = ? AND status = ?", slot.ID, slot.Status).
			Updates(map[string]any{
				"status":    schema.StatusBooked,
				"client_id": clientID,
			})
		if res.Error != nil {
			return fmt.Errorf("book timeslot: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return ErrBookingConflict
		}

		slot.Status = schema.StatusBooked
		slot.ClientID = &clientID
		return nil
	}, s.txOptions()...)

	if err != nil {
		err = classifyLockError(err)
		result := "error"
		if errors.Is(err, ErrBookingConflict) {
			result = "conflict"
		}
		s.metrics.Booking(ctx, result, time.Since(began))
		span.RecordError(err)
		return nil, err
	}
	s.metrics.Booking(ctx, "ok", time.Since(began))

	if unchanged {
		return &slot, nil
	}

	s.publish(ctx, kind, &slot, slot.ClientID, &actor)
	slog.InfoContext(ctx, "timeslot booked",
		"timeslot_id", slot.ID,
		"provider_id", slot.ProviderID,
		"client_id", clientID,
		"reassigned", kind == events.KindReassigned,
	)
	return &slot, nil
}

// CancelBooking returns a booked slot to available and clears its client.
func (s *schedulingService) CancelBooking(ctx context.Context, actor policy.Actor, slotID uuid.UUID) (*schema.Timeslot, error) {
	db := s.db.WithContext(ctx)

	slot, err := loadTimeslot(db, slotID)
	if err != nil {
		return nil, err
	}
	if !slot.IsBooked() {
		if policy.CanComplete(actor, slot) {
			return nil, fmt.Errorf("%w: timeslot is not booked", ErrInvalidStateTransition)
		}
		return nil, ErrForbidden
	}
	if !policy.CanCancel(actor, slot, s.now()) {
		return nil, ErrForbidden
	}

	// A booked row without a client is inconsistent; cancelling it by the
	// owner or an admin repairs it.
	formerClient := slot.ClientID
	q := db.Model(&schema.Timeslot{}).Where("id = ? AND status = ?", slot.ID, schema.StatusBooked)
	if formerClient != nil {
		q = q.Where("client_id = ?", *formerClient)
	} else {
		q = q.Where("client_id IS NULL")
	}
	res := q.Updates(map[string]any{
		"status":    schema.StatusAvailable,
		"client_id": nil,
	})
	if res.Error != nil {
		return nil, fmt.Errorf("cancel booking: %w", res.Error)
	}
	if res.RowsAffected != 1 {
		return nil, fmt.Errorf("%w: booking changed concurrently", ErrInvalidStateTransition)
	}

	slot.Status = schema.StatusAvailable
	slot.ClientID = nil

	s.publish(ctx, events.KindCancelled, slot, formerClient, &actor)
	slog.InfoContext(ctx, "booking cancelled",
		"timeslot_id", slot.ID, "client_id", formerClient, "actor_id", actor.ID)
	return slot, nil
}

// CompleteTimeslot marks a booked slot completed and releases its client
// reference; the completed event still carries the client. Completed is
// terminal.
func (s *schedulingService) CompleteTimeslot(ctx context.Context, actor policy.Actor, slotID uuid.UUID) (*schema.Timeslot, error) {
	db := s.db.WithContext(ctx)

	slot, err := loadTimeslot(db, slotID)
	if err != nil {
		return nil, err
	}
	if !policy.CanComplete(actor, slot) {
		return nil, ErrForbidden
	}
	if !slot.IsBooked() {
		return nil, fmt.Errorf("%w: only booked timeslots can be completed", ErrInvalidStateTransition)
	}

	formerClient := slot.ClientID
	res := db.Model(&schema.Timeslot{}).
		Where("id = ? AND status = ?", slot.ID, schema.StatusBooked).
		Updates(map[string]any{
			"status":    schema.StatusCompleted,
			"client_id": nil,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("complete timeslot: %w", res.Error)
	}
	if res.RowsAffected != 1 {
		return nil, fmt.Errorf("%w: booking changed concurrently", ErrInvalidStateTransition)
	}
	slot.Status = schema.StatusCompleted
	slot.ClientID = nil

	s.publish(ctx, events.KindCompleted, slot, formerClient, &actor)
	return slot, nil
}
