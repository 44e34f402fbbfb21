package scheduling

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bookspot/bookspot_backend/internal/policy"
	qslot "github.com/bookspot/bookspot_backend/internal/repo/timeslot"
	"github.com/bookspot/bookspot_backend/internal/schema"
	"github.com/bookspot/bookspot_backend/pkg/events"
)

func (s *schedulingService) CreateTimeslot(ctx context.Context, actor policy.Actor, req CreateTimeslotRequest) (*schema.Timeslot, error) {
	if !policy.CanCreateTimeslot(actor) {
		return nil, ErrForbidden
	}

	providerID := actor.ID
	switch {
	case actor.IsAdmin():
		if req.ProviderID == nil || *req.ProviderID == uuid.Nil {
			return nil, invalid("provider_id", "is required")
		}
		providerID = *req.ProviderID
	case req.ProviderID != nil && *req.ProviderID != actor.ID:
		return nil, ErrForbidden
	}

	if req.StartTime.IsZero() {
		return nil, invalid("start_time", "is required")
	}
	if !req.StartTime.After(s.now()) {
		return nil, invalid("start_time", "must be in the future")
	}
	if err := s.validateDuration(req.DurationMinutes); err != nil {
		return nil, err
	}

	slot := &schema.Timeslot{
		ProviderID:      providerID,
		StartTime:       req.StartTime.UTC(),
		DurationMinutes: req.DurationMinutes,
		Status:          schema.StatusAvailable,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockProvider(tx, providerID); err != nil {
			return err
		}
		if err := checkOverlap(tx, providerID, slot, uuid.Nil); err != nil {
			return err
		}
		if req.ClientID != nil {
			if err := requireClient(tx, *req.ClientID); err != nil {
				return err
			}
			if err := requireActiveLink(tx, providerID, *req.ClientID); err != nil {
				return err
			}
			clientID := *req.ClientID
			slot.ClientID = &clientID
			slot.Status = schema.StatusBooked
		}
		if err := tx.Create(slot).Error; err != nil {
			return fmt.Errorf("create timeslot: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.KindCreated, slot, slot.ClientID, &actor)
	slog.InfoContext(ctx, "timeslot created",
		"timeslot_id", slot.ID, "provider_id", slot.ProviderID, "status", slot.Status)
	return slot, nil
}

func (s *schedulingService) UpdateDuration(ctx context.Context, actor policy.Actor, slotID uuid.UUID, durationMinutes int) (*schema.Timeslot, error) {
	if err := s.validateDuration(durationMinutes); err != nil {
		return nil, err
	}

	var slot *schema.Timeslot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.setLockTimeout(tx); err != nil {
			return err
		}
		// The slot row stays locked until commit so a concurrent booking
		// cannot slip in between the state check and the write.
		var err error
		if slot, err = loadTimeslot(tx.Clauses(clause.Locking{Strength: "UPDATE"}), slotID); err != nil {
			return err
		}
		if err := authorizeModify(actor, slot); err != nil {
			return err
		}
		if slot.IsCompleted() {
			return fmt.Errorf("%w: completed timeslots cannot be resized", ErrInvalidStateTransition)
		}
		if _, err := lockProvider(tx, slot.ProviderID); err != nil {
			return err
		}

		resized := *slot
		resized.DurationMinutes = durationMinutes
		if err := checkOverlap(tx, slot.ProviderID, &resized, slot.ID); err != nil {
			return err
		}

		q := tx.Model(&schema.Timeslot{}).Where("id = ?", slot.ID)
		if actor.IsAdmin() {
			q = q.Where("status <> ?", schema.StatusCompleted)
		} else {
			q = q.Where("status = ?", schema.StatusAvailable)
		}
		res := q.Updates(map[string]any{
			"duration_minutes": durationMinutes,
			"end_time":         resized.End(),
		})
		if res.Error != nil {
			return fmt.Errorf("update duration: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return fmt.Errorf("%w: timeslot changed concurrently", ErrInvalidStateTransition)
		}
		slot.DurationMinutes = durationMinutes
		slot.EndTime = resized.End()
		return nil
	})
	if err != nil {
		return nil, classifyLockError(err)
	}

	s.publish(ctx, events.KindResized, slot, slot.ClientID, &actor)
	return slot, nil
}

func (s *schedulingService) DeleteTimeslot(ctx context.Context, actor policy.Actor, slotID uuid.UUID) error {
	db := s.db.WithContext(ctx)

	slot, err := loadTimeslot(db, slotID)
	if err != nil {
		return err
	}
	if err := authorizeModify(actor, slot); err != nil {
		return err
	}
	if slot.IsBooked() {
		return fmt.Errorf("%w: cancel the booking before deleting", ErrInvalidStateTransition)
	}

	res := db.Where("id = ? AND status <> ?", slot.ID, schema.StatusBooked).Delete(&schema.Timeslot{})
	if res.Error != nil {
		return fmt.Errorf("delete timeslot: %w", res.Error)
	}
	if res.RowsAffected != 1 {
		// booked between the read and the delete
		return fmt.Errorf("%w: cancel the booking before deleting", ErrInvalidStateTransition)
	}

	s.publish(ctx, events.KindDeleted, slot, slot.ClientID, &actor)
	return nil
}

// authorizeModify separates "not yours" from "yours, but booked": the first
// is forbidden, the second an invalid transition.
func authorizeModify(actor policy.Actor, slot *schema.Timeslot) error {
	if policy.CanUpdateTimeslot(actor, slot) {
		return nil
	}
	if policy.CanViewTimeslot(actor, slot) {
		return fmt.Errorf("%w: timeslot is booked", ErrInvalidStateTransition)
	}
	return ErrForbidden
}

// checkOverlap rejects slot when any other timeslot of the provider, in any
// status, intersects its [start, end) interval.
func checkOverlap(tx *gorm.DB, providerID uuid.UUID, slot *schema.Timeslot, exclude uuid.UUID) error {
	q := tx.Model(&schema.Timeslot{}).Scopes(
		qslot.ProviderID(providerID),
		qslot.Overlapping(slot.StartTime, slot.End()),
	)
	if exclude != uuid.Nil {
		q = q.Scopes(qslot.IDNEQ(exclude))
	}

	var n int64
	if err := q.Count(&n).Error; err != nil {
		return fmt.Errorf("check overlap: %w", err)
	}
	if n > 0 {
		return invalid("start_time", "overlaps an existing timeslot")
	}
	return nil
}
