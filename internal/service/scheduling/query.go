package scheduling

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bookspot/bookspot_backend/internal/policy"
	qslot "github.com/bookspot/bookspot_backend/internal/repo/timeslot"
	"github.com/bookspot/bookspot_backend/internal/schema"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// GetTimeslot returns a slot to its owner, an admin, the booked client, or a
// client linked to the provider while the slot is still bookable.
func (s *schedulingService) GetTimeslot(ctx context.Context, actor policy.Actor, slotID uuid.UUID) (*schema.Timeslot, error) {
	db := s.db.WithContext(ctx)

	slot, err := loadTimeslot(db, slotID)
	if err != nil {
		return nil, err
	}
	if policy.CanViewTimeslot(actor, slot) || policy.CanViewBooking(actor, slot) {
		return slot, nil
	}
	if actor.IsClient() && slot.IsAvailable() && slot.StartTime.After(s.now()) {
		if err := requireActiveLink(db, slot.ProviderID, actor.ID); err == nil {
			return slot, nil
		}
	}
	// Hide existence from actors who may not see the slot.
	return nil, ErrTimeslotNotFound
}

// ListTimeslots applies the caller's role scope, then the request filters,
// all joined with AND and ordered by start time.
func (s *schedulingService) ListTimeslots(ctx context.Context, actor policy.Actor, req ListRequest) ([]*schema.Timeslot, error) {
	now := s.now()
	var scopes []qslot.Scope

	switch {
	case actor.IsAdmin():
	case actor.IsProvider():
		if req.ProviderID != nil && *req.ProviderID != actor.ID {
			return nil, ErrForbidden
		}
		scopes = append(scopes, qslot.ProviderID(actor.ID))
	case actor.IsClient():
		if req.ClientID != nil && *req.ClientID != actor.ID {
			return nil, ErrForbidden
		}
		if req.BookedByMe || req.ClientID != nil {
			scopes = append(scopes, qslot.ClientID(actor.ID))
		} else {
			scopes = append(scopes, qslot.LinkedProvidersOf(actor.ID), qslot.Available(now))
		}
	default:
		return nil, ErrForbidden
	}

	if req.ProviderID != nil {
		scopes = append(scopes, qslot.ProviderID(*req.ProviderID))
	}
	if req.ProviderIDs != nil {
		scopes = append(scopes, qslot.ProviderIDIn(req.ProviderIDs...))
	}
	if req.ClientID != nil && !actor.IsClient() {
		scopes = append(scopes, qslot.ClientID(*req.ClientID))
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, invalid("status", "is not a timeslot status")
		}
		scopes = append(scopes, qslot.StatusEQ(*req.Status))
	}
	if req.AvailableOnly {
		scopes = append(scopes, qslot.Available(now))
	}
	if req.FutureOnly {
		scopes = append(scopes, qslot.Future(now))
	}
	if req.From != nil {
		scopes = append(scopes, qslot.StartTimeGTE(*req.From))
	}
	if req.To != nil {
		if req.From != nil && !req.To.After(*req.From) {
			return nil, invalid("to", "must be after from")
		}
		scopes = append(scopes, qslot.StartTimeLT(*req.To))
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	scopes = append(scopes, qslot.ByStartTime(), qslot.Page(limit, req.Offset))

	var slots []*schema.Timeslot
	if err := s.db.WithContext(ctx).Scopes(scopes...).Find(&slots).Error; err != nil {
		return nil, fmt.Errorf("list timeslots: %w", err)
	}
	return slots, nil
}
