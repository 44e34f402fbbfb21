// Package audit persists committed timeslot transitions as AuditEvent rows.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/bookspot/bookspot_backend/internal/policy"
	"github.com/bookspot/bookspot_backend/internal/schema"
	"github.com/bookspot/bookspot_backend/internal/service/scheduling"
	"github.com/bookspot/bookspot_backend/pkg/events"
)

type ListRequest struct {
	TimeslotID *uuid.UUID
	ProviderID *uuid.UUID
	Limit      int
	Offset     int
}

type Service interface {
	Record(ctx context.Context, e events.TimeslotEvent) error
	List(ctx context.Context, actor policy.Actor, req ListRequest) ([]*schema.AuditEvent, error)
	// Subscribe consumes every timeslot event on nc and records it.
	Subscribe(nc *nats.Conn, queue string) (*nats.Subscription, error)
}

type auditService struct {
	db *gorm.DB
}

func New(db *gorm.DB) Service {
	return &auditService{db: db}
}

func (s *auditService) Record(ctx context.Context, e events.TimeslotEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}
	row := &schema.AuditEvent{
		Kind:       string(e.Kind),
		TimeslotID: e.TimeslotID,
		ProviderID: e.ProviderID,
		ClientID:   e.ClientID,
		ActorID:    e.ActorID,
		Payload:    datatypes.JSON(payload),
		OccurredAt: e.OccurredAt.UTC(),
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// List is admin-wide; providers only see the trail of their own slots.
func (s *auditService) List(ctx context.Context, actor policy.Actor, req ListRequest) ([]*schema.AuditEvent, error) {
	q := s.db.WithContext(ctx).Model(&schema.AuditEvent{})
	switch {
	case actor.IsAdmin():
		if req.ProviderID != nil {
			q = q.Where("provider_id = ?", *req.ProviderID)
		}
	case actor.IsProvider():
		if req.ProviderID != nil && *req.ProviderID != actor.ID {
			return nil, scheduling.ErrForbidden
		}
		q = q.Where("provider_id = ?", actor.ID)
	default:
		return nil, scheduling.ErrForbidden
	}
	if req.TimeslotID != nil {
		q = q.Where("timeslot_id = ?", *req.TimeslotID)
	}
	if req.Limit <= 0 || req.Limit > 200 {
		req.Limit = 50
	}

	var out []*schema.AuditEvent
	err := q.Order("occurred_at ASC").Order("id ASC").
		Limit(req.Limit).Offset(max(req.Offset, 0)).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return out, nil
}

func (s *auditService) Subscribe(nc *nats.Conn, queue string) (*nats.Subscription, error) {
	sub, err := events.Subscribe(nc, queue, func(ctx context.Context, e events.TimeslotEvent) {
		if err := s.Record(ctx, e); err != nil {
			slog.ErrorContext(ctx, "audit_worker: record event failed",
				"kind", e.Kind, "timeslot_id", e.TimeslotID, "err", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("audit_worker: subscribe: %w", err)
	}
	slog.Info("audit_worker: started", "queue", queue)
	return sub, nil
}
