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

const sweepBatchSize = 500

// SweepCompleted completes booked slots whose end time has passed and
// releases their client references. The status and time predicates make it
// idempotent: a second run at the same instant transitions nothing. Events are
// published only for rows this run actually changed.
func (s *schedulingService) SweepCompleted(ctx context.Context) (int64, error) {
	now := s.now()
	var total int64

	for {
		var (
			batch   []schema.Timeslot
			changed []schema.Timeslot
		)
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
				Select("id", "provider_id", "client_id", "status").
				Scopes(qslot.Booked(), qslot.EndedBy(now), qslot.ByStartTime()).
				Limit(sweepBatchSize).
				Find(&batch).Error
			if err != nil {
				return fmt.Errorf("find expired bookings: %w", err)
			}
			if len(batch) == 0 {
				return nil
			}

			ids := make([]uuid.UUID, len(batch))
			for i := range batch {
				ids[i] = batch[i].ID
			}
			res := tx.Model(&changed).
				Clauses(clause.Returning{Columns: []clause.Column{{Name: "id"}}}).
				Where("id IN ? AND status = ?", ids, schema.StatusBooked).
				Updates(map[string]any{
					"status":    schema.StatusCompleted,
					"client_id": nil,
				})
			if res.Error != nil {
				return fmt.Errorf("complete expired bookings: %w", res.Error)
			}
			total += res.RowsAffected
			return nil
		})
		if err != nil {
			return total, err
		}

		selected := make(map[uuid.UUID]schema.Timeslot, len(batch))
		for _, slot := range batch {
			selected[slot.ID] = slot
		}
		for _, c := range changed {
			slot, ok := selected[c.ID]
			if !ok {
				continue
			}
			formerClient := slot.ClientID
			slot.Status = schema.StatusCompleted
			slot.ClientID = nil
			s.publish(ctx, events.KindSwept, &slot, formerClient, &policy.System)
		}
		if len(batch) < sweepBatchSize {
			break
		}
	}

	s.metrics.Swept(ctx, total)
	slog.InfoContext(ctx, "completion sweep finished", "count", total, "threshold", now)
	return total, nil
}
