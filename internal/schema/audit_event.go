package schema

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AuditEvent is an append-only record of a committed timeslot transition.
type AuditEvent struct {
	UUIDV7

	Kind       string         `gorm:"size:32;not null;index" json:"kind"`
	TimeslotID uuid.UUID      `gorm:"type:uuid;not null;index" json:"timeslot_id"`
	ProviderID uuid.UUID      `gorm:"type:uuid;not null;index" json:"provider_id"`
	ClientID   *uuid.UUID     `gorm:"type:uuid" json:"client_id,omitempty"`
	ActorID    *uuid.UUID     `gorm:"type:uuid;index" json:"actor_id,omitempty"`
	Payload    datatypes.JSON `json:"payload"`
	OccurredAt time.Time      `gorm:"not null;index" json:"occurred_at"`
	CreatedAt  time.Time      `gorm:"not null" json:"created_at"`
}
