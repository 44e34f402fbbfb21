package schema

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TimeslotStatus string

const (
	StatusAvailable TimeslotStatus = "available"
	StatusBooked    TimeslotStatus = "booked"
	StatusCompleted TimeslotStatus = "completed"

	// StatusCancelledLegacy only exists in rows written before cancellation
	// returned slots to available. Migrate rewrites it away.
	StatusCancelledLegacy TimeslotStatus = "cancelled"
)

func (s TimeslotStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusBooked, StatusCompleted:
		return true
	}
	return false
}

// Timeslot is a provider-owned block of time that carries both availability
// and the booking itself. ClientID is non-nil exactly when Status is booked.
//
// EndTime is derived from StartTime and DurationMinutes and persisted so that
// overlap and expiry predicates stay plain range comparisons.
type Timeslot struct {
	UUIDV7

	ProviderID      uuid.UUID      `gorm:"type:uuid;not null;index:idx_timeslot_provider_start,priority:1" json:"provider_id"`
	ClientID        *uuid.UUID     `gorm:"type:uuid;index" json:"client_id"`
	StartTime       time.Time      `gorm:"not null;index:idx_timeslot_provider_start,priority:2" json:"start_time"`
	EndTime         time.Time      `gorm:"not null;index" json:"end_time"`
	DurationMinutes int            `gorm:"not null" json:"duration_minutes"`
	Status          TimeslotStatus `gorm:"size:16;not null;default:'available';index" json:"status"`

	TimeStamped

	Provider *User `gorm:"foreignKey:ProviderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Client   *User `gorm:"foreignKey:ClientID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"-"`
}

// End returns StartTime + DurationMinutes.
func (t *Timeslot) End() time.Time {
	return t.StartTime.Add(time.Duration(t.DurationMinutes) * time.Minute)
}

func (t *Timeslot) IsAvailable() bool { return t.Status == StatusAvailable }

func (t *Timeslot) IsBooked() bool { return t.Status == StatusBooked }

func (t *Timeslot) IsCompleted() bool { return t.Status == StatusCompleted }

// BookedBy reports whether the slot is booked by clientID.
func (t *Timeslot) BookedBy(clientID uuid.UUID) bool {
	return t.ClientID != nil && *t.ClientID == clientID
}

func (t *Timeslot) BeforeSave(_ *gorm.DB) error {
	t.StartTime = t.StartTime.UTC()
	t.EndTime = t.End()
	return nil
}
