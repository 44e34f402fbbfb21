package schema

import "github.com/google/uuid"

type LinkStatus string

const (
	LinkActive   LinkStatus = "active"
	LinkInactive LinkStatus = "inactive"
)

// ProviderClientLink gates which clients may book a provider's timeslots.
// At most one row exists per (provider, client) pair.
type ProviderClientLink struct {
	UUIDV7

	ProviderID        uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_link_provider_client,priority:1" json:"provider_id"`
	ClientID          uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_link_provider_client,priority:2;index" json:"client_id"`
	CreatedByProvider bool       `gorm:"not null;default:false" json:"created_by_provider"`
	Status            LinkStatus `gorm:"size:16;not null;default:'active'" json:"status"`

	TimeStamped

	Provider *User `gorm:"foreignKey:ProviderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Client   *User `gorm:"foreignKey:ClientID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"client,omitempty"`
}

func (l *ProviderClientLink) IsActive() bool {
	return l.Status == LinkActive
}
