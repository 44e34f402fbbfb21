package schema

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UUIDV7 gives a table a time-ordered UUID primary key, assigned on insert
// when the caller left it empty.
type UUIDV7 struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
}

func (m *UUIDV7) BeforeCreate(_ *gorm.DB) error {
	if m.ID != uuid.Nil {
		return nil
	}
	id, err := uuid.NewV7()
	if err != nil {
		return err
	}
	m.ID = id
	return nil
}

type TimeStamped struct {
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}
