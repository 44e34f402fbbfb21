// Package timeslot holds the composable read-side predicates over the
// timeslots table. Every predicate is a GORM scope; scopes passed together to
// (*gorm.DB).Scopes are joined with AND.
package timeslot

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bookspot/bookspot_backend/internal/schema"
)

type Scope = func(*gorm.DB) *gorm.DB

func ID(id uuid.UUID) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("timeslots.id = ?", id)
	}
}

func IDNEQ(id uuid.UUID) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("timeslots.id <> ?", id)
	}
}

func ProviderID(id uuid.UUID) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("timeslots.provider_id = ?", id)
	}
}

// ProviderIDIn matches slots owned by any of ids. An empty set matches nothing.
func ProviderIDIn(ids ...uuid.UUID) Scope {
	return func(db *gorm.DB) *gorm.DB {
		if len(ids) == 0 {
			return db.Where("1 = 0")
		}
		return db.Where("timeslots.provider_id IN ?", ids)
	}
}

func ClientID(id uuid.UUID) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("timeslots.client_id = ?", id)
	}
}

// LinkedProvidersOf matches slots whose provider has an active link to clientID.
func LinkedProvidersOf(clientID uuid.UUID) Scope {
	return func(db *gorm.DB) *gorm.DB {
		sub := db.Session(&gorm.Session{NewDB: true}).
			Model(&schema.ProviderClientLink{}).
			Select("provider_id").
			Where("client_id = ? AND status = ?", clientID, schema.LinkActive)
		return db.Where("timeslots.provider_id IN (?)", sub)
	}
}

func StatusEQ(status schema.TimeslotStatus) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("timeslots.status = ?", status)
	}
}

func StatusNEQ(status schema.TimeslotStatus) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("timeslots.status <> ?", status)
	}
}

func Booked() Scope { return StatusEQ(schema.StatusBooked) }

func Completed() Scope { return StatusEQ(schema.StatusCompleted) }

// Future matches slots starting strictly after now.
func Future(now time.Time) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("timeslots.start_time > ?", now.UTC())
	}
}

// Available matches open slots that can still be booked.
func Available(now time.Time) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return Future(now)(StatusEQ(schema.StatusAvailable)(db))
	}
}

func StartTimeGTE(t time.Time) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("timeslots.start_time >= ?", t.UTC())
	}
}

func StartTimeLT(t time.Time) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("timeslots.start_time < ?", t.UTC())
	}
}

// Overlapping matches slots whose [start, end) interval intersects
// [start, end): existing.start < end AND existing.end > start.
func Overlapping(start, end time.Time) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("timeslots.start_time < ? AND timeslots.end_time > ?", end.UTC(), start.UTC())
	}
}

// EndedBy matches slots whose end time is at or before now.
func EndedBy(now time.Time) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("timeslots.end_time <= ?", now.UTC())
	}
}

func ByStartTime() Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Order("timeslots.start_time ASC").Order("timeslots.id ASC")
	}
}

// Page applies limit/offset; non-positive limit leaves the query unbounded.
func Page(limit, offset int) Scope {
	return func(db *gorm.DB) *gorm.DB {
		if offset > 0 {
			db = db.Offset(offset)
		}
		if limit > 0 {
			db = db.Limit(limit)
		}
		return db
	}
}
