package schema

import (
	"fmt"

	"gorm.io/gorm"
)

// Models lists every table in dependency order.
func Models() []any {
	return []any{
		&User{},
		&ProviderClientLink{},
		&Timeslot{},
		&AuditEvent{},
	}
}

// AutoMigrate creates or alters all tables and folds legacy cancelled
// timeslots back into available ones.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if _, err := NormalizeLegacyStatuses(db); err != nil {
		return err
	}
	return nil
}

// NormalizeLegacyStatuses rewrites cancelled timeslots to available with no client.
func NormalizeLegacyStatuses(db *gorm.DB) (int64, error) {
	res := db.Model(&Timeslot{}).
		Where("status = ?", StatusCancelledLegacy).
		Updates(map[string]any{"status": StatusAvailable, "client_id": nil})
	if res.Error != nil {
		return 0, fmt.Errorf("normalize legacy statuses: %w", res.Error)
	}
	return res.RowsAffected, nil
}
