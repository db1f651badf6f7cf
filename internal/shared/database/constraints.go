package database

import (
	"fmt"

	"gorm.io/gorm"
)

// MigrateConstraints adds the inventory constraints and indexes gorm tags
// cannot express.
func MigrateConstraints(db *gorm.DB) error {
	const poolBounds = "chk_pool_remaining_within_capacity"
	if !db.Migrator().HasConstraint("ticket_pools", poolBounds) {
		err := db.Exec(`ALTER TABLE ticket_pools
			ADD CONSTRAINT ` + poolBounds + ` CHECK (remaining_quantity <= capacity)`).Error
		if err != nil {
			return fmt.Errorf("failed to add %s: %w", poolBounds, err)
		}
	}

	statements := []string{
		`CREATE INDEX IF NOT EXISTS idx_ticket_pools_event_position ON ticket_pools (event_id, position)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_event_status ON bookings (event_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_buyer_created ON bookings (buyer_id, created_at DESC)`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to apply %q: %w", stmt, err)
		}
	}

	return nil
}
