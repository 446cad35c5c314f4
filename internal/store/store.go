// Package store provides the local durable store for the capture/sync
// pipeline: unsynced activity samples, screenshot metadata, offline timer
// events, and the sync-job audit log.
package store

import (
	"fmt"

	"github.com/zulandar/timedock/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open opens (or creates) the sqlite database at path.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	return db, nil
}

// OpenMemory opens a fresh in-memory database, used by tests.
func OpenMemory() (*gorm.DB, error) {
	return Open(":memory:")
}

// AllModels returns the list of GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.ActivitySample{},
		&models.Screenshot{},
		&models.SyncJob{},
		&models.TimerEvent{},
	}
}

// AutoMigrate creates or updates all pipeline tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("store: auto-migrate: %w", err)
	}
	return nil
}

// Reset drops and recreates all pipeline tables.
func Reset(db *gorm.DB) error {
	if err := db.Migrator().DropTable(AllModels()...); err != nil {
		return fmt.Errorf("store: drop tables: %w", err)
	}
	return AutoMigrate(db)
}
