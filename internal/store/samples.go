package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/timedock/internal/models"
	"gorm.io/gorm"
)

// CreateSample persists one closed activity sample.
func CreateSample(db *gorm.DB, sample *models.ActivitySample) error {
	if sample == nil {
		return fmt.Errorf("store: sample is required")
	}
	if !sample.TimeEnd.After(sample.TimeStart) {
		return fmt.Errorf("store: sample time_end must be after time_start")
	}
	if err := db.Create(sample).Error; err != nil {
		return fmt.Errorf("store: create sample: %w", err)
	}
	return nil
}

// OldestUnsyncedSample returns the unsynced sample with the earliest
// time_start, or nil when the queue is empty. Delivery order is strict
// FIFO by time_start; priority never reorders it.
func OldestUnsyncedSample(db *gorm.DB) (*models.ActivitySample, error) {
	var sample models.ActivitySample
	err := db.Order("time_start ASC").First(&sample).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: oldest unsynced sample: %w", err)
	}
	return &sample, nil
}

// SamplesOlderThan returns unsynced samples whose interval ended before
// cutoff, oldest first. The reconciliation sweeper uses this to find rows
// left behind by a crash.
func SamplesOlderThan(db *gorm.DB, cutoff time.Time) ([]models.ActivitySample, error) {
	var samples []models.ActivitySample
	if err := db.Where("time_end < ?", cutoff).Order("time_start ASC").Find(&samples).Error; err != nil {
		return nil, fmt.Errorf("store: samples older than %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return samples, nil
}

// DeleteSample removes a sample row and its screenshot metadata rows. The
// caller is responsible for the screenshot files on disk.
func DeleteSample(db *gorm.DB, id uint) error {
	if err := db.Where("sample_id = ?", id).Delete(&models.Screenshot{}).Error; err != nil {
		return fmt.Errorf("store: delete screenshots of sample %d: %w", id, err)
	}
	if err := db.Delete(&models.ActivitySample{}, id).Error; err != nil {
		return fmt.Errorf("store: delete sample %d: %w", id, err)
	}
	return nil
}

// CountSamples reports how many unsynced samples are queued.
func CountSamples(db *gorm.DB) (int64, error) {
	var n int64
	if err := db.Model(&models.ActivitySample{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("store: count samples: %w", err)
	}
	return n, nil
}
