package store

import (
	"fmt"

	"github.com/zulandar/timedock/internal/models"
	"gorm.io/gorm"
)

// CreateScreenshot persists screenshot metadata for a sample.
func CreateScreenshot(db *gorm.DB, shot *models.Screenshot) error {
	if shot == nil {
		return fmt.Errorf("store: screenshot is required")
	}
	if shot.SampleID == 0 {
		return fmt.Errorf("store: screenshot sample_id is required")
	}
	if shot.FilePath == "" {
		return fmt.Errorf("store: screenshot file_path is required")
	}
	if err := db.Create(shot).Error; err != nil {
		return fmt.Errorf("store: create screenshot: %w", err)
	}
	return nil
}

// ScreenshotsForSample returns all screenshot rows attached to a sample.
func ScreenshotsForSample(db *gorm.DB, sampleID uint) ([]models.Screenshot, error) {
	var shots []models.Screenshot
	if err := db.Where("sample_id = ?", sampleID).Order("id ASC").Find(&shots).Error; err != nil {
		return nil, fmt.Errorf("store: screenshots for sample %d: %w", sampleID, err)
	}
	return shots, nil
}

// DeleteScreenshot removes one screenshot metadata row.
func DeleteScreenshot(db *gorm.DB, id uint) error {
	if err := db.Delete(&models.Screenshot{}, id).Error; err != nil {
		return fmt.Errorf("store: delete screenshot %d: %w", id, err)
	}
	return nil
}

// CountScreenshots reports how many screenshot rows are awaiting upload.
func CountScreenshots(db *gorm.DB) (int64, error) {
	var n int64
	if err := db.Model(&models.Screenshot{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("store: count screenshots: %w", err)
	}
	return n, nil
}
