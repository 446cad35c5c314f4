package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/timedock/internal/models"
	"gorm.io/gorm"
)

// CreateTimerEvent records a session start that could not be reported to
// the remote service at the time it happened.
func CreateTimerEvent(db *gorm.DB, ev *models.TimerEvent) error {
	if ev == nil {
		return fmt.Errorf("store: timer event is required")
	}
	if ev.StartedAt.IsZero() {
		return fmt.Errorf("store: timer event started_at is required")
	}
	if err := db.Create(ev).Error; err != nil {
		return fmt.Errorf("store: create timer event: %w", err)
	}
	return nil
}

// CloseTimerEvent stamps the stop time on the most recent timer event
// that is still open. No-op when every event already has one.
func CloseTimerEvent(db *gorm.DB, at time.Time) error {
	var ev models.TimerEvent
	err := db.Where("stopped_at IS NULL").Order("started_at DESC").First(&ev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("store: find open timer event: %w", err)
	}
	if err := db.Model(&ev).Update("stopped_at", at).Error; err != nil {
		return fmt.Errorf("store: close timer event %d: %w", ev.ID, err)
	}
	return nil
}

// PendingTimerEvents returns unsynced timer events, oldest first.
func PendingTimerEvents(db *gorm.DB) ([]models.TimerEvent, error) {
	var events []models.TimerEvent
	if err := db.Order("started_at ASC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("store: pending timer events: %w", err)
	}
	return events, nil
}

// DeleteTimerEvent removes a timer event after the remote service
// acknowledged it.
func DeleteTimerEvent(db *gorm.DB, id uint) error {
	if err := db.Delete(&models.TimerEvent{}, id).Error; err != nil {
		return fmt.Errorf("store: delete timer event %d: %w", id, err)
	}
	return nil
}
