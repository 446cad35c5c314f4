package models

import "time"

// ActivitySample is one closed interval of aggregated keyboard/mouse
// activity waiting for remote delivery. Rows exist only while unsynced;
// the sync engine deletes them after the remote time-slot write succeeds.
type ActivitySample struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	TimeStart time.Time `gorm:"not null;index"`
	TimeEnd   time.Time `gorm:"not null"`

	KbPressCount         int
	MouseLeftClickCount  int
	MouseRightClickCount int
	MouseMovementCount   int
	AfkDurationSeconds   int

	// JSON-encoded event sequences captured during the interval.
	KbSequence    string `gorm:"type:text"`
	MouseEvents   string `gorm:"type:text"`
	ActiveWindows string `gorm:"type:text"`

	UserID         string `gorm:"size:64"`
	EmployeeID     string `gorm:"size:64;index"`
	OrganizationID string `gorm:"size:64"`
	TenantID       string `gorm:"size:64"`

	CreatedAt time.Time

	Screenshots []Screenshot `gorm:"foreignKey:SampleID"`
}

// Duration is the wall-clock length of the sample interval.
func (s *ActivitySample) Duration() time.Duration {
	return s.TimeEnd.Sub(s.TimeStart)
}

// OverallDuration is the interval length minus time spent away from
// keyboard, floored at zero.
func (s *ActivitySample) OverallDuration() time.Duration {
	d := s.Duration() - time.Duration(s.AfkDurationSeconds)*time.Second
	if d < 0 {
		return 0
	}
	return d
}
