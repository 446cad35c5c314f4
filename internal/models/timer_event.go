package models

import "time"

// TimerEvent records a tracking-session start that happened while the
// remote service was unreachable or the user was unauthenticated. The sync
// engine replays pending starts against the remote timer endpoint before
// delivering samples, then deletes the row.
type TimerEvent struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	StartedAt time.Time `gorm:"not null"`
	StoppedAt *time.Time

	EmployeeID     string `gorm:"size:64"`
	OrganizationID string `gorm:"size:64"`
	TenantID       string `gorm:"size:64"`

	CreatedAt time.Time
}
